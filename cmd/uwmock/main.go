package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oscarka/underwritingsystem2/internal/config"
	"github.com/oscarka/underwritingsystem2/internal/logging"
	"github.com/oscarka/underwritingsystem2/internal/mockapi"
)

func main() {
	configPath := flag.String("config", "", "Config file (.yaml|.json|.toml); UW_* variables override it")
	addr := flag.String("addr", "", "HTTP listen address, overrides mock.addr")
	flag.Parse()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Mock.Addr = *addr
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		os.Stderr.WriteString("log: " + err.Error() + "\n")
		os.Exit(2)
	}

	mock, err := mockapi.New(mockapi.Options{
		CORSOrigins:   cfg.Mock.CORSOrigins,
		AdminUser:     cfg.Mock.Username,
		AdminPassword: cfg.Mock.Password,
		Logger:        &log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init mock back-end")
	}
	srv := &http.Server{Addr: cfg.Mock.Addr, Handler: mock.Mux(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.Mock.Addr).Strs("cors", cfg.Mock.CORSOrigins).Msg("uwmock listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}
