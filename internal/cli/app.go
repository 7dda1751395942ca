// Package cli implements uwctl, an operator console that drives the admin
// and mobile APIs through the same bus, coordinator and gate a UI uses.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/api"
	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/internal/config"
	"github.com/oscarka/underwritingsystem2/internal/crud"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/internal/logging"
	"github.com/oscarka/underwritingsystem2/internal/permission"
	"github.com/oscarka/underwritingsystem2/internal/router"
	"github.com/oscarka/underwritingsystem2/internal/session"
)

// App is the wiring shared by all commands of one invocation.
type App struct {
	Cfg config.Config
	Log zerolog.Logger
	Out io.Writer
	Err io.Writer
	in  *bufio.Reader
	yes bool

	Bus     *events.Bus
	Session *session.Session
	API     *api.API
	Router  *router.Router
	Gate    *permission.Gate

	closers []func() error
	mu      sync.Mutex
}

func openStorage(cfg config.SessionConfig) (session.Storage, func() error, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryStorage(), nil, nil
	case "file":
		s, err := session.NewFileStorage(cfg.Path)
		return s, nil, err
	case "sqlite":
		s, err := session.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

// NewApp builds the client stack from cfg. store overrides the configured
// session backend when non-nil.
func NewApp(cfg config.Config, store session.Storage, in io.Reader, out, errw io.Writer) (*App, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, errw)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: log, Out: out, Err: errw, in: bufio.NewReader(in)}
	if store == nil {
		var closer func() error
		store, closer, err = openStorage(cfg.Session)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	a.Bus = events.New(events.Options{Logger: &a.Log})
	a.Session = session.New(store, &a.Log)

	a.Router, err = router.New(router.Config{
		Routes:    router.AdminRoutes(),
		Session:   a.Session,
		Bus:       a.Bus,
		LoginPath: cfg.API.LoginPath,
		Logger:    &a.Log,
	})
	if err != nil {
		return nil, err
	}
	probe, err := apiclient.NewDialProbe(cfg.API.BaseURL, 0)
	if err != nil {
		return nil, err
	}
	client, err := apiclient.New(apiclient.Config{
		BaseURL:      cfg.API.BaseURL,
		Timeout:      cfg.API.Timeout.D(),
		Session:      a.Session,
		Bus:          a.Bus,
		Connectivity: probe,
		CurrentPath:  a.Router.CurrentPath,
		LoginPath:    cfg.API.LoginPath,
		Logger:       &a.Log,
	})
	if err != nil {
		return nil, err
	}
	a.API = api.New(client)
	a.Gate = permission.New(permission.Config{
		Bus:           a.Bus,
		Check:         permission.CheckerFunc(a.API.Permissions.CheckerFunc()),
		CacheDuration: cfg.Permission.CacheDuration.D(),
		Logger:        &a.Log,
	})
	a.closers = append(a.closers, func() error { a.Gate.Close(); return nil })

	events.Listen(a.Bus, func(t events.Toast) {
		a.mu.Lock()
		defer a.mu.Unlock()
		fmt.Fprintf(a.Err, "[%s] %s\n", t.Level, t.Message)
	})
	return a, nil
}

// Close releases the session store and bus subscriptions.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.Router.Close()
	return first
}

// Confirm asks on the terminal unless --yes was given.
func (a *App) Confirm(_ context.Context, msg string) bool {
	if a.yes {
		return true
	}
	fmt.Fprintf(a.Err, "%s [y/N]: ", msg)
	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Coordinator builds a CRUD coordinator for resource. Exports land in dir.
func (a *App) Coordinator(resource, dir string) (*crud.Coordinator, error) {
	ep, err := a.Cfg.Endpoints(resource)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	return crud.New(crud.Config{
		Endpoints: ep,
		Form:      crud.FormRules{RequiredFields: requiredFields[resource]},
		Client:    a.API.Client,
		Bus:       a.Bus,
		Confirm:   crud.ConfirmFunc(a.Confirm),
		Saver:     crud.DirSaver{Dir: dir},
		Logger:    &a.Log,
	})
}

var requiredFields = map[string][]crud.Field{
	"rules":         {{Name: "name", Label: "Name"}},
	"ai-parameters": {{Name: "name", Label: "Name"}},
	"channels":      {{Name: "name", Label: "Name"}, {Name: "code", Label: "Code"}},
	"companies":     {{Name: "name", Label: "Name"}, {Name: "code", Label: "Code"}},
	"products":      {{Name: "name", Label: "Name"}, {Name: "code", Label: "Code"}},
}
