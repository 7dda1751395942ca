package mockapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// requestLevel lets a caller raise or silence logging for one request with
// the X-Log-Level header or the log query parameter.
func requestLevel(r *http.Request, def zerolog.Level) zerolog.Level {
	v := r.URL.Query().Get("log")
	if v == "" {
		v = r.Header.Get("X-Log-Level")
	}
	switch v {
	case "":
		return def
	case "1":
		return zerolog.DebugLevel
	case "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(v); err == nil {
		return l
	}
	return def
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lvl := requestLevel(r, s.log.GetLevel())
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)

		l := s.log.Level(lvl)
		ev := l.Info()
		if sr.status >= 500 {
			ev = l.Error()
		} else if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			ev = l.Debug()
		}
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.status).
			Dur("dur", time.Since(start)).
			Msg("request")
	})
}
