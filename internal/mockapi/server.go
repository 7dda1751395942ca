// Package mockapi is an in-memory development back-end speaking the
// {code, message, data} contract of the underwriting admin and mobile APIs.
// Records live in memory, permissions are casbin policies, import and export
// use xlsx workbooks, and every evaluation ends in manual review.
package mockapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/api"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type Options struct {
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins   []string
	AdminUser     string
	AdminPassword string
	// MaxBodyBytes limits JSON bodies (default 1 MiB).
	MaxBodyBytes int64
	// MaxUploadBytes limits import uploads (default 10 MiB).
	MaxUploadBytes int64
	Logger         *zerolog.Logger
}

type Server struct {
	log       zerolog.Logger
	auth      *authority
	cors      []string
	maxBody   int64
	maxUpload int64

	rules     *collection
	aiParams  *collection
	channels  *collection
	companies *collection
	products  *collection

	imports *importLog
	catalog catalog
	orders  *orderBook
}

func New(opts Options) (*Server, error) {
	if opts.AdminUser == "" {
		opts.AdminUser, opts.AdminPassword = "admin", "admin123"
	}
	auth, err := newAuthority(opts.AdminUser, opts.AdminPassword)
	if err != nil {
		return nil, err
	}
	s := &Server{
		log:       zerolog.Nop(),
		auth:      auth,
		cors:      opts.CORSOrigins,
		maxBody:   opts.MaxBodyBytes,
		maxUpload: opts.MaxUploadBytes,
		rules:     newCollection("rules", []string{"id", "name", "version", "status", "description"}, "name"),
		aiParams:  newCollection("ai-parameters", []string{"id", "name", "code", "type_id", "rule_id", "status"}, "name"),
		channels:  newCollection("channels", []string{"id", "name", "code", "status", "description"}, "name", "code"),
		companies: newCollection("companies", []string{"id", "name", "code", "status", "description"}, "name", "code"),
		products:  newCollection("products", []string{"id", "name", "code", "status"}, "name", "code"),
		imports:   newImportLog(),
		orders:    &orderBook{orders: make(map[int64]types.Order)},
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "mockapi").Logger()
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 10 << 20
	}
	s.rules.stringIDs = true
	s.seed()
	return s, nil
}

// ExpireTokens revokes every issued token so the next call answers 401.
func (s *Server) ExpireTokens() { s.auth.revokeAll() }

// Mux builds the HTTP handler.
func (s *Server) Mux() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Recoverer)
	if len(s.cors) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cors,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Log-Level"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/api/auth/logout", s.handleLogout)
	r.With(s.requireToken).Get("/api/auth/permissions/check", s.handlePermissionCheck)

	s.mountResource(r, api.PrefixRules, s.rules, nil, func(r chi.Router) {
		r.Post("/{id}/import", s.importRule)
		r.Get("/{id}/disease-categories", s.ruleChild(func() any { return s.categories() }))
		r.Get("/{id}/diseases", s.ruleChild(func() any { return s.catalog.diseases }))
		r.Get("/{id}/questions", s.ruleChild(func() any { return s.catalog.questions }))
		r.Get("/{id}/answers", s.ruleChild(func() any { return []types.Answer{} }))
	})
	s.mountResource(r, api.PrefixAIParameters, s.aiParams, nil, func(r chi.Router) {
		r.Get("/types", func(w http.ResponseWriter, r *http.Request) { writeOK(w, s.catalog.aiTypes) })
	})
	s.mountResource(r, api.PrefixChannels, s.channels, func(r chi.Router) {
		r.Get("/public", s.list(s.channels))
	}, func(r chi.Router) {
		r.Patch("/{id}/status", s.handleChannelStatus)
	})
	s.mountResource(r, api.PrefixCompanies, s.companies, nil, nil)
	s.mountResource(r, api.PrefixProducts, s.products, nil, nil)

	r.Route(api.PrefixProductTypes, func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { writeOK(w, s.catalog.prodTypes) })
		r.Get("/{id}", s.handleProductType)
	})
	r.Route(api.PrefixImports, func(r chi.Router) {
		r.Use(s.requireToken, s.authorize("rules"))
		r.Get("/", s.handleImportRecords)
		r.Get("/{batch}/details", s.handleImportDetails)
	})
	s.mountMobile(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

func (s *Server) ruleChild(data func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.rules.get(chi.URLParam(r, "id")); !ok {
			writeJSONError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeOK(w, data())
	}
}

func (s *Server) categories() []types.DiseaseCategory {
	seen := map[string]bool{}
	var out []types.DiseaseCategory
	for _, d := range s.catalog.diseases {
		if seen[d.Category] {
			continue
		}
		seen[d.Category] = true
		out = append(out, types.DiseaseCategory{ID: int64(len(out) + 1), Name: d.Category, Code: d.Category})
	}
	return out
}

func (s *Server) handleChannelStatus(w http.ResponseWriter, r *http.Request) {
	var req types.StatusUpdate
	if !decodeBody(w, r, s.maxBody, &req) {
		return
	}
	if req.Status != types.StatusEnabled && req.Status != types.StatusDisabled {
		writeFail(w, codeInvalid, "status must be enabled or disabled")
		return
	}
	out, ok := s.channels.update(chi.URLParam(r, "id"), types.Record{"status": string(req.Status)})
	if !ok {
		writeJSONError(w, http.StatusNotFound, "channel not found")
		return
	}
	writeOK(w, out)
}

func (s *Server) handleProductType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, pt := range s.catalog.prodTypes {
		if api.ID(pt.ID) == id {
			writeOK(w, pt)
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, "product type not found")
}
