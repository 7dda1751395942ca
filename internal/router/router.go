// Package router resolves locations against a route table and applies the
// navigation guard: signed-in users skip the login page, anonymous users are
// sent to it with their destination remembered, unknown paths fall back home.
package router

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/internal/session"
)

const maxRedirects = 10

// ProductLoader prepares the questionnaire for a product before its pages open.
type ProductLoader interface {
	LoadProduct(ctx context.Context, productID int64) error
}

type Config struct {
	Routes  []Route
	Session *session.Session
	Bus     *events.Bus
	// LoginPath defaults to "/login".
	LoginPath string
	// Home is where signed-in users land; defaults to "/dashboard".
	Home string
	// Fallback receives unknown paths and failed product loads; defaults to Home.
	Fallback string
	Products ProductLoader
	Logger   *zerolog.Logger
	Context  context.Context
}

// Location is a resolved navigation target.
type Location struct {
	Path   string
	Name   string
	Title  string
	Params map[string]string
	Query  url.Values
}

// String renders path and query.
func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

type Router struct {
	mux      *chi.Mux
	routes   map[string]Route
	sess     *session.Session
	bus      *events.Bus
	login    string
	home     string
	fallback string
	products ProductLoader
	base     context.Context
	log      zerolog.Logger

	mu      sync.Mutex
	current Location
	sub     events.Subscription
	bound   bool
}

func New(cfg Config) (*Router, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("router: session is required")
	}
	r := &Router{
		mux:      chi.NewRouter(),
		routes:   make(map[string]Route),
		sess:     cfg.Session,
		bus:      cfg.Bus,
		login:    cfg.LoginPath,
		home:     cfg.Home,
		fallback: cfg.Fallback,
		products: cfg.Products,
		base:     cfg.Context,
		log:      zerolog.Nop(),
	}
	if cfg.Logger != nil {
		r.log = cfg.Logger.With().Str("component", "router").Logger()
	}
	if r.login == "" {
		r.login = "/login"
	}
	if r.home == "" {
		r.home = "/dashboard"
	}
	if r.fallback == "" {
		r.fallback = r.home
	}
	if r.base == nil {
		r.base = context.Background()
	}
	if err := r.register("/", cfg.Routes); err != nil {
		return nil, err
	}
	if r.bus != nil {
		r.sub = events.Listen(r.bus, func(e events.Navigate) {
			if _, err := r.Navigate(r.base, e.To); err != nil {
				r.log.Error().Err(err).Str("to", e.To).Msg("navigate")
			}
		})
		r.bound = true
	}
	return r, nil
}

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

func (r *Router) register(parent string, routes []Route) error {
	for _, rt := range routes {
		full := join(parent, rt.Path)
		if len(rt.Children) > 0 {
			if err := r.register(full, rt.Children); err != nil {
				return err
			}
			continue
		}
		pattern := chiPattern(full)
		if _, dup := r.routes[pattern]; dup {
			return fmt.Errorf("router: duplicate route %s", full)
		}
		rt.Path = full
		r.routes[pattern] = rt
		r.mux.Get(pattern, noop)
	}
	return nil
}

func join(parent, p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	if p == "" {
		return path.Clean(parent)
	}
	return path.Clean(parent + "/" + p)
}

// chiPattern converts ":name" segments to "{name}".
func chiPattern(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// Resolve matches p against the table without applying the guard.
func (r *Router) Resolve(p string) (Route, map[string]string, bool) {
	rctx := chi.NewRouteContext()
	if !r.mux.Match(rctx, http.MethodGet, p) {
		return Route{}, nil, false
	}
	rt, ok := r.routes[rctx.RoutePattern()]
	if !ok {
		return Route{}, nil, false
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return rt, params, true
}

// Navigate resolves to, follows redirects and the guard, and makes the
// result the current location.
func (r *Router) Navigate(ctx context.Context, to string) (Location, error) {
	target := to
	for i := 0; i < maxRedirects; i++ {
		u, err := url.Parse(target)
		if err != nil {
			return Location{}, fmt.Errorf("navigate %q: %w", target, err)
		}
		p := u.Path
		if p == "" {
			p = "/"
		}
		rt, params, ok := r.Resolve(p)
		if !ok {
			r.log.Debug().Str("path", p).Str("fallback", r.fallback).Msg("no route")
			target = r.fallback
			continue
		}
		if rt.Redirect != "" {
			target = rt.Redirect
			continue
		}
		loggedIn := r.sess.IsLoggedIn(ctx)
		if p == r.login && loggedIn {
			target = r.home
			continue
		}
		if !rt.Public && !loggedIn {
			if err := r.sess.SetRedirect(ctx, u.RequestURI()); err != nil {
				r.log.Warn().Err(err).Msg("store redirect")
			}
			target = r.login
			continue
		}
		if id, ok := params["productId"]; ok && r.products != nil {
			pid, err := strconv.ParseInt(id, 10, 64)
			if err == nil {
				err = r.products.LoadProduct(ctx, pid)
			}
			if err != nil {
				r.log.Warn().Err(err).Str("productId", id).Msg("product load failed")
				target = r.fallback
				continue
			}
		}
		loc := Location{Path: p, Name: rt.Name, Title: rt.Title, Params: params, Query: u.Query()}
		r.mu.Lock()
		r.current = loc
		r.mu.Unlock()
		r.log.Debug().Str("from", to).Str("to", loc.String()).Msg("navigated")
		return loc, nil
	}
	return Location{}, fmt.Errorf("navigate %q: too many redirects", to)
}

// AfterLogin navigates to the remembered destination, or home.
func (r *Router) AfterLogin(ctx context.Context) (Location, error) {
	dest, err := r.sess.TakeRedirect(ctx)
	if err != nil || dest == "" || dest == r.login {
		dest = r.home
	}
	return r.Navigate(ctx, dest)
}

// Current returns the last resolved location.
func (r *Router) Current() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// CurrentPath is suitable for apiclient.Config.CurrentPath.
func (r *Router) CurrentPath() string {
	return r.Current().Path
}

// Close stops following Navigate events.
func (r *Router) Close() {
	if r.bound {
		r.sub.Unsubscribe()
		r.bound = false
	}
}
