// Package permission answers "may the current user do X" with a time-bounded
// cache in front of the back-end check, and applies the answer to controls
// at render time.
package permission

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/oscarka/underwritingsystem2/internal/events"
)

const (
	DefaultCacheDuration = 5 * time.Minute
	// DeniedTitle is set on interactive controls disabled by the default handler.
	DeniedTitle = "no permission"
)

// Checker resolves a permission key against the back-end.
type Checker interface {
	Check(ctx context.Context, permission string) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, permission string) (bool, error)

func (f CheckerFunc) Check(ctx context.Context, permission string) (bool, error) {
	return f(ctx, permission)
}

// Config wires a Gate. Without a Checker every non-empty key is denied.
type Config struct {
	Bus           *events.Bus
	Check         Checker
	CacheDuration time.Duration
	// OnDenied replaces the default disable-or-hide treatment.
	OnDenied func(*events.Control)
	Logger   *zerolog.Logger
	Now      func() time.Time
	// Context is used for checks triggered by bus events.
	Context context.Context
}

type entry struct {
	allowed bool
	at      time.Time
}

// Gate caches permission decisions.
type Gate struct {
	check    Checker
	ttl      time.Duration
	onDenied func(*events.Control)
	now      func() time.Time
	base     context.Context
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[string]entry
	// gen counts ClearCache calls; lookups started under an older
	// generation neither write the cache nor share flights with newer ones.
	gen   uint64
	group singleflight.Group
	subs  []events.Subscription
}

// New builds a Gate. When Bus is set the gate clears its cache on
// Unauthorized and answers PermissionCheck events.
func New(cfg Config) *Gate {
	g := &Gate{
		check:    cfg.Check,
		ttl:      cfg.CacheDuration,
		onDenied: cfg.OnDenied,
		now:      cfg.Now,
		base:     cfg.Context,
		log:      zerolog.Nop(),
		cache:    make(map[string]entry),
	}
	if cfg.Logger != nil {
		g.log = cfg.Logger.With().Str("component", "permission").Logger()
	}
	if g.ttl <= 0 {
		g.ttl = DefaultCacheDuration
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.base == nil {
		g.base = context.Background()
	}
	if g.onDenied == nil {
		g.onDenied = Deny
	}
	if cfg.Bus != nil {
		g.subs = append(g.subs,
			events.Listen(cfg.Bus, func(events.Unauthorized) { g.ClearCache() }),
			events.Listen(cfg.Bus, func(e events.PermissionCheck) {
				if e.Control == nil {
					g.Check(g.base, e.Permission)
					return
				}
				if e.Control.Permission == "" {
					e.Control.Permission = e.Permission
				}
				g.Apply(g.base, e.Control)
			}),
		)
	}
	return g
}

// Check reports whether permission is granted. The empty key is always granted.
// Checker failures count as denied and are cached like any other answer,
// except a cancelled or expired ctx, which is not cached.
func (g *Gate) Check(ctx context.Context, permission string) bool {
	if permission == "" {
		return true
	}
	g.mu.Lock()
	e, ok := g.cache[permission]
	gen := g.gen
	g.mu.Unlock()
	if ok && g.now().Sub(e.at) < g.ttl {
		return e.allowed
	}

	v, _, _ := g.group.Do(flightKey(gen, permission), func() (any, error) {
		allowed := false
		if g.check != nil {
			var err error
			allowed, err = g.check.Check(ctx, permission)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					g.log.Debug().Err(err).Str("permission", permission).Msg("permission check abandoned")
					return false, nil
				}
				g.log.Warn().Err(err).Str("permission", permission).Msg("permission check failed")
				allowed = false
			}
		}
		g.mu.Lock()
		if g.gen == gen {
			g.cache[permission] = entry{allowed: allowed, at: g.now()}
		}
		g.mu.Unlock()
		return allowed, nil
	})
	return v.(bool)
}

func flightKey(gen uint64, permission string) string {
	return strconv.FormatUint(gen, 10) + "/" + permission
}

// ClearCache drops the given keys, or everything when none are given.
// Lookups in flight when the cache is cleared do not repopulate it.
func (g *Gate) ClearCache(keys ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	if len(keys) == 0 {
		g.cache = make(map[string]entry)
		return
	}
	for _, k := range keys {
		delete(g.cache, k)
	}
}

// Apply checks every control and runs the denial handler on those refused.
// It returns the number of denied controls.
func (g *Gate) Apply(ctx context.Context, controls ...*events.Control) int {
	denied := 0
	for _, c := range controls {
		if c == nil || g.Check(ctx, c.Permission) {
			continue
		}
		denied++
		g.onDenied(c)
	}
	return denied
}

// Deny disables interactive controls and hides the rest.
func Deny(c *events.Control) {
	if c.Interactive {
		c.Disabled = true
		c.Title = DeniedTitle
		return
	}
	c.Hidden = true
}

// Close detaches the gate from the bus.
func (g *Gate) Close() {
	for _, s := range g.subs {
		s.Unsubscribe()
	}
	g.subs = nil
}
