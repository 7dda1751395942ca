package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Subjects are usernames, grouped into roles. Objects are resource names,
// actions are read or write.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

const (
	roleAdmin  = "role:admin"
	roleViewer = "role:viewer"
)

type account struct {
	password string
	user     types.User
	role     string
}

// authority issues tokens and answers permission questions.
type authority struct {
	enf *casbin.Enforcer

	mu       sync.RWMutex
	accounts map[string]account
	tokens   map[string]types.User
}

func newAuthority(adminUser, adminPass string) (*authority, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("authz: model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}
	policies := [][]string{
		{roleAdmin, "*", "*"},
		{roleViewer, "*", "read"},
	}
	if _, err := enf.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("authz: policies: %w", err)
	}
	a := &authority{
		enf:      enf,
		accounts: make(map[string]account),
		tokens:   make(map[string]types.User),
	}
	a.addAccount(adminUser, adminPass, types.User{ID: 1, Username: adminUser, IsAdmin: true, TenantID: 1}, roleAdmin)
	a.addAccount("viewer", "viewer123", types.User{ID: 2, Username: "viewer", TenantID: 1}, roleViewer)
	return a, nil
}

func (a *authority) addAccount(name, pass string, u types.User, role string) {
	a.accounts[name] = account{password: pass, user: u, role: role}
	_, _ = a.enf.AddGroupingPolicy(name, role)
}

func (a *authority) login(name, pass string) (types.LoginResponse, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.accounts[name]
	if !ok || acc.password != pass {
		return types.LoginResponse{}, false
	}
	tok := uuid.NewString()
	a.tokens[tok] = acc.user
	return types.LoginResponse{Token: tok, User: acc.user}, true
}

func (a *authority) logout(tok string) {
	a.mu.Lock()
	delete(a.tokens, tok)
	a.mu.Unlock()
}

// Revoke drops every issued token, simulating expiry.
func (a *authority) revokeAll() {
	a.mu.Lock()
	a.tokens = make(map[string]types.User)
	a.mu.Unlock()
}

func (a *authority) user(tok string) (types.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u, ok := a.tokens[tok]
	return u, ok
}

// allowed evaluates a "resource:action" permission key. A bare key means read.
func (a *authority) allowed(username, permission string) (bool, error) {
	obj, act, ok := strings.Cut(permission, ":")
	if !ok {
		act = "read"
	}
	return a.enf.Enforce(username, obj, act)
}

type userKey struct{}

func userFrom(ctx context.Context) (types.User, bool) {
	u, ok := ctx.Value(userKey{}).(types.User)
	return u, ok
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// requireToken rejects requests without a live token with 401.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.auth.user(bearer(r))
		if !ok {
			authDenied.WithLabelValues("token").Inc()
			writeJSONError(w, http.StatusUnauthorized, "token invalid or expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// authorize rejects with 403 unless the caller holds obj:act. Safe methods
// need read, everything else write.
func (s *Server) authorize(obj string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, _ := userFrom(r.Context())
			act := "write"
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				act = "read"
			}
			ok, err := s.auth.allowed(u.Username, obj+":"+act)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if !ok {
				authDenied.WithLabelValues("permission").Inc()
				writeJSONError(w, http.StatusForbidden, "no permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeBody(w, r, s.maxBody, &req) {
		return
	}
	resp, ok := s.auth.login(req.Username, req.Password)
	if !ok {
		s.log.Info().Str("username", req.Username).Msg("login rejected")
		writeFail(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	writeOK(w, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.logout(bearer(r))
	writeOK(w, nil)
}

func (s *Server) handlePermissionCheck(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("permission")
	if p == "" {
		writeFail(w, codeInvalid, "permission is required")
		return
	}
	u, _ := userFrom(r.Context())
	ok, err := s.auth.allowed(u.Username, p)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w, types.PermissionResult{Permission: p, Allowed: ok})
}
