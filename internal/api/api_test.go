package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/internal/session"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type call struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// stub answers every request with the handler registered for "METHOD path",
// falling back to an empty success envelope.
type stub struct {
	calls    []call
	handlers map[string]http.HandlerFunc
}

func (s *stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
	if r.Header.Get("Content-Type") == "application/json" {
		_ = json.NewDecoder(r.Body).Decode(&c.Body)
	}
	s.calls = append(s.calls, c)
	if h, ok := s.handlers[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	envelope(w, nil)
}

func envelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "success", "data": data})
}

func setup(t *testing.T, handlers map[string]http.HandlerFunc) (*API, *stub, *session.Session) {
	t.Helper()
	s := &stub{handlers: handlers}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	sess := session.New(session.NewMemoryStorage(), nil)
	c, err := apiclient.New(apiclient.Config{BaseURL: srv.URL, Session: sess, Bus: events.New(events.Options{})})
	require.NoError(t, err)
	return New(c), s, sess
}

func TestAuth_LoginStoresSession(t *testing.T) {
	a, s, sess := setup(t, map[string]http.HandlerFunc{
		"POST /api/auth/login": func(w http.ResponseWriter, r *http.Request) {
			envelope(w, types.LoginResponse{Token: "jwt", User: types.User{ID: 1, Username: "admin", IsAdmin: true}})
		},
	})
	ctx := context.Background()
	resp, err := a.Auth.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.Token)
	assert.Equal(t, map[string]any{"username": "admin", "password": "secret"}, s.calls[0].Body)
	assert.True(t, sess.IsLoggedIn(ctx))
	assert.True(t, sess.IsAdmin(ctx))

	require.NoError(t, a.Auth.Logout(ctx))
	assert.False(t, sess.IsLoggedIn(ctx))
	assert.Equal(t, "/api/auth/logout", s.calls[1].Path)
}

func TestAuth_LogoutClearsSessionOnFailure(t *testing.T) {
	a, _, sess := setup(t, map[string]http.HandlerFunc{
		"GET /api/auth/logout": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})
	ctx := context.Background()
	require.NoError(t, sess.Login(ctx, types.LoginResponse{Token: "t", User: types.User{ID: 1}}))
	err := a.Auth.Logout(ctx)
	require.Error(t, err)
	assert.Equal(t, 500, apiclient.StatusOf(err))
	assert.False(t, sess.IsLoggedIn(ctx))
}

func TestResource_Routes(t *testing.T) {
	a, s, _ := setup(t, nil)
	ctx := context.Background()

	_, err := a.Companies.List(ctx, url.Values{"page": {"1"}})
	require.NoError(t, err)
	_, err = a.Companies.Get(ctx, "3")
	require.NoError(t, err)
	_, err = a.Companies.Create(ctx, types.Company{Name: "Ping An", Code: "PA"})
	require.NoError(t, err)
	_, err = a.Products.Update(ctx, "9", types.Product{Name: "Term Life", Code: "TL"})
	require.NoError(t, err)
	require.NoError(t, a.Rules.Delete(ctx, "r-1"))
	_, err = a.Channels.UpdateStatus(ctx, "4", types.StatusDisabled)
	require.NoError(t, err)
	_, err = a.AIParameters.List(ctx, nil)
	require.NoError(t, err)

	var got []string
	for _, c := range s.calls {
		got = append(got, c.Method+" "+c.Path)
	}
	assert.Equal(t, []string{
		"GET /api/v1/business/companies",
		"GET /api/v1/business/companies/3",
		"POST /api/v1/business/companies",
		"PUT /api/v1/business/products/9",
		"DELETE /api/v1/underwriting/rules/r-1",
		"PATCH /api/v1/business/channels/4/status",
		"GET /api/v1/underwriting/ai-parameter/",
	}, got)
	assert.Equal(t, "1", s.calls[0].Query.Get("page"))
	assert.Equal(t, "disabled", s.calls[5].Body["status"])
}

func TestResource_BusinessErrorRejects(t *testing.T) {
	a, _, _ := setup(t, map[string]http.HandlerFunc{
		"GET /api/v1/business/channels/1": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 404, "message": "channel not found"})
		},
	})
	_, err := a.Channels.Get(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, apiclient.IsBusiness(err))
	assert.EqualError(t, err, "channel not found")
}

func TestRules_Import(t *testing.T) {
	a, _, _ := setup(t, map[string]http.HandlerFunc{
		"POST /api/v1/underwriting/rules/7/import": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "bad format"})
		},
		"POST /api/v1/underwriting/rules/8/import": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "imported 3 rows", "details": "3/3"})
		},
	})
	ctx := context.Background()
	_, err := a.Rules.Import(ctx, "7", "rules.xlsx", []byte("x"))
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "bad format", ie.Message)

	res, err := a.Rules.Import(ctx, "8", "rules.xlsx", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "3/3", res.Details)
}

func TestDecodeImport_EnvelopeStyle(t *testing.T) {
	res, err := DecodeImport([]byte(`{"code":200,"message":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Message)

	_, err = DecodeImport([]byte(`{"code":500}`))
	assert.EqualError(t, err, "import failed")

	_, err = DecodeImport([]byte(`not json`))
	require.Error(t, err)
}

func TestPermissions_CheckIsSilent(t *testing.T) {
	a, s, sess := setup(t, map[string]http.HandlerFunc{
		"GET /api/auth/permissions/check": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("permission") == "rule:delete" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			envelope(w, types.PermissionResult{Permission: r.URL.Query().Get("permission"), Allowed: true})
		},
	})
	ctx := context.Background()
	require.NoError(t, sess.Login(ctx, types.LoginResponse{Token: "t", User: types.User{ID: 1}}))

	ok, err := a.Permissions.Check(ctx, "rule:view")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rule:view", s.calls[0].Query.Get("permission"))

	ok, err = a.Permissions.Check(ctx, "rule:delete")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, sess.IsLoggedIn(ctx), "silent check must keep the session")
}

func TestUnderwriting_QuestionsQuery(t *testing.T) {
	a, s, _ := setup(t, map[string]http.HandlerFunc{
		"GET /api/v1/mobile/questions": func(w http.ResponseWriter, r *http.Request) {
			envelope(w, []types.Question{{ID: 1, DiseaseID: 10, Type: types.QuestionSingle, Content: "Diagnosed within 2 years?", Required: true}})
		},
	})
	qs, err := a.Underwriting.Questions(context.Background(), []int64{10, 11})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, []string{"10", "11"}, s.calls[0].Query["diseaseIds"])
}
