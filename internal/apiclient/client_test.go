package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/internal/session"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type fixture struct {
	client *Client
	sess   *session.Session
	bus    *events.Bus
	rec    *events.Recorder
}

func newFixture(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *fixture {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	bus := events.New(events.Options{})
	sess := session.New(session.NewMemoryStorage(), nil)
	cfg := Config{
		BaseURL:     srv.URL,
		Session:     sess,
		Bus:         bus,
		CurrentPath: func() string { return "/rule/list" },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	rec := events.NewRecorder(bus, events.KindToast, events.KindUnauthorized, events.KindNavigate, events.KindLoading)
	return &fixture{client: c, sess: sess, bus: bus, rec: rec}
}

func login(t *testing.T, s *session.Session) {
	t.Helper()
	require.NoError(t, s.Login(context.Background(), types.LoginResponse{Token: "tok", User: types.User{ID: 1, Username: "admin"}}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "http://x"})
	require.Error(t, err)
	_, err = New(Config{BaseURL: "http://x", Session: session.New(session.NewMemoryStorage(), nil)})
	require.Error(t, err)
}

func TestGet_AttachesBearerAndDecodesData(t *testing.T) {
	var auth, query string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		query = r.URL.RawQuery
		writeJSON(w, 200, map[string]any{"code": 200, "message": "ok", "data": map[string]any{"list": []map[string]any{{"id": 1, "name": "Channel A"}}, "total": 1}})
	})
	login(t, f.sess)

	page, err := Get[types.Page[types.Channel]](context.Background(), f.client, "/api/v1/business/channels", &Options{Query: url.Values{"page": {"2"}}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "page=2", query)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Rows(), 1)
	assert.Equal(t, "Channel A", page.Rows()[0].Name)
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	var auth string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, 200, map[string]any{"code": 200})
	})
	_, err := f.client.Do(context.Background(), http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestDo_BusinessCodeIsError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"code": 400, "message": "name already exists"})
	})
	_, err := f.client.Do(context.Background(), http.MethodPost, "/api/v1/business/channels", &Options{Body: map[string]string{"name": "x"}, Toast: true})
	require.Error(t, err)
	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 400, be.Envelope.Code)
	assert.Equal(t, "name already exists", err.Error())
	assert.Equal(t, []events.Toast{{Level: events.LevelError, Message: "name already exists"}}, f.rec.Toasts())
}

func TestDo_401ClearsSessionAndRedirects(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{Message: "token expired", Code: 401})
	})
	ctx := context.Background()
	login(t, f.sess)

	_, err := f.client.Do(ctx, http.MethodGet, "/api/v1/underwriting/rules", nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.True(t, IsSignalled(err))
	assert.False(t, f.sess.IsLoggedIn(ctx))
	redirect, _ := f.sess.TakeRedirect(ctx)
	assert.Equal(t, "/rule/list", redirect)
	assert.Equal(t, []events.Event{
		events.Unauthorized{Redirect: "/rule/list"},
		events.Navigate{To: "/login"},
	}, f.rec.Events())
}

func TestDo_Silent401LeavesSessionAlone(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, types.ErrorResponse{Message: "token expired", Code: 401})
	})
	ctx := context.Background()
	login(t, f.sess)

	_, err := f.client.Do(ctx, http.MethodGet, "/api/auth/permissions/check", &Options{Silent: true})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsSignalled(err))
	assert.True(t, f.sess.IsLoggedIn(ctx))
	assert.Empty(t, f.rec.Events())
}

func TestDo_401OnLoginPageDoesNotStoreRedirect(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func(c *Config) { c.CurrentPath = func() string { return "/login" } })
	ctx := context.Background()

	_, err := f.client.Do(ctx, http.MethodPost, "/api/auth/login", nil)
	require.Error(t, err)
	assert.Equal(t, "http 401: Unauthorized", err.Error())
	r, _ := f.sess.TakeRedirect(ctx)
	assert.Empty(t, r)
	assert.Len(t, f.rec.Of(events.KindUnauthorized), 1)
	assert.Empty(t, f.rec.Of(events.KindNavigate))
}

func TestDo_403ToastsNoPermission(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, types.ErrorResponse{Error: "forbidden", Code: 403})
	})
	_, err := f.client.Do(context.Background(), http.MethodDelete, "/x/1", &Options{Toast: true})
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, "forbidden", Message(err))
	assert.Equal(t, []events.Toast{{Level: events.LevelError, Message: MsgForbidden}}, f.rec.Toasts())
}

func TestDo_OfflineDoesNotDispatch(t *testing.T) {
	hits := 0
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) { hits++ },
		func(c *Config) {
			c.Connectivity = ConnectivityFunc(func(context.Context) bool { return false })
		})
	_, err := f.client.Do(context.Background(), http.MethodGet, "/x", &Options{Toast: true})
	require.ErrorIs(t, err, ErrOffline)
	assert.Zero(t, hits)
	assert.Equal(t, []events.Toast{{Level: events.LevelError, Message: MsgOffline}}, f.rec.Toasts())
}

func TestDo_LoadingEvents(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"code": 200})
	})
	_, err := f.client.Do(context.Background(), http.MethodGet, "/x", &Options{Loading: true})
	require.NoError(t, err)
	assert.Equal(t, []events.Event{
		events.Loading{Op: "GET /x", Active: true},
		events.Loading{Op: "GET /x", Active: false},
	}, f.rec.Of(events.KindLoading))
}

func TestUpload_SingleFileField(t *testing.T) {
	var field, filename, ctype string
	var content []byte
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Len(t, r.MultipartForm.File, 1)
		for name, fhs := range r.MultipartForm.File {
			field = name
			filename = fhs[0].Filename
			ctype = fhs[0].Header.Get("Content-Type")
			fh, _ := fhs[0].Open()
			content, _ = io.ReadAll(fh)
		}
		writeJSON(w, 200, map[string]any{"success": true, "message": "imported"})
	})
	resp, err := f.client.Upload(context.Background(), "/api/v1/underwriting/rules/import", "rules.csv", []byte("name,code\nA,1\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "file", field)
	assert.Equal(t, "rules.csv", filename)
	assert.Contains(t, ctype, "text/")
	assert.Equal(t, "name,code\nA,1\n", string(content))
}

func TestDownload_FilenameAndEnvelopeErrors(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") == "1" {
			writeJSON(w, 200, map[string]any{"code": 500, "message": "export failed"})
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="rules-2024.xlsx"`)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("PK"))
	})
	ctx := context.Background()
	resp, err := f.client.Download(ctx, "/export", nil)
	require.NoError(t, err)
	assert.Equal(t, "rules-2024.xlsx", resp.Filename("export.xlsx"))
	assert.Equal(t, []byte("PK"), resp.Body)

	_, err = f.client.Download(ctx, "/export", &Options{Query: url.Values{"fail": {"1"}}})
	require.Error(t, err)
	assert.True(t, IsBusiness(err))

	assert.Equal(t, "export.xlsx", (&Response{Header: http.Header{}}).Filename("export.xlsx"))
}

func TestDialProbe(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	p, err := NewDialProbe(srv.URL, 0)
	require.NoError(t, err)
	assert.True(t, p.Online(context.Background()))
	srv.Close()
	assert.False(t, p.Online(context.Background()))

	p, err = NewDialProbe("https://example.invalid", 0)
	require.NoError(t, err)
	assert.Equal(t, "example.invalid:443", p.Addr)
}
