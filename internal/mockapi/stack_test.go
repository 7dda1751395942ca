package mockapi_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarka/underwritingsystem2/internal/api"
	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/internal/crud"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/internal/mockapi"
	"github.com/oscarka/underwritingsystem2/internal/permission"
	"github.com/oscarka/underwritingsystem2/internal/session"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type stack struct {
	srv  *mockapi.Server
	bus  *events.Bus
	rec  *events.Recorder
	sess *session.Session
	api  *api.API
}

func newStack(t *testing.T) *stack {
	t.Helper()
	srv, err := mockapi.New(mockapi.Options{})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)

	st := &stack{srv: srv, bus: events.New(events.Options{}), sess: session.New(session.NewMemoryStorage(), nil)}
	st.rec = events.NewRecorder(st.bus, events.KindToast, events.KindUnauthorized, events.KindNavigate)
	c, err := apiclient.New(apiclient.Config{
		BaseURL:     ts.URL,
		Session:     st.sess,
		Bus:         st.bus,
		CurrentPath: func() string { return "/product/channels" },
	})
	require.NoError(t, err)
	st.api = api.New(c)
	return st
}

type memSaver struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memSaver) Save(_ context.Context, name string, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = b
	return nil
}

func TestStack_CoordinatorAgainstMock(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	_, err := st.api.Auth.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.True(t, st.sess.IsLoggedIn(ctx))

	saver := &memSaver{}
	coord, err := crud.New(crud.Config{
		Endpoints: crud.ResourceEndpoints(api.PrefixChannels),
		Form:      crud.FormRules{RequiredFields: []crud.Field{{Name: "name", Label: "Name"}, {Name: "code", Label: "Code"}}},
		Client:    st.api.Client,
		Bus:       st.bus,
		Confirm:   crud.ConfirmFunc(func(context.Context, string) bool { return true }),
		Saver:     saver,
	})
	require.NoError(t, err)

	coord.Add()
	env, err := coord.Submit(ctx, types.Record{"name": "Broker", "code": "BROKER"})
	require.NoError(t, err)
	var created types.Channel
	require.NoError(t, env.Decode(&created))
	assert.Equal(t, "BROKER", created.Code)

	// duplicate code is a business error surfaced as a toast
	coord.Add()
	_, err = coord.Submit(ctx, types.Record{"name": "Again", "code": "BROKER"})
	require.Error(t, err)
	assert.True(t, apiclient.IsBusiness(err))

	name, err := coord.Export(ctx, url.Values{"keyword": {"broker"}})
	require.NoError(t, err)
	assert.Equal(t, "channels.xlsx", name)
	assert.NotEmpty(t, saver.files["channels.xlsx"])

	require.NoError(t, coord.Delete(ctx, api.ID(created.ID)))
	page, err := st.api.Channels.List(ctx, url.Values{"keyword": {"broker"}})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestStack_PermissionGateWithViewer(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	_, err := st.api.Auth.Login(ctx, "viewer", "viewer123")
	require.NoError(t, err)

	gate := permission.New(permission.Config{Bus: st.bus, Check: permission.CheckerFunc(st.api.Permissions.CheckerFunc())})
	defer gate.Close()
	assert.True(t, gate.Check(ctx, "rules:read"))
	assert.False(t, gate.Check(ctx, "rules:write"))

	del := &events.Control{Permission: "channels:write", Interactive: true}
	view := &events.Control{Permission: "channels"}
	assert.Equal(t, 1, gate.Apply(ctx, del, view))
	assert.True(t, del.Disabled)
	assert.False(t, view.Hidden)

	_, err = st.api.Companies.Create(ctx, types.Company{Name: "X", Code: "X"})
	require.Error(t, err)
	assert.True(t, apiclient.IsForbidden(err))
}

func TestStack_ExpiredSessionRedirectsToLogin(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	_, err := st.api.Auth.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	st.srv.ExpireTokens()
	_, err = st.api.Rules.List(ctx, nil)
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.False(t, st.sess.IsLoggedIn(ctx))

	redirect, err := st.sess.TakeRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/product/channels", redirect)
	assert.Equal(t, []events.Event{
		events.Unauthorized{Redirect: "/product/channels"},
		events.Navigate{To: "/login"},
	}, append(st.rec.Of(events.KindUnauthorized), st.rec.Of(events.KindNavigate)...))
}

func TestStack_Questionnaire(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	u := st.api.Underwriting
	p, err := u.Product(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "CI-PLUS", p.Code)
	require.NotNil(t, p.AIParameter)

	found, err := u.SearchDiseases(ctx, "asth")
	require.NoError(t, err)
	require.Len(t, found, 1)
	qs, err := u.Questions(ctx, []int64{found[0].ID})
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}
