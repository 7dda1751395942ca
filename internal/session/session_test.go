package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "sub", "session.json"))
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fs,
		"sqlite": db,
	}
}

func TestStorage_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := st.Get(ctx, "token")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, st.Set(ctx, "token", "abc"))
			require.NoError(t, st.Set(ctx, "token", "def"))
			v, ok, err := st.Get(ctx, "token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "def", v)

			require.NoError(t, st.Delete(ctx, "token"))
			require.NoError(t, st.Delete(ctx, "token"))
			_, ok, err = st.Get(ctx, "token")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "session.json")
	a, err := NewFileStorage(p)
	require.NoError(t, err)
	require.NoError(t, New(a, nil).Login(ctx, types.LoginResponse{Token: "t1", User: types.User{ID: 1, Username: "admin", IsAdmin: true}}))

	b, err := NewFileStorage(p)
	require.NoError(t, err)
	s := New(b, nil)
	assert.True(t, s.IsLoggedIn(ctx))
	assert.True(t, s.IsAdmin(ctx))
}

func TestSession_LoginLogout(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStorage(), nil)
	assert.False(t, s.IsLoggedIn(ctx))

	err := s.Login(ctx, types.LoginResponse{})
	require.Error(t, err)

	require.NoError(t, s.Login(ctx, types.LoginResponse{Token: "tok", User: types.User{ID: 7, Username: "op"}}))
	assert.True(t, s.IsLoggedIn(ctx))
	assert.False(t, s.IsAdmin(ctx))
	u, err := s.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, &types.User{ID: 7, Username: "op"}, u)

	require.NoError(t, s.Logout(ctx))
	assert.False(t, s.IsLoggedIn(ctx))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSession_TokenWithoutUserIsNotLoggedIn(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	s := New(st, nil)
	require.NoError(t, s.SetToken(ctx, "tok"))
	assert.False(t, s.IsLoggedIn(ctx))

	require.NoError(t, st.Set(ctx, UserKey, "{not json"))
	u, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, s.IsLoggedIn(ctx))
}

func TestSession_TakeRedirect(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStorage(), nil)
	r, err := s.TakeRedirect(ctx)
	require.NoError(t, err)
	assert.Empty(t, r)

	require.NoError(t, s.SetRedirect(ctx, "/rule/list"))
	r, err = s.TakeRedirect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/rule/list", r)
	r, _ = s.TakeRedirect(ctx)
	assert.Empty(t, r)
}
