// Package session holds the operator's bearer token and profile in durable
// client-side storage. There is no local expiry timer: an expired token is
// detected by the API client when the back-end answers 401.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Fixed storage keys.
const (
	TokenKey    = "token"
	UserKey     = "user"
	RedirectKey = "redirect"
)

// Session reads and writes authentication state through a Storage.
type Session struct {
	store Storage
	log   zerolog.Logger
}

// New wraps store. A nil logger disables logging.
func New(store Storage, logger *zerolog.Logger) *Session {
	s := &Session{store: store, log: zerolog.Nop()}
	if logger != nil {
		s.log = logger.With().Str("component", "session").Logger()
	}
	return s
}

// Token returns the stored bearer token or "".
func (s *Session) Token(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, TokenKey)
	return v, err
}

func (s *Session) SetToken(ctx context.Context, token string) error {
	s.log.Debug().Int("length", len(token)).Msg("token saved")
	return s.store.Set(ctx, TokenKey, token)
}

func (s *Session) RemoveToken(ctx context.Context) error {
	s.log.Debug().Msg("token removed")
	return s.store.Delete(ctx, TokenKey)
}

// User returns the stored profile. A missing or undecodable blob yields (nil, nil);
// the latter is logged since it means the store was written by something else.
func (s *Session) User(ctx context.Context) (*types.User, error) {
	raw, ok, err := s.store.Get(ctx, UserKey)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var u types.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Warn().Err(err).Msg("stored user is not valid JSON")
		return nil, nil
	}
	return &u, nil
}

func (s *Session) SetUser(ctx context.Context, u types.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.log.Debug().Int64("id", u.ID).Str("username", u.Username).Msg("user saved")
	return s.store.Set(ctx, UserKey, string(b))
}

func (s *Session) RemoveUser(ctx context.Context) error {
	return s.store.Delete(ctx, UserKey)
}

// Login stores the token and the profile returned by a successful login.
func (s *Session) Login(ctx context.Context, resp types.LoginResponse) error {
	if resp.Token == "" {
		return fmt.Errorf("login response carries no token")
	}
	if err := s.SetToken(ctx, resp.Token); err != nil {
		return err
	}
	return s.SetUser(ctx, resp.User)
}

// Logout clears token and profile.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.RemoveToken(ctx); err != nil {
		return err
	}
	return s.RemoveUser(ctx)
}

// IsLoggedIn requires both a token and a profile.
func (s *Session) IsLoggedIn(ctx context.Context) bool {
	tok, err := s.Token(ctx)
	if err != nil || tok == "" {
		return false
	}
	u, err := s.User(ctx)
	return err == nil && u != nil
}

func (s *Session) IsAdmin(ctx context.Context) bool {
	u, err := s.User(ctx)
	return err == nil && u != nil && u.IsAdmin
}

// SetRedirect records the path to restore after login.
func (s *Session) SetRedirect(ctx context.Context, path string) error {
	return s.store.Set(ctx, RedirectKey, path)
}

// TakeRedirect returns and clears the stored redirect path.
func (s *Session) TakeRedirect(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, RedirectKey)
	if err != nil || !ok {
		return "", err
	}
	return v, s.store.Delete(ctx, RedirectKey)
}
