package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Auth logs operators in and out.
type Auth struct {
	c *apiclient.Client
}

// Login posts the credentials and stores the returned token and profile.
func (a *Auth) Login(ctx context.Context, username, password string) (types.LoginResponse, error) {
	resp, err := apiclient.Post[types.LoginResponse](ctx, a.c, "/api/auth/login",
		types.LoginRequest{Username: username, Password: password},
		&apiclient.Options{Loading: true, Silent: true})
	if err != nil {
		return resp, err
	}
	if err := a.c.Session().Login(ctx, resp); err != nil {
		return resp, fmt.Errorf("store session: %w", err)
	}
	return resp, nil
}

// Logout notifies the back-end and clears the local session even when the call fails.
func (a *Auth) Logout(ctx context.Context) error {
	_, callErr := a.c.Do(ctx, http.MethodGet, "/api/auth/logout", &apiclient.Options{Silent: true})
	if err := a.c.Session().Logout(ctx); err != nil {
		return err
	}
	return callErr
}
