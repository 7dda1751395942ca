package api

import (
	"context"
	"net/url"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Permissions asks the back-end whether the current user holds a permission.
type Permissions struct {
	c *apiclient.Client
}

// Check is silent: a 401 here must not log the user out.
func (p *Permissions) Check(ctx context.Context, permission string) (bool, error) {
	res, err := apiclient.Get[types.PermissionResult](ctx, p.c, "/api/auth/permissions/check",
		&apiclient.Options{Query: url.Values{"permission": {permission}}, Silent: true})
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// CheckerFunc adapts Check to the permission gate's checker signature.
func (p *Permissions) CheckerFunc() func(ctx context.Context, permission string) (bool, error) {
	return p.Check
}
