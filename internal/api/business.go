package api

import (
	"context"
	"net/url"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Channels wraps the sales channel endpoints.
type Channels struct {
	*Resource[types.Channel]
}

// ListPublic lists channels without authentication.
func (ch *Channels) ListPublic(ctx context.Context, q url.Values) (types.Page[types.Channel], error) {
	return apiclient.Get[types.Page[types.Channel]](ctx, ch.c, ch.prefix+"/public", &apiclient.Options{Query: q, Silent: true})
}

// UpdateStatus toggles a channel between enabled and disabled.
func (ch *Channels) UpdateStatus(ctx context.Context, id string, status types.Status) (types.Channel, error) {
	o := ch.mutate
	return apiclient.Patch[types.Channel](ctx, ch.c, ch.Path(id)+"/status", types.StatusUpdate{Status: status}, &o)
}

// ProductTypes is read-only.
type ProductTypes struct {
	c *apiclient.Client
}

func (p *ProductTypes) List(ctx context.Context) ([]types.ProductType, error) {
	return apiclient.Get[[]types.ProductType](ctx, p.c, PrefixProductTypes, nil)
}

func (p *ProductTypes) Get(ctx context.Context, id string) (types.ProductType, error) {
	return apiclient.Get[types.ProductType](ctx, p.c, PrefixProductTypes+"/"+url.PathEscape(id), nil)
}
