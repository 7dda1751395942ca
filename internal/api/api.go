// Package api holds one wrapper per back-end operation. Every wrapper returns
// the decoded envelope data when the envelope code is 200 and an error otherwise.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Endpoint prefixes.
const (
	PrefixRules        = "/api/v1/underwriting/rules"
	PrefixAIParameters = "/api/v1/underwriting/ai-parameter"
	PrefixChannels     = "/api/v1/business/channels"
	PrefixCompanies    = "/api/v1/business/companies"
	PrefixProducts     = "/api/v1/business/products"
	PrefixProductTypes = "/api/v1/business/product-types"
	PrefixMobile       = "/api/v1/mobile"
	PrefixImports      = "/rules/import/records"
)

// API groups the wrappers around a shared client.
type API struct {
	Client       *apiclient.Client
	Auth         *Auth
	Rules        *Rules
	AIParameters *AIParameters
	Channels     *Channels
	Companies    *Resource[types.Company]
	Products     *Resource[types.Product]
	ProductTypes *ProductTypes
	Imports      *Imports
	Underwriting *Underwriting
	Permissions  *Permissions
}

func New(c *apiclient.Client) *API {
	return &API{
		Client:       c,
		Auth:         &Auth{c: c},
		Rules:        &Rules{Resource: NewResource[types.Rule](c, PrefixRules)},
		AIParameters: &AIParameters{Resource: NewResource[types.AIParameter](c, PrefixAIParameters)},
		Channels:     &Channels{Resource: NewResource[types.Channel](c, PrefixChannels)},
		Companies:    NewResource[types.Company](c, PrefixCompanies),
		Products:     NewResource[types.Product](c, PrefixProducts),
		ProductTypes: &ProductTypes{c: c},
		Imports:      &Imports{c: c},
		Underwriting: &Underwriting{c: c},
		Permissions:  &Permissions{c: c},
	}
}

// Resource is the list/get/create/update/delete surface shared by admin entities.
type Resource[T any] struct {
	c      *apiclient.Client
	prefix string
	// Mutations show the loading indicator and an error toast.
	mutate apiclient.Options
}

func NewResource[T any](c *apiclient.Client, prefix string) *Resource[T] {
	return &Resource[T]{
		c:      c,
		prefix: strings.TrimRight(prefix, "/"),
		mutate: apiclient.Options{Loading: true, Toast: true},
	}
}

// Path returns the resource URL for id, or the collection URL when id is empty.
func (r *Resource[T]) Path(id string) string {
	if id == "" {
		return r.prefix
	}
	return r.prefix + "/" + url.PathEscape(id)
}

func (r *Resource[T]) List(ctx context.Context, q url.Values) (types.Page[T], error) {
	return apiclient.Get[types.Page[T]](ctx, r.c, r.prefix, &apiclient.Options{Query: q})
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	return apiclient.Get[T](ctx, r.c, r.Path(id), nil)
}

func (r *Resource[T]) Create(ctx context.Context, v T) (T, error) {
	o := r.mutate
	return apiclient.Post[T](ctx, r.c, r.prefix, v, &o)
}

func (r *Resource[T]) Update(ctx context.Context, id string, v T) (T, error) {
	o := r.mutate
	return apiclient.Put[T](ctx, r.c, r.Path(id), v, &o)
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	o := r.mutate
	_, err := r.c.Do(ctx, http.MethodDelete, r.Path(id), &o)
	return err
}

// ID formats a numeric identifier for path templates.
func ID(id int64) string { return strconv.FormatInt(id, 10) }
