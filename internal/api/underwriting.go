package api

import (
	"context"
	"net/url"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Underwriting wraps the mobile questionnaire endpoints.
type Underwriting struct {
	c *apiclient.Client
}

func (u *Underwriting) Product(ctx context.Context, id int64) (types.Product, error) {
	return apiclient.Get[types.Product](ctx, u.c, PrefixMobile+"/products/"+ID(id), &apiclient.Options{Loading: true})
}

func (u *Underwriting) AIParameter(ctx context.Context, productID int64) (types.ProductAIParameter, error) {
	return apiclient.Get[types.ProductAIParameter](ctx, u.c, PrefixMobile+"/products/"+ID(productID)+"/ai-parameter", nil)
}

func (u *Underwriting) Diseases(ctx context.Context, productID int64) ([]types.Disease, error) {
	return apiclient.Get[[]types.Disease](ctx, u.c, PrefixMobile+"/products/"+ID(productID)+"/diseases", nil)
}

// SearchDiseases runs the server-side keyword search.
func (u *Underwriting) SearchDiseases(ctx context.Context, keyword string) ([]types.Disease, error) {
	return apiclient.Get[[]types.Disease](ctx, u.c, PrefixMobile+"/diseases/search",
		&apiclient.Options{Query: url.Values{"keyword": {keyword}}})
}

// Questions loads the questions attached to the given diseases.
func (u *Underwriting) Questions(ctx context.Context, diseaseIDs []int64) ([]types.Question, error) {
	q := url.Values{}
	for _, id := range diseaseIDs {
		q.Add("diseaseIds", ID(id))
	}
	return apiclient.Get[[]types.Question](ctx, u.c, PrefixMobile+"/questions", &apiclient.Options{Query: q, Loading: true})
}

func (u *Underwriting) Evaluate(ctx context.Context, req types.EvaluateRequest) (types.UnderwritingResult, error) {
	return apiclient.Post[types.UnderwritingResult](ctx, u.c, PrefixMobile+"/underwriting/evaluate", req,
		&apiclient.Options{Loading: true, Toast: true})
}

func (u *Underwriting) SaveUserInfo(ctx context.Context, info types.UserInfo) error {
	_, err := apiclient.Post[struct{}](ctx, u.c, PrefixMobile+"/user-info", info, &apiclient.Options{Toast: true})
	return err
}

func (u *Underwriting) CreateOrder(ctx context.Context, req types.CreateOrderRequest) (types.Order, error) {
	return apiclient.Post[types.Order](ctx, u.c, PrefixMobile+"/orders", req, &apiclient.Options{Loading: true, Toast: true})
}

func (u *Underwriting) Order(ctx context.Context, id int64) (types.Order, error) {
	return apiclient.Get[types.Order](ctx, u.c, PrefixMobile+"/orders/"+ID(id), nil)
}
