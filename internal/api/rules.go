package api

import (
	"context"
	"net/url"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Rules wraps the underwriting rule endpoints.
type Rules struct {
	*Resource[types.Rule]
}

// Import uploads a rule workbook for rule id.
func (r *Rules) Import(ctx context.Context, id, filename string, content []byte) (types.ImportResult, error) {
	var out types.ImportResult
	resp, err := r.c.Upload(ctx, r.Path(id)+"/import", filename, content, &apiclient.Options{Loading: true, Toast: true})
	if err != nil {
		return out, err
	}
	return DecodeImport(resp.Body)
}

// Export downloads the workbook of rule id.
func (r *Rules) Export(ctx context.Context, id string) (*apiclient.Response, error) {
	return r.c.Download(ctx, r.Path(id)+"/export", &apiclient.Options{Loading: true, Toast: true})
}

func (r *Rules) DiseaseCategories(ctx context.Context, id string) ([]types.DiseaseCategory, error) {
	return apiclient.Get[[]types.DiseaseCategory](ctx, r.c, r.Path(id)+"/disease-categories", nil)
}

func (r *Rules) Diseases(ctx context.Context, id string) ([]types.Disease, error) {
	return apiclient.Get[[]types.Disease](ctx, r.c, r.Path(id)+"/diseases", nil)
}

func (r *Rules) Questions(ctx context.Context, id string) ([]types.Question, error) {
	return apiclient.Get[[]types.Question](ctx, r.c, r.Path(id)+"/questions", &apiclient.Options{Loading: true})
}

func (r *Rules) Answers(ctx context.Context, id string) ([]types.Answer, error) {
	return apiclient.Get[[]types.Answer](ctx, r.c, r.Path(id)+"/answers", &apiclient.Options{Loading: true})
}

// AIParameters wraps the AI parameter endpoints. The collection URL carries a
// trailing slash on the back-end.
type AIParameters struct {
	*Resource[types.AIParameter]
}

func (a *AIParameters) List(ctx context.Context, q url.Values) (types.Page[types.AIParameter], error) {
	return apiclient.Get[types.Page[types.AIParameter]](ctx, a.c, a.prefix+"/", &apiclient.Options{Query: q})
}

func (a *AIParameters) Create(ctx context.Context, v types.AIParameter) (types.AIParameter, error) {
	o := a.mutate
	return apiclient.Post[types.AIParameter](ctx, a.c, a.prefix+"/", v, &o)
}

func (a *AIParameters) Types(ctx context.Context) ([]types.AIParameterType, error) {
	return apiclient.Get[[]types.AIParameterType](ctx, a.c, a.prefix+"/types", nil)
}
