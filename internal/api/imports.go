package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/oscarka/underwritingsystem2/internal/apiclient"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Imports lists rule import batches.
type Imports struct {
	c *apiclient.Client
}

func (i *Imports) Records(ctx context.Context, q url.Values) (types.Page[types.ImportRecord], error) {
	return apiclient.Get[types.Page[types.ImportRecord]](ctx, i.c, PrefixImports, &apiclient.Options{Query: q})
}

func (i *Imports) Details(ctx context.Context, batch string) ([]types.ImportDetail, error) {
	return apiclient.Get[[]types.ImportDetail](ctx, i.c, PrefixImports+"/"+url.PathEscape(batch)+"/details", nil)
}

// DecodeImport accepts both the {success, message} and the envelope response styles.
func DecodeImport(body []byte) (types.ImportResult, error) {
	var res types.ImportResult
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("decode import result: %w", err)
	}
	if !res.Succeeded() {
		msg := res.Message
		if msg == "" {
			msg = "import failed"
		}
		return res, &ImportError{Result: res, Message: msg}
	}
	return res, nil
}

// ImportError is an import rejected by the server with a 2xx status.
type ImportError struct {
	Result  types.ImportResult
	Message string
}

func (e *ImportError) Error() string { return e.Message }
