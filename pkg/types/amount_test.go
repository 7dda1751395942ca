package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnderwritingResult_FeeIsJSONNumber(t *testing.T) {
	b, err := json.Marshal(UnderwritingResult{Decision: DecisionAccept, AdditionalFee: NewAmount(decimal.RequireFromString("12.5"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"decision":"accept","additionalFee":12.5}`, string(b))

	for _, in := range []string{`{"additionalFee":12.5}`, `{"additionalFee":"12.5"}`} {
		var res UnderwritingResult
		require.NoError(t, json.Unmarshal([]byte(in), &res), in)
		assert.Equal(t, "12.50", res.AdditionalFee.StringFixed(2), in)
	}
}
