package types

import "github.com/shopspring/decimal"

// Amount is a money value that travels as a JSON number. Quoted strings are
// still accepted on input.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}
