package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CodeOK is the business status code the back-end uses for success on every verb.
const CodeOK = 200

// Envelope is the uniform response body returned by every REST endpoint.
type Envelope struct {
	// Business status code. Only 200 means success, independent of the HTTP status.
	// example: 200
	Code int `json:"code" example:"200"`
	// Human readable message, usually localised by the back-end.
	// example: success
	Message string `json:"message" example:"success"`
	// Operation payload, decoded lazily by callers.
	Data json.RawMessage `json:"data,omitempty"`
	// Optional server timestamp.
	// example: 2024-01-16 10:00:00
	Timestamp string `json:"timestamp,omitempty" example:"2024-01-16 10:00:00"`
}

// OK reports whether the envelope carries the success code.
func (e *Envelope) OK() bool { return e != nil && e.Code == CodeOK }

// Decode unmarshals the envelope data into v. An empty or null payload leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if e == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Page is the paginated list payload.
// The admin back-end names the rows "list", older endpoints use "items".
type Page[T any] struct {
	List     []T `json:"list"`
	Items    []T `json:"items,omitempty"`
	Total    int `json:"total"`
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
}

// Rows returns whichever row slice the server populated.
func (p Page[T]) Rows() []T {
	if len(p.List) > 0 {
		return p.List
	}
	return p.Items
}

// Record is an untyped entity as exchanged by tables and forms.
type Record map[string]any

// ID returns the record's "id" field rendered as a string, or "" when absent.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	switch v := r["id"].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ToRecord converts any JSON-serialisable value into a Record.
func ToRecord(v any) (Record, error) {
	if r, ok := v.(Record); ok {
		return r, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrorResponse is the JSON error payload returned with non-2xx statuses.
type ErrorResponse struct {
	// Error message.
	// example: resource not found
	Message string `json:"message,omitempty" example:"resource not found"`
	// Alternative error field used by some handlers.
	Error string `json:"error,omitempty"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
