package mockapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// Business codes carried in the envelope. HTTP status stays 200.
const (
	codeInvalid  = 400
	codeNotFound = 404
	codeConflict = 409
)

// writeJSONError writes a non-2xx status with the error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Message: msg, Code: status})
}

// writeEnvelope answers 200 with {code, message, data}.
func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	env := struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		Data      any    `json:"data,omitempty"`
		Timestamp string `json:"timestamp"`
	}{code, msg, data, time.Now().Format("2006-01-02 15:04:05")}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, data any) {
	writeEnvelope(w, types.CodeOK, "success", data)
}

// writeFail reports a business failure: HTTP 200 with a non-200 code.
func writeFail(w http.ResponseWriter, code int, msg string) {
	writeEnvelope(w, code, msg, nil)
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
