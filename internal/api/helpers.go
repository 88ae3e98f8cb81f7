package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rendis/flowlens/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErr maps a structured error to its HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	var e *schema.Error
	if !errors.As(err, &e) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, statusFor(e.Code), errorBody{Error: e.Message, Code: e.Code, Details: e.Details})
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeExpression:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
