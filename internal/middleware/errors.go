package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorDetail is the body of every error response: {"detail": {...}}.
type ErrorDetail struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorBody struct {
	Detail ErrorDetail `json:"detail"`
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: ErrorDetail{Error: code, Message: msg}})
}
