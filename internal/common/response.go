package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload returned by the order endpoints.
type ErrorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// StatusBody is the payload shape used by the gateway-facing endpoints.
type StatusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders an `{error:true, message}` response.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: true, Message: message})
}

// JSONStatus renders a `{status, message}` response.
func JSONStatus(w http.ResponseWriter, status int, outcome, message string) {
	JSON(w, status, StatusBody{Status: outcome, Message: message})
}
