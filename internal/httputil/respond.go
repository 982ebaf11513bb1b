package httputil

import (
	"encoding/json"
	"net/http"
)

// errorBody is the wire shape for error responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteErrorResponse writes a machine-readable error response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	WriteJSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	WriteJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
		Code:    "unauthorized",
		Message: message,
	}})
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    "bad_request",
		Message: message,
	}})
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	WriteJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{
		Code:    "not_found",
		Message: message,
	}})
}

// InternalError writes a 500 error response.
func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Internal server error"
	}
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "internal_error",
		Message: message,
	}})
}

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 10 << 20

// DecodeJSON decodes a JSON request body into target. On failure it writes a
// 400 response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(target); err != nil {
		BadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}
