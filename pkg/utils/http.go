package utils

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Envelope is the uniform response body for session API endpoints.
type Envelope struct {
	Success bool        `json:"success"`
	Reason  string      `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONError writes a JSON error response with the given status code and
// message. It ensures the Content-Type is set to application/json.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONWrite writes the provided value as JSON with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}

// Success writes a successful envelope, optionally carrying data.
func Success(w http.ResponseWriter, data interface{}) {
	_ = JSONWrite(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Failure writes an unsuccessful envelope with a reason. The status stays
// 200 so widget clients surface the reason instead of a transport error.
func Failure(w http.ResponseWriter, reason string) {
	_ = JSONWrite(w, http.StatusOK, Envelope{Success: false, Reason: reason})
}

// GenMessageID returns a fresh message id.
func GenMessageID() string {
	return uuid.NewString()
}

// GenSessionID returns a fresh session id.
func GenSessionID() string {
	return uuid.NewString()
}
