// Package httpx provides HTTP response utilities for the JSON API.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const maxBodyBytes = 10 << 10

// Envelope is the response body shape shared by every endpoint.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success sends {status:"success", data}.
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Status: "success", Data: data})
}

// Fail sends {status, message}, where status is "fail" for 4xx and "error" otherwise.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Status: StatusWord(status), Message: message})
}

// StatusWord returns the envelope status for an HTTP code.
func StatusWord(code int) string {
	if code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}

// DecodeJSON decodes a size-limited JSON request body into the target struct.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body must not be larger than %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	return nil
}
