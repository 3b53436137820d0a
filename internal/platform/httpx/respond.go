// Package httpx carries the JSON plumbing behind the live form and session probes.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// MaxBodyBytes bounds the JSON bodies the console accepts.
const MaxBodyBytes = 16 << 10

// ErrBodyTooLarge reports a request body over MaxBodyBytes.
var ErrBodyTooLarge = errors.New("httpx: body too large")

// Message is the body of a JSON error reply.
type Message struct {
	Error string `json:"error"`
}

// JSON writes data with the given status. Replies carry draft values, so they are never cached.
func JSON(w http.ResponseWriter, status int, data any) error {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Fail writes a Message with the standard text of status.
func Fail(w http.ResponseWriter, status int) error {
	return JSON(w, status, Message{Error: http.StatusText(status)})
}

// DecodeJSON reads one JSON object from a bounded body into target.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("httpx: decode body: %w", err)
	}
	return nil
}
