package utilities

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError is an error that carries the status code and the message shown to
// the client. 4xx errors render as status "fail", 5xx as "error".
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

// NewHTTPError builds an *HTTPError.
func NewHTTPError(status int, msg string) *HTTPError {
	return &HTTPError{Status: status, Message: msg}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err. Errors that are not *HTTPError become an opaque 500.
func WriteError(w http.ResponseWriter, err error) {
	var he *HTTPError
	if !errors.As(err, &he) {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Something went wrong"})
		return
	}
	status := "fail"
	if he.Status >= 500 {
		status = "error"
	}
	WriteJSON(w, he.Status, map[string]string{"status": status, "message": he.Message})
}

// DecodeJSON decodes the request body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return nil
}
