package backend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"favorsweb/internal/domain"
)

// APIError is a non-2xx backend response. Its Error text is the message
// the backend supplied, or a generic one when it supplied none.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return domain.ErrForbidden
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrConflict
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return domain.ErrValidation
	case e.Status >= 500:
		return domain.ErrBackend
	}
	return nil
}

func newAPIError(status int, body []byte, fallback string) *APIError {
	msg := ErrorMessage(body)
	if msg == "" {
		switch {
		case fallback != "":
			msg = fallback
		case !gjson.ValidBytes(body):
			msg = "An error occurred"
		default:
			msg = fmt.Sprintf("HTTP error! status: %d", status)
		}
	}
	return &APIError{Status: status, Message: msg, Body: body}
}

// ErrorMessage extracts a human-readable message from a backend error body:
// "message", then "error" when it is a string, then "error.message".
func ErrorMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"message", "error", "error.message"} {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String {
			if s := strings.TrimSpace(r.Str); s != "" {
				return s
			}
		}
	}
	return ""
}

// TransportError is a failure to reach the backend at all.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{domain.ErrUnavailable, e.Err} }
