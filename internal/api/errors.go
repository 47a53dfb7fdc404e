package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/birdtarifa/internal/errors"
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status int
	Detail string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Detail
}

// ErrorCategory lets the error builder inherit a category from the status code.
func (e *HTTPError) ErrorCategory() errors.ErrorCategory {
	return categoryForStatus(e.Status)
}

func categoryForStatus(status int) errors.ErrorCategory {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errors.CategoryConfiguration
	case status == http.StatusTooManyRequests:
		return errors.CategoryLimit
	case status == http.StatusNotFound:
		return errors.CategoryNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return errors.CategoryValidation
	default:
		return errors.CategoryHTTP
	}
}

// StatusCode returns the HTTP status carried by err. ok is false for network
// failures and local errors, which have no status.
func StatusCode(err error) (status int, ok bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, true
	}
	return 0, false
}

// IsNetwork reports whether err is a transport failure without an HTTP status.
func IsNetwork(err error) bool {
	if _, ok := StatusCode(err); ok {
		return false
	}
	return errors.IsCategory(err, errors.CategoryNetwork)
}

// Message returns the single human-readable message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Detail
	}
	return err.Error()
}

// extractDetail picks the message from an error payload: detail, then message,
// then a generic text. FastAPI validation errors carry detail as a list of {msg}.
func extractDetail(payload []byte, status int) string {
	fallback := fmt.Sprintf("request failed with status %d", status)
	if len(payload) == 0 {
		return fallback
	}

	obj, err := jason.NewObjectFromBytes(payload)
	if err != nil {
		return fallback
	}

	if detail, err := obj.GetString("detail"); err == nil && detail != "" {
		return detail
	}

	if items, err := obj.GetObjectArray("detail"); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if msg, err := item.GetString("msg"); err == nil && msg != "" {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	if message, err := obj.GetString("message"); err == nil && message != "" {
		return message
	}

	return fallback
}
