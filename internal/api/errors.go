package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when the backend answers 404 for a resource.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx backend response decoded into a typed error.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// Unwrap lets errors.Is(err, ErrNotFound) work for 404 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// errorBody covers the backend's two error payload shapes.
type errorBody struct {
	Detail string `json:"detail"`
	Err    string `json:"error"`
}

// newAPIError builds an APIError from a response body, falling back to the
// raw body when it is not JSON.
func newAPIError(statusCode int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			return &APIError{StatusCode: statusCode, Detail: eb.Detail}
		case eb.Err != "":
			return &APIError{StatusCode: statusCode, Detail: eb.Err}
		}
	}
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return &APIError{StatusCode: statusCode, Detail: detail}
}
