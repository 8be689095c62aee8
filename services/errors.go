package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingAPIKey is returned by constructors when a required credential is absent
var ErrMissingAPIKey = errors.New("API key not configured")

// ErrorPayloadError is returned when an LLM endpoint answers with an error object.
// Payload holds the error object as returned (JSON or plain text).
type ErrorPayloadError struct {
	StatusCode int
	Payload    string
}

func (e *ErrorPayloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("endpoint returned error (status %d): %s", e.StatusCode, e.Payload)
	}
	return "endpoint returned error: " + e.Payload
}

// UnexpectedResponseError is returned when a response parses but carries no usable answer.
// Body holds the raw response.
type UnexpectedResponseError struct {
	Body string
}

func (e *UnexpectedResponseError) Error() string {
	return "unexpected response: " + e.Body
}

// StatusError is a non-2xx HTTP answer from a data provider
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// checkStatus maps a non-2xx response to a StatusError. Client errors other
// than 429 are marked permanent so they are neither retried nor counted
// against the circuit breaker.
func checkStatus(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	err := &StatusError{Service: service, StatusCode: resp.StatusCode, Body: snippet}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}

// categorizeAPIError categorizes an error for metrics purposes
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}

	var status *StatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden:
			return "auth_error"
		case status.StatusCode == http.StatusNotFound:
			return "not_found"
		case status.StatusCode >= 500:
			return "server_error"
		}
	}
	var payload *ErrorPayloadError
	if errors.As(err, &payload) {
		return "error_payload"
	}
	var unexpected *UnexpectedResponseError
	if errors.As(err, &unexpected) {
		return "unexpected_response"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return "circuit_open"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "timeout", "deadline"):
		return "timeout"
	case containsAny(errStr, "rate limit", "429"):
		return "rate_limit"
	case containsAny(errStr, "unauthorized", "401"):
		return "auth_error"
	case containsAny(errStr, "connection", "network"):
		return "connection_error"
	default:
		return "unknown"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
