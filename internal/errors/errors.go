// Package errors provides domain-specific error types and sentinel errors
// for the CMS scraping engine.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrUnknownInstitution indicates the registry has no entry for a name.
	ErrUnknownInstitution = errors.New("unknown institution")

	// ErrLoginFailed indicates the success marker was absent after the login POST.
	ErrLoginFailed = errors.New("login fail")

	// ErrLoginFormNotFound indicates the login page had no usable form or action.
	ErrLoginFormNotFound = errors.New("login form not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// TransportError represents a network or IO failure while talking to a CMS.
// StatusCode is set when the server answered with an unexpected status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport error (url=%s, status=%d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error (url=%s): %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error.
func NewTransportError(url string, statusCode int, err error) *TransportError {
	return &TransportError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// AuthenticationError is returned when the login POST went through but the
// portal did not accept the credentials (or CAPTCHA).
type AuthenticationError struct {
	Institution string
	Err         error
}

func (e *AuthenticationError) Error() string {
	if e.Institution == "" {
		return fmt.Sprintf("authentication error: %v", e.Err)
	}
	return fmt.Sprintf("authentication error (institution=%s): %v", e.Institution, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(institution string, err error) *AuthenticationError {
	if err == nil {
		err = ErrLoginFailed
	}
	return &AuthenticationError{
		Institution: institution,
		Err:         err,
	}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsAuthentication reports whether err is (or wraps) an AuthenticationError.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsNotFound checks if the error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnknownInstitution checks if the error is or wraps ErrUnknownInstitution.
func IsUnknownInstitution(err error) bool {
	return errors.Is(err, ErrUnknownInstitution)
}
