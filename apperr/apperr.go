package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports form input rejected before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Kind() string  { return "validation" }

// TransportError wraps a failure to reach the remote service at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Kind() string  { return "transport" }

// ServerError is a non-2xx HTTP response.
type ServerError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.StatusCode, e.Body)
}
func (e *ServerError) Kind() string { return "server" }

// ApplicationError is a 2xx response whose payload reports success=false.
type ApplicationError struct {
	Msg string
}

func (e *ApplicationError) Error() string { return e.Msg }
func (e *ApplicationError) Kind() string  { return "application" }

// DeserializationError reports a payload that could not be decoded.
type DeserializationError struct {
	What string
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}
func (e *DeserializationError) Unwrap() error { return e.Err }
func (e *DeserializationError) Kind() string  { return "deserialization" }

type kinder interface {
	Kind() string
}

// Kind classifies err by the first typed error in its chain.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "internal"
}

// StatusCode returns the HTTP status carried by a ServerError in err's chain.
func StatusCode(err error) (int, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
