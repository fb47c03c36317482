package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError is a non-2xx answer from the remote store. Detail carries the
// server's "detail" field verbatim so it can be shown to the user.
type RemoteError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Detail)
}

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SchemaError is returned when a response body does not have the expected shape.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401 from the remote store.
func IsUnauthorized(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the remote store.
func IsNotFound(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound
}

// IsStoreFailure reports whether err was raised by the remote store or by the
// network between it and the client.
func IsStoreFailure(err error) bool {
	var (
		remoteErr *RemoteError
		netErr    *NetworkError
	)
	return errors.As(err, &remoteErr) || errors.As(err, &netErr)
}
