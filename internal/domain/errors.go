package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest indicates an outbound request could not be built,
	// e.g. missing token or malformed URL.
	ErrInvalidRequest = errors.New("imagefeed: invalid request")
	// ErrDuplicateRequest signals a replayed authorization code.
	ErrDuplicateRequest = errors.New("imagefeed: duplicate request")
	// ErrAlreadyInFlight signals an overlapping paginating or mutating call.
	ErrAlreadyInFlight = errors.New("imagefeed: request already in flight")
	// ErrDecode indicates malformed JSON or a schema mismatch.
	ErrDecode = errors.New("imagefeed: decode response")
	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("imagefeed: transport failure")
	// ErrServerFault marks a 500 from the upstream API.
	ErrServerFault = errors.New("imagefeed: server fault")
)

// StatusError reports a non-2xx response from the upstream API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("imagefeed: unexpected status %d", e.Code)
}

// Is matches ErrServerFault for 500 responses so callers can use errors.Is.
func (e *StatusError) Is(target error) bool {
	return target == ErrServerFault && e.Code == http.StatusInternalServerError
}
