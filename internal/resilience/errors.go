package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a vendor call failure as retryable. The vendor
// clients wrap 429/5xx responses and network failures in it so the retry
// loop and the dead letter queue can tell a flaky upstream apart from a
// bad request.
type TransientError struct {
	Err        error
	StatusCode int
}

// NewTransientError wraps err; statusCode is 0 when the failure never got
// an HTTP response.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// connErrnos are the socket-level failures worth retrying.
var connErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
}

// transientFragments match transport error text that surfaces only as a
// wrapped string, never as a typed error.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err is worth retrying: a TransientError
// anywhere in the chain, a network timeout, a connection-level errno, or
// transport error text matching a known transient fragment.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range connErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
