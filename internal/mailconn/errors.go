package mailconn

import (
	"errors"
	"fmt"
	"net"
)

// ErrorCategory classifies a connection failure. The category, not the
// underlying message, drives caller behavior: an authentication
// rejection is not retried automatically, while network and timeout
// failures are retryable with backoff.
type ErrorCategory string

const (
	NetworkUnreachable     ErrorCategory = "network_unreachable"
	TLSFailure             ErrorCategory = "tls_failure"
	AuthenticationRejected ErrorCategory = "authentication_rejected"
	Timeout                ErrorCategory = "timeout"
	ProtocolError          ErrorCategory = "protocol_error"
)

// ConnectError is a categorized failure to establish or authenticate a
// session.
type ConnectError struct {
	Category ErrorCategory
	Op       string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Category, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying with backoff.
func (e *ConnectError) Retryable() bool {
	return e.Category == NetworkUnreachable || e.Category == Timeout
}

// AsConnectError extracts a ConnectError from err's chain.
func AsConnectError(err error) (*ConnectError, bool) {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// connectErr wraps err under the given category and operation label.
func connectErr(category ErrorCategory, op string, err error) *ConnectError {
	return &ConnectError{Category: category, Op: op, Err: err}
}

// classifyNetErr maps a raw dial or I/O error to Timeout or
// NetworkUnreachable.
func classifyNetErr(op string, err error) *ConnectError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return connectErr(Timeout, op, err)
	}
	return connectErr(NetworkUnreachable, op, err)
}

// classifyAuthErr categorizes a failed login command. A network error
// surfacing mid-command, such as an I/O deadline against a slow server,
// stays retryable; everything else is a server-side rejection.
func classifyAuthErr(op string, err error) *ConnectError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classifyNetErr(op, err)
	}
	return connectErr(AuthenticationRejected, op, err)
}
