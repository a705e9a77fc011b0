package mailout

import (
	"errors"
	"fmt"
)

// SendCategory classifies a failed submission.
type SendCategory string

const (
	// InvalidRecipient: a recipient address failed local validation.
	InvalidRecipient SendCategory = "invalid_recipient"
	// AttachmentUnavailable: a referenced storage path is missing.
	AttachmentUnavailable SendCategory = "attachment_unavailable"
	// ConnectionFailure: the send session could not be established or broke.
	ConnectionFailure SendCategory = "connection_failure"
	// Rejected: the remote server refused the message (quota, policy).
	Rejected SendCategory = "rejected"
)

// SendError is a categorized failure to compose or transmit a message.
type SendError struct {
	Category SendCategory
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed (%s): %v", e.Category, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// AsSendError extracts a SendError from err's chain.
func AsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func sendErr(category SendCategory, err error) *SendError {
	return &SendError{Category: category, Err: err}
}
