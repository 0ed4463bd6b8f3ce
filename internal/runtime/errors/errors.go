package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrPublisherRequired   = sterrors.New("acs: publisher is required")
	ErrTopicRequired       = sterrors.New("acs: topic is required")
	ErrConfigRequired      = sterrors.New("acs: configuration is required")
	ErrLoggerRequired      = sterrors.New("acs: logger is required")
	ErrEnvelopeRequired    = sterrors.New("acs: envelope is required")
	ErrSessionIDRequired   = sterrors.New("acs: session id is required")
	ErrServiceRunning      = sterrors.New("acs: bridge service is already running")
	ErrInstanceIDRequired  = sterrors.New("acs: instance identity is required")
	ErrNoInformPayload     = sterrors.New("acs: no inform payload in envelope")
	ErrMultipleInforms     = sterrors.New("acs: envelope carries more than one inform")
	ErrInvalidDeviceID     = sterrors.New("acs: invalid device identity")
	ErrDispatchClosed      = sterrors.New("acs: dispatch channel is closed")
	ErrInvalidPolicy       = sterrors.New("acs: invalid policy message")
	ErrUnknownPolicyType   = sterrors.New("acs: unknown policy type")
	ErrUnsupportedResponse = sterrors.New("acs: unsupported device response")
)

// ConfigValidationError wraps configuration validation failures so callers
// can tell them apart from runtime errors.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("acs: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
