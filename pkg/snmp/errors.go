package snmp

import (
	"errors"
	"fmt"

	"github.com/gosnmp/gosnmp"
)

// CommunicationError is returned when the device could not be reached or a
// request timed out in the middle of a walk. No partial results accompany it.
type CommunicationError struct {
	Target string
	OID    string
	Cause  error
}

// Error implements the error interface.
func (e *CommunicationError) Error() string {
	if e.OID != "" {
		return fmt.Sprintf("communication with %s failed while walking %s: %v",
			e.Target, e.OID, e.Cause)
	}
	return fmt.Sprintf("communication with %s failed: %v", e.Target, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CommunicationError) Unwrap() error {
	return e.Cause
}

// NewCommunicationError creates a new CommunicationError.
func NewCommunicationError(target, oid string, cause error) *CommunicationError {
	return &CommunicationError{
		Target: target,
		OID:    oid,
		Cause:  cause,
	}
}

// IsCommunicationError checks if an error is a CommunicationError.
func IsCommunicationError(err error) bool {
	var e *CommunicationError
	return errors.As(err, &e)
}

// ProtocolError is returned when the agent answered with an error indication.
// Index is the 1-based error-index reported by the agent (or the position of the
// offending binding), 0 when unknown.
type ProtocolError struct {
	Target  string
	OID     string
	Status  gosnmp.SNMPError
	Index   int
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%v", e.Status)
	}
	if e.Index > 0 {
		return fmt.Sprintf("agent %s returned %s at binding %d (walking %s)",
			e.Target, msg, e.Index, e.OID)
	}
	return fmt.Sprintf("agent %s returned %s (walking %s)", e.Target, msg, e.OID)
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(target, oid string, status gosnmp.SNMPError, index int, message string) *ProtocolError {
	return &ProtocolError{
		Target:  target,
		OID:     oid,
		Status:  status,
		Index:   index,
		Message: message,
	}
}

// IsProtocolError checks if an error is a ProtocolError.
func IsProtocolError(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

// DecodeError is returned when a raw value does not match the encoding expected
// for its metric. Index is the 0-based position of the value in the walk result.
type DecodeError struct {
	Metric Metric
	Index  int
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s value #%d %q: %s",
		e.Metric, e.Index, e.Value, e.Reason)
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(metric Metric, index int, value, reason string) *DecodeError {
	return &DecodeError{
		Metric: metric,
		Index:  index,
		Value:  value,
		Reason: reason,
	}
}

// IsDecodeError checks if an error is a DecodeError.
func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// ConfigurationError reports an invalid selector, identifier or setting
// supplied by the caller.
type ConfigurationError struct {
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, value, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}
