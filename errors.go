package sftpconn

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a TransferError.
type ErrorKind string

const (
	// ErrorKindConfiguration means the config cannot yield a connection,
	// e.g. neither a private key nor a password is set. Detected before
	// any network attempt.
	ErrorKindConfiguration ErrorKind = "configuration"

	// ErrorKindConnection means session or channel establishment failed.
	ErrorKindConnection ErrorKind = "connection"

	// ErrorKindNotConnected means an operation was attempted on a
	// Connector without a live, connected channel.
	ErrorKindNotConnected ErrorKind = "not_connected"

	// ErrorKindOperation means a transfer operation failed at the
	// transport level (path not found, permission denied, I/O error).
	ErrorKindOperation ErrorKind = "operation"

	// ErrorKindHostKeys means a known-hosts entry is malformed.
	ErrorKindHostKeys ErrorKind = "host_keys"
)

// TransferError is the single error type surfaced by this package.
// Callers catch this one type instead of the transport's error hierarchy;
// the original cause, when any, is available via errors.Unwrap.
type TransferError struct {
	Kind    ErrorKind
	Host    string
	Message string
	Cause   error
}

func (e *TransferError) Error() string {
	msg := e.Message
	if e.Host != "" {
		msg = fmt.Sprintf("%s (host %s)", msg, e.Host)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the original cause for errors.Is / errors.As.
func (e *TransferError) Unwrap() error {
	return e.Cause
}

// ErrorKindOf returns the kind of err when it is (or wraps) a
// TransferError, and "" otherwise.
func ErrorKindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsNotConnected reports whether err indicates the Connector had no live
// channel when an operation was attempted.
func IsNotConnected(err error) bool {
	return ErrorKindOf(err) == ErrorKindNotConnected
}

func newConfigurationError(message string) *TransferError {
	return &TransferError{Kind: ErrorKindConfiguration, Message: message}
}

func newConnectionError(host, message string, cause error) *TransferError {
	return &TransferError{Kind: ErrorKindConnection, Host: host, Message: message, Cause: cause}
}

func newNotConnectedError() *TransferError {
	return &TransferError{Kind: ErrorKindNotConnected, Message: "not connected; call Connect first"}
}

func newOperationError(host string, cause error) *TransferError {
	return &TransferError{Kind: ErrorKindOperation, Host: host, Message: "remote operation failed", Cause: cause}
}

func newHostKeysError(message string) *TransferError {
	return &TransferError{Kind: ErrorKindHostKeys, Message: message}
}
