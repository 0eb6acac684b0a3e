package sshclient

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/pkg/errors"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

var (
	// ErrInvalidResponse is returned when the server answers a request with a packet of the wrong type.
	ErrInvalidResponse = errors.New("sshclient: invalid response")

	// ErrConnectionNotActive is returned by operations issued while a Channel is not active.
	ErrConnectionNotActive = errors.New("sshclient: connection not active")

	// ErrConnectionClosed matches every *ClosedError.
	ErrConnectionClosed = errors.New("sshclient: connection closed")

	// ErrEndedChannel is returned when a shell channel ends before the shell request was acknowledged.
	ErrEndedChannel = errors.New("sshclient: channel ended before shell request was acknowledged")

	// ErrRequestRejected is returned when the server answers a channel request with failure.
	ErrRequestRejected = errors.New("sshclient: channel request rejected")
)

// TransportError reports a failure of the underlying transport while writing or closing.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "sshclient: transport " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is an explicit failure reported by the server in an SSH_FXP_STATUS packet.
type StatusError struct {
	Code    sshfx.Status
	Message string
	Lang    string
}

func statusError(p *sshfx.StatusPacket) *StatusError {
	return &StatusError{
		Code:    p.StatusCode,
		Message: p.ErrorMessage,
		Lang:    p.LanguageTag,
	}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "sftp: " + e.Code.String()
	}

	return fmt.Sprintf("sftp: %q (%v)", e.Message, e.Code)
}

// Is maps the status codes that have a portable equivalent onto the io/fs errors.
func (e *StatusError) Is(target error) bool {
	switch target {
	case io.EOF:
		return e.Code == sshfx.StatusEOF
	case fs.ErrNotExist:
		return e.Code == sshfx.StatusNoSuchFile || e.Code == sshfx.StatusNoSuchPath
	case fs.ErrPermission:
		return e.Code == sshfx.StatusPermissionDenied
	case fs.ErrExist:
		return e.Code == sshfx.StatusFileAlreadyExists
	}

	return false
}

// ClosedError is the result of every operation still outstanding when its channel ended.
// Err holds the cause, and is nil if the channel was closed on request.
type ClosedError struct {
	Err error
}

func (e *ClosedError) Error() string {
	if e.Err == nil {
		return ErrConnectionClosed.Error()
	}

	return ErrConnectionClosed.Error() + ": " + e.Err.Error()
}

// Is reports true for ErrConnectionClosed.
func (e *ClosedError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// Unwrap returns the cause of the closure.
func (e *ClosedError) Unwrap() error {
	return e.Err
}
