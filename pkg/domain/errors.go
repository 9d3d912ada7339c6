package domain

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the controller core can surface.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration: local identity or configuration mismatch, detected at construction.
	KindConfiguration
	// KindConnection: the agent could not be reached.
	KindConnection
	// KindConflict: remote busy/state conflict, or a local precondition failed before any I/O.
	KindConflict
	// KindBackendCommand: the agent or a backend rejected an operation.
	KindBackendCommand
	// KindArchive: I/O failure while reading or writing a project tree.
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConnection:
		return "connection"
	case KindConflict:
		return "conflict"
	case KindBackendCommand:
		return "backend_command"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against an *Error of the same Kind.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrConnection     = &Error{Kind: KindConnection}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrBackendCommand = &Error{Kind: KindBackendCommand}
	ErrArchive        = &Error{Kind: KindArchive}
)

// ErrProjectNotFound is returned when a project ID cannot be found in a store or controller.
var ErrProjectNotFound = errors.New("project not found")

// ErrNodeNotFound is returned when a node ID is not part of a project.
var ErrNodeNotFound = errors.New("node not found")

// ErrLinkNotFound is returned when a link ID is not part of a project.
var ErrLinkNotFound = errors.New("link not found")

// ErrComputeNotFound is returned when a compute ID is not registered.
var ErrComputeNotFound = errors.New("compute not found")

// Error is the single typed error of the controller core.
// Callers branch on Kind (see KindOf) rather than on concrete types.
type Error struct {
	Kind    Kind
	Op      string // Operation that failed, e.g. "POST /projects"
	Status  int    // Remote status code, when one was received
	Message string // Remote or local human-readable reason
	Err     error  // Underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// ConnectionError builds a KindConnection error wrapping the transport failure.
func ConnectionError(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// ConflictError builds a KindConflict error.
func ConflictError(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// BackendCommandError builds a KindBackendCommand error carrying the remote status and message.
func BackendCommandError(op string, status int, message string) *Error {
	return &Error{Kind: KindBackendCommand, Op: op, Status: status, Message: message}
}

// ArchiveError builds a KindArchive error wrapping the I/O failure.
func ArchiveError(op string, err error) *Error {
	return &Error{Kind: KindArchive, Op: op, Err: err}
}
