package scp

import "fmt"

// Error represents an SCP protocol error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Status is the peer status byte that caused the error (if applicable),
	// -1 otherwise
	Status int
}

// ErrorType categorizes SCP errors
type ErrorType int

const (
	// ErrArgument indicates caller misuse detected before any channel was
	// opened (empty remote path, invalid mode, unusable source)
	ErrArgument ErrorType = iota

	// ErrChannel indicates a failure at the transport boundary
	// (open, send, or receive)
	ErrChannel

	// ErrProtocol indicates a protocol violation (malformed header,
	// unexpected status byte, premature stream end)
	ErrProtocol

	// ErrRemoteWarning indicates a peer-signalled warning, treated as fatal
	ErrRemoteWarning

	// ErrRemoteError indicates a peer-signalled error
	ErrRemoteError
)

func (e *Error) Error() string {
	if e.Status >= 0 {
		return fmt.Sprintf("scp %s: %s (status: %s)", e.Type, e.Message, statusName(byte(e.Status)))
	}
	return fmt.Sprintf("scp %s: %s", e.Type, e.Message)
}

func (t ErrorType) String() string {
	switch t {
	case ErrArgument:
		return "argument error"
	case ErrChannel:
		return "channel error"
	case ErrProtocol:
		return "protocol error"
	case ErrRemoteWarning:
		return "remote warning"
	case ErrRemoteError:
		return "remote error"
	default:
		return "unknown error"
	}
}

// NewError creates a new SCP error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Status:  -1,
	}
}

// newStatusError creates an error from a peer status byte and its message.
func newStatusError(status byte, message string) *Error {
	errType := ErrRemoteError
	if status == StatusWarning {
		errType = ErrRemoteWarning
	}
	return &Error{
		Type:    errType,
		Message: message,
		Status:  int(status),
	}
}

// IsArgument checks if an error is an argument error
func IsArgument(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrArgument
	}
	return false
}

// IsProtocol checks if an error is a protocol error
func IsProtocol(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrProtocol
	}
	return false
}

// IsRemote checks if an error was signalled by the peer
func IsRemote(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrRemoteWarning || e.Type == ErrRemoteError
	}
	return false
}
