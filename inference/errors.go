package inference

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	// ErrModelLoad is returned when a model definition is malformed or uses unsupported operators.
	ErrModelLoad = errors.New("model load failed")
	// ErrNotInitialized is returned when a graph is requested before the registry is ready.
	ErrNotInitialized = errors.New("models not initialized")
	// ErrImageDecode is returned when input bytes are not a supported image encoding.
	ErrImageDecode = errors.New("image decode failed")
	// ErrInference is returned when a graph fails to run or its outputs break the model contract.
	ErrInference = errors.New("inference failed")
	// ErrNoFaceDetected is returned when the detector produced zero candidates.
	ErrNoFaceDetected = errors.New("no face detected")
)

var kinds = []error{ErrModelLoad, ErrNotInitialized, ErrImageDecode, ErrInference, ErrNoFaceDetected}

// Error ties a failure to one error kind while keeping its cause.
type Error struct {
	// Kind is one of the package's sentinel errors.
	Kind error
	// Cause is the underlying failure, if any.
	Cause error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// NewError attaches a kind to a cause with a message of context.
//
// Errors that already carry a kind are returned unchanged so a failure never matches two kinds.
//
// Arguments:
//   - kind: The sentinel error describing the failure class.
//   - cause: The underlying error, may be nil.
//   - format: The context message.
//   - args: Format arguments.
//
// Returns:
//   - error: The kinded error.
func NewError(kind error, cause error, format string, args ...interface{}) error {
	if cause != nil && KindOf(cause) != nil {
		return errors.WithMessagef(cause, format, args...)
	}
	if cause == nil {
		return &Error{Kind: kind, Cause: errors.Errorf(format, args...)}
	}
	return &Error{Kind: kind, Cause: errors.Wrapf(cause, format, args...)}
}

// KindOf returns the sentinel error that err matches, or nil when it matches none.
func KindOf(err error) error {
	for _, kind := range kinds {
		if stderrors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
