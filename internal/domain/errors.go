package domain

import "errors"

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// Problem errors
	ErrProblemNotFound    = errors.New("problem not found")
	ErrNoMatchingProblems = errors.New("no matching problems found")

	// Path errors
	ErrInvalidPathConfig = errors.New("invalid path configuration")
	ErrPathNotFound      = errors.New("practice path not found")
	ErrPathNotActive     = errors.New("practice path is not active")
	ErrProblemNotInPath  = errors.New("problem not found in this path")
	ErrProblemLocked     = errors.New("problem is locked, solve the previous problem first")
	ErrInvalidTransition = errors.New("invalid problem status transition")
	ErrInvalidPathStatus = errors.New("invalid path status")

	// Tool errors
	ErrUnknownTool          = errors.New("unknown tool")
	ErrInvalidToolArguments = errors.New("invalid tool arguments")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with the given error and message
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Err:     err,
		Message: message,
	}
}
