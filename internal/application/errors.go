package application

import "errors"

// Failure kinds surfaced to the dashboard. None of them is retried.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLogoutFailed       = errors.New("logout failed")
	ErrWriteFailed        = errors.New("write failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrInvalidDraft       = errors.New("invalid product")
	ErrProductNotFound    = errors.New("product not found")
)

// Error ties a failure kind to the collaborator error that caused it.
// Error() is the collaborator's message so it can be shown verbatim;
// errors.Is matches both Kind and the cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(kind, err error) error {
	return &Error{Kind: kind, Err: err}
}
