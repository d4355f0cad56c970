package core

import "fmt"

type Unit struct{}

type CommandError struct {
	Payload    interface{}
	StatusCode int
	Reason     *string
}

type CommandErrorOption func(*CommandError)

func WithReason(reason string) CommandErrorOption {
	return func(e *CommandError) {
		e.Reason = &reason
	}
}

func NewCommandError(statusCode int, payload interface{}, opts ...CommandErrorOption) CommandError {
	e := CommandError{
		StatusCode: statusCode,
		Payload:    payload,
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// Constructors for the error categories handlers surface to callers. The
// status code doubles as the category marker.

func NewValidationError(reason string) CommandError {
	return NewCommandError(400, nil, WithReason(reason))
}

func NewAuthorizationError(reason string) CommandError {
	return NewCommandError(403, nil, WithReason(reason))
}

func NewNotFoundError(reason string) CommandError {
	return NewCommandError(404, nil, WithReason(reason))
}

func NewConflictError(reason string) CommandError {
	return NewCommandError(409, nil, WithReason(reason))
}

func NewStateError(reason string) CommandError {
	return NewCommandError(422, nil, WithReason(reason))
}

func (r CommandError) Error() string {
	var values struct {
		Payload    interface{}
		StatusCode int
		Reason     string
	}

	values.Payload = r.Payload
	values.StatusCode = r.StatusCode

	if r.Reason != nil {
		values.Reason = *r.Reason
	}

	return fmt.Sprintf("%+v", values)
}

func (r CommandError) ReasonString() string {
	if r.Reason == nil {
		return ""
	}

	return *r.Reason
}
