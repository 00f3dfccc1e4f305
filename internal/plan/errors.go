package plan

import (
	"fmt"
)

// Reason classifies an initialization failure.
type Reason int

const (
	ReasonNoObjectsDefined Reason = iota + 1
	ReasonMalformedQuery
	ReasonMalformedDeleteQuery
	ReasonOrgNotConnected
	ReasonAccessTokenExpired
)

// InitializationError is the umbrella error for every compile-time failure.
// It keeps enough structured context (object, query text, org) for the
// caller to render an actionable message without re-deriving it.
type InitializationError struct {
	Reason Reason
	Object string
	Query  string
	Org    string
	Err    error
}

// Sentinels for errors.Is matching by reason.
var (
	ErrNoObjectsDefined     = &InitializationError{Reason: ReasonNoObjectsDefined}
	ErrMalformedQuery       = &InitializationError{Reason: ReasonMalformedQuery}
	ErrMalformedDeleteQuery = &InitializationError{Reason: ReasonMalformedDeleteQuery}
	ErrOrgNotConnected      = &InitializationError{Reason: ReasonOrgNotConnected}
	ErrAccessTokenExpired   = &InitializationError{Reason: ReasonAccessTokenExpired}
)

func (e *InitializationError) Error() string {
	switch e.Reason {
	case ReasonNoObjectsDefined:
		return "no objects defined to process"
	case ReasonMalformedQuery:
		return fmt.Sprintf("object %s: malformed query %q: %v", e.Object, e.Query, e.Err)
	case ReasonMalformedDeleteQuery:
		return fmt.Sprintf("object %s: malformed delete query %q: %v", e.Object, e.Query, e.Err)
	case ReasonOrgNotConnected:
		return fmt.Sprintf("org %s is not connected: %v", e.Org, e.Err)
	case ReasonAccessTokenExpired:
		return fmt.Sprintf("org %s: access token expired or invalid: %v", e.Org, e.Err)
	}
	return fmt.Sprintf("initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Is matches any InitializationError with the same reason, so callers can
// test errors.Is(err, plan.ErrMalformedQuery).
func (e *InitializationError) Is(target error) bool {
	t, ok := target.(*InitializationError)
	return ok && t.Reason == e.Reason
}

func malformedQueryError(object, query string, err error) *InitializationError {
	return &InitializationError{Reason: ReasonMalformedQuery, Object: object, Query: query, Err: err}
}

func malformedDeleteQueryError(object, query string, err error) *InitializationError {
	return &InitializationError{Reason: ReasonMalformedDeleteQuery, Object: object, Query: query, Err: err}
}

func orgAuthError(reason Reason, orgName string, err error) *InitializationError {
	return &InitializationError{Reason: reason, Org: orgName, Err: err}
}
