package errors

import "net/http"

// Code classifies an error for callers and maps it onto an HTTP status.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered to clients. Details are only
// exposed when DetailsAllowed is set, and the error's own message replaces
// PublicMessage only when MessageAllowed is set.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	MessageAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	withDetails
	ownMessage
)

func describe(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
		MessageAllowed: flags&ownMessage != 0,
	}
}

var catalog = map[Code]Metadata{
	CodeValidation:    describe(http.StatusBadRequest, "validation failed", withDetails|ownMessage),
	CodeUnauthorized:  describe(http.StatusUnauthorized, "authentication required", ownMessage),
	CodeForbidden:     describe(http.StatusForbidden, "access denied", ownMessage),
	CodeNotFound:      describe(http.StatusNotFound, "resource not found", ownMessage),
	CodeConflict:      describe(http.StatusConflict, "conflict detected", withDetails|ownMessage),
	CodeStateConflict: describe(http.StatusUnprocessableEntity, "state transition disallowed", withDetails|ownMessage),
	CodeIdempotency:   describe(http.StatusConflict, "idempotency key reused", withDetails|ownMessage),
	CodeRateLimit:     describe(http.StatusTooManyRequests, "rate limit exceeded", ownMessage),
	CodeInternal:      describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
}

// MetadataFor returns the rendering rules for code. Unknown codes are
// treated as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalog[code]; ok {
		return meta
	}
	return catalog[CodeInternal]
}
