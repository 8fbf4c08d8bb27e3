// Package errors defines the typed error the API renders. Each Code maps to
// an HTTP status and a generic client message; callers attach their own
// message and, for codes that allow it, structured details.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/mattn/go-sqlite3"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeEmptyCart    Code = "EMPTY_CART"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
	CodeBackend      Code = "BACKEND_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	CodeUnauthorized: {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
	CodeForbidden:    {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
	CodeNotFound:     {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
	CodeConflict:     {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
	CodeEmptyCart:    {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "cart is empty"},
	CodeRateLimit:    {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
	CodeInternal:     {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:   {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	// stored procedures raise user-facing messages ("insufficient stock")
	CodeBackend: {HTTPStatus: http.StatusBadGateway, PublicMessage: "backend rejected the request", DetailsAllowed: true},
}

// MetadataFor returns the rendering rules for code; unknown codes render as internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// The accessors accept a nil receiver so callers can chain on As(err).

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// PublicMessage is the error's own message for codes that allow details and
// the code's generic message otherwise.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.DetailsAllowed && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil && e.message == "" {
		return fmt.Sprintf("%s: %v", e.code, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Backend classifies a query or stored procedure failure. Integrity
// violations map to client codes; anything else keeps the backend's own
// message under CodeBackend. Typed errors pass through unchanged.
func Backend(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}

	d := Dump(err)
	switch {
	case d.PGCode == "23505" || sqliteUnique(err):
		return Wrap(CodeConflict, err, "record already exists")
	case d.PGCode == "23503":
		return Wrap(CodeValidation, err, "referenced record does not exist")
	case d.PGCode == "23514" || d.PGCode == "23502":
		return Wrap(CodeValidation, err, firstNonEmpty(d.PGMessage, "value violates a constraint"))
	case d.PGMessage != "":
		return Wrap(CodeBackend, err, d.PGMessage)
	}
	return Wrap(CodeBackend, err, err.Error())
}

func sqliteUnique(err error) bool {
	var liteErr sqlite3.Error
	if !stdErrors.As(err, &liteErr) {
		return false
	}
	return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
