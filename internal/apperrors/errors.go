package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by module. Unknown codes resolve to UnknownError.
const (
	ValidationError     = "VALIDATION_ERROR"
	UnknownError        = "UNKNOWN_ERROR"
	InternalServerError = "INTERNAL_SERVER_ERROR"
	SchemaError         = "SCHEMA_ERROR"
	KafkaError          = "KAFKA_ERROR"

	InvalidFile         = "INVALID_FILE"
	FetchingColumnError = "FETCHING_COLUMN_ERROR"

	BoundarySheetHeaderError         = "BOUNDARY_SHEET_HEADER_ERROR"
	BoundaryRelationshipCreateError  = "BOUNDARY_RELATIONSHIP_CREATE_ERROR"
	BoundarySheetUploadedInvalid     = "BOUNDARY_SHEET_UPLOADED_INVALID_ERROR"
	BoundarySheetFirstColumnInvalid  = "BOUNDARY_SHEET_FIRST_COLUMN_INVALID_ERROR"
)

type definition struct {
	module  string
	message string
	status  int
}

var registry = map[string]definition{
	ValidationError:     {"COMMON", "Validation failed", http.StatusBadRequest},
	UnknownError:        {"COMMON", "Unknown error", http.StatusInternalServerError},
	InternalServerError: {"COMMON", "Internal server error", http.StatusInternalServerError},
	SchemaError:         {"COMMON", "Error occurred while fetching or parsing schema definitions", http.StatusInternalServerError},
	KafkaError:          {"COMMON", "Error occurred while publishing to the message bus", http.StatusInternalServerError},

	InvalidFile:         {"FILE", "The uploaded file could not be resolved or read", http.StatusBadRequest},
	FetchingColumnError: {"FILE", "Error occurred while fetching sheet columns", http.StatusInternalServerError},

	BoundarySheetHeaderError:        {"BOUNDARY", "Boundary sheet headers do not match the expected hierarchy columns", http.StatusBadRequest},
	BoundaryRelationshipCreateError: {"BOUNDARY", "Error occurred while creating boundary relationships", http.StatusInternalServerError},
	BoundarySheetUploadedInvalid:    {"BOUNDARY", "The uploaded boundary sheet contains invalid data", http.StatusBadRequest},
	BoundarySheetFirstColumnInvalid: {"BOUNDARY", "The first boundary column must not be empty", http.StatusBadRequest},
}

// Error is a domain error carrying a machine-readable code, the owning
// module, an HTTP status and a human-readable message.
type Error struct {
	Module      string `json:"module"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Status      int    `json:"-"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsValidation reports whether the error is recoverable user input error
// rather than an infrastructure failure.
func (e *Error) IsValidation() bool {
	return e.Status == http.StatusBadRequest
}

func lookup(code string) (string, definition) {
	def, ok := registry[code]
	if !ok {
		return UnknownError, registry[UnknownError]
	}
	return code, def
}

// New returns an Error for a registered code with its default message.
func New(code string) *Error {
	code, def := lookup(code)
	return &Error{Module: def.module, Code: code, Message: def.message, Status: def.status}
}

// Newf returns an Error for a registered code with a formatted message
// replacing the default one.
func Newf(code string, format string, args ...interface{}) *Error {
	e := New(code)
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// WithDescription sets the human-readable description and returns the
// error for chaining.
func (e *Error) WithDescription(description string) *Error {
	e.Description = description
	return e
}

// Wrap attaches a cause to an Error for a registered code.
func Wrap(code string, err error) *Error {
	e := New(code)
	e.cause = err
	if err != nil {
		e.Description = err.Error()
	}
	return e
}

// From maps an arbitrary error onto an *Error. Already-typed errors pass
// through; everything else becomes INTERNAL_SERVER_ERROR.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(InternalServerError, err)
}

// Envelope is the wire format for error responses.
type Envelope struct {
	Errors []*Error `json:"Errors"`
}

// NewEnvelope wraps one or more errors into the response envelope.
func NewEnvelope(errs ...*Error) Envelope {
	return Envelope{Errors: errs}
}
