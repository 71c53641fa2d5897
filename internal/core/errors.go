// ABOUTME: Error kinds surfaced by the ingestion and retrieval pipeline
// ABOUTME: Each kind maps to a stable code and HTTP status for outer surfaces
package core

import (
	"errors"
	"net/http"
)

// ErrorKind classifies pipeline failures
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindIngestion
	KindPersistence
	KindRetrieval
	KindAnswerGeneration
	KindInvalidRequest
)

// Code returns the stable machine-readable name of the kind
func (k ErrorKind) Code() string {
	switch k {
	case KindIngestion:
		return "ingestion_error"
	case KindPersistence:
		return "persistence_error"
	case KindRetrieval:
		return "retrieval_error"
	case KindAnswerGeneration:
		return "answer_generation_error"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "internal_error"
	}
}

// HTTPStatus returns the status code an HTTP surface should answer with
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindIngestion:
		return http.StatusUnprocessableEntity
	case KindAnswerGeneration:
		return http.StatusBadGateway
	case KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (k ErrorKind) String() string {
	return k.Code()
}

// Error is a classified pipeline error
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost classified error in err's chain
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IngestionError wraps a failure to chunk or embed documents
func IngestionError(op string, err error) error {
	return &Error{Kind: KindIngestion, Op: op, Err: err}
}

// PersistenceError wraps a failure to save or load the index
func PersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// RetrievalError wraps a failure to embed a query or search the index
func RetrievalError(op string, err error) error {
	return &Error{Kind: KindRetrieval, Op: op, Err: err}
}

// AnswerGenerationError wraps a failure of the language model
func AnswerGenerationError(op string, err error) error {
	return &Error{Kind: KindAnswerGeneration, Op: op, Err: err}
}

// InvalidRequestError reports a malformed caller request
func InvalidRequestError(op string, err error) error {
	return &Error{Kind: KindInvalidRequest, Op: op, Err: err}
}
