// Package apperr defines the failure taxonomy shared across the pipeline and
// the mapping from failure kinds to HTTP statuses used at the API boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindExtraction Kind = "extraction_failed"
	KindChunking   Kind = "chunking_failed"
	KindEmbedding  Kind = "embedding_failed"
	KindUpsert     Kind = "upsert_failed"
	KindRetrieval  Kind = "retrieval_failed"
	KindGeneration Kind = "generation_failed"
	KindTheme      Kind = "theme_extraction_failed"
	KindConfig     Kind = "configuration_invalid"
)

type Error struct {
	Kind     Kind
	Filename string
	Session  string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Filename != "":
		return fmt.Sprintf("%s: file %s: %v", e.Kind, e.Filename, e.Err)
	case e.Session != "":
		return fmt.Sprintf("%s: session %s: %v", e.Kind, e.Session, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Extraction(filename string, err error) *Error {
	return &Error{Kind: KindExtraction, Filename: filename, Err: err}
}

func Chunking(err error) *Error {
	return &Error{Kind: KindChunking, Err: err}
}

func Embedding(err error) *Error {
	return &Error{Kind: KindEmbedding, Err: err}
}

func Upsert(session string, err error) *Error {
	return &Error{Kind: KindUpsert, Session: session, Err: err}
}

func Retrieval(session string, err error) *Error {
	return &Error{Kind: KindRetrieval, Session: session, Err: err}
}

func Generation(err error) *Error {
	return &Error{Kind: KindGeneration, Err: err}
}

func Theme(session string, err error) *Error {
	return &Error{Kind: KindTheme, Session: session, Err: err}
}

func Config(err error) *Error {
	return &Error{Kind: KindConfig, Err: err}
}

// HTTPStatus maps a pipeline error to the transport status reported at the
// boundary. Extraction and chunking failures are caller-data problems; the
// rest are internal.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindExtraction, KindChunking:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
