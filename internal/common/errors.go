package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request so callers can react without parsing messages.
type Kind string

const (
	KindInvalidImage       Kind = "InvalidImage"
	KindInvalidConfig      Kind = "InvalidConfig"
	KindNoDocumentFound    Kind = "NoDocumentFound"
	KindDegenerateQuad     Kind = "DegenerateQuad"
	KindRecognitionFailure Kind = "RecognitionFailure"
	KindIOFailure          Kind = "IOFailure"
	KindInvalidRequest     Kind = "InvalidRequest"
	KindInternal           Kind = "Internal"
)

// Error is a stage failure carrying its classification.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

// NewError wraps err with a kind and the stage that produced it.
func NewError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s in %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindInternal for
// errors that were never classified. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// StageOf returns the stage recorded on a classified error.
func StageOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return ""
}
