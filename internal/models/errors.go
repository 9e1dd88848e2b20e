package models

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction   = errors.New("extraction error")
	ErrParseService = errors.New("parse service error")
	ErrDescription  = errors.New("description error")
	ErrEmbedding    = errors.New("embedding error")
	ErrIndex        = errors.New("index error")
	ErrAnswer       = errors.New("answer error")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoDocument is returned when a question is asked before any upload.
	ErrNoDocument = errors.New("no document processed")
)

// StageError ties a failure to the pipeline stage that produced it.
// errors.Is matches both the stage sentinel and the wrapped cause.
type StageError struct {
	Stage error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

// NewStageError wraps err for stage. A nil err stays nil.
func NewStageError(stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
