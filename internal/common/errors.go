package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

// Pipeline error taxonomy.
var (
	ErrConfig              = errors.New("configuration error")
	ErrSchemaSource        = errors.New("schema source unreadable")
	ErrRendererUnavailable = errors.New("pdf renderer unavailable")
	ErrRender              = errors.New("pdf rendering failed")
	ErrExtractionRequest   = errors.New("extraction request failed")
	ErrNormalization       = errors.New("response normalization failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Stage names the pipeline step a document failed in.
type Stage string

const (
	StageRender    Stage = "render"
	StageRequest   Stage = "request"
	StageNormalize Stage = "normalize"
)

// DocumentError is a failure scoped to a single uploaded document.
// Raw keeps the offending model output, if any, for inspection.
type DocumentError struct {
	FileName string
	Stage    Stage
	Raw      string
	Err      error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.FileName, e.Stage, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Hint returns remediation text for the user, or "" when there is none.
func (e *DocumentError) Hint() string {
	switch {
	case errors.Is(e.Err, ErrRendererUnavailable):
		return "install poppler-utils (pdftoppm) on the server, or upload a PDF with a text layer"
	case errors.Is(e.Err, ErrNormalization):
		return "the model reply was not a JSON object; see the raw reply shown with this error"
	case errors.Is(e.Err, ErrExtractionRequest):
		return "re-run the batch or re-upload the document to retry"
	}
	return ""
}

// NewDocumentError wraps err for fileName at stage.
func NewDocumentError(fileName string, stage Stage, raw string, err error) *DocumentError {
	return &DocumentError{FileName: fileName, Stage: stage, Raw: raw, Err: err}
}
