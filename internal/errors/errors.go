package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the PDF OCR worker
 *
 * Every failure that leaves a component carries an ErrorCode so that the
 * driver can decide between "log and move on" and "abort the run".
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Document errors
	ErrorDocumentUnreadable ErrorCode = "DOCUMENT_UNREADABLE"
	ErrorEmptyDocument      ErrorCode = "EMPTY_DOCUMENT"
	ErrorDocumentFailed     ErrorCode = "DOCUMENT_FAILED"

	// Batch errors
	ErrorRenderFailed ErrorCode = "RENDER_FAILED"
	ErrorOCRFailed    ErrorCode = "OCR_FAILED"

	// Aggregation errors
	ErrorDuplicateBatch     ErrorCode = "DUPLICATE_BATCH"
	ErrorInvalidBatch       ErrorCode = "INVALID_BATCH"
	ErrorIncompleteDocument ErrorCode = "INCOMPLETE_DOCUMENT"

	// Output errors
	ErrorOutputWriteFailed ErrorCode = "OUTPUT_WRITE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	Path      string
	FirstPage int // 0 when the error is not tied to a page range
	LastPage  int
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.FirstPage > 0 {
		msg = fmt.Sprintf("%s [pages %d-%d]", msg, e.FirstPage, e.LastPage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// HasRange reports whether the error is tagged with a page range.
func (e *ProcessingError) HasRange() bool {
	return e.FirstPage > 0
}

// Factory functions for common errors

func NewDocumentUnreadableError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDocumentUnreadable,
		Message:   "PDF could not be read",
		Path:      path,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEmptyDocumentError(path string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEmptyDocument,
		Message:   "PDF has no pages",
		Path:      path,
		Timestamp: time.Now(),
	}
}

func NewRenderFailedError(path string, first, last int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRenderFailed,
		Message:   "page rendering failed",
		Path:      path,
		FirstPage: first,
		LastPage:  last,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRFailedError(path string, first, last, page int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed on page %d", page),
		Path:      path,
		FirstPage: first,
		LastPage:  last,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page": page,
		},
		Cause: cause,
	}
}

func NewDuplicateBatchError(first, last, page int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDuplicateBatch,
		Message:   fmt.Sprintf("page %d already recorded by another batch", page),
		FirstPage: first,
		LastPage:  last,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page": page,
		},
	}
}

func NewInvalidBatchError(first, last int, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidBatch,
		Message:   reason,
		FirstPage: first,
		LastPage:  last,
		Timestamp: time.Now(),
	}
}

func NewIncompleteDocumentError(recorded, total int, failed bool) *ProcessingError {
	msg := fmt.Sprintf("%d of %d pages recorded", recorded, total)
	if failed {
		msg = "document has a failed batch"
	}
	return &ProcessingError{
		Code:      ErrorIncompleteDocument,
		Message:   msg,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"recorded_pages": recorded,
			"total_pages":    total,
			"failed":         failed,
		},
	}
}

// NewDocumentFailedError escalates a batch failure to the document,
// keeping the failing range and cause.
func NewDocumentFailedError(path string, first, last int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDocumentFailed,
		Message:   "document processing halted by failed batch",
		Path:      path,
		FirstPage: first,
		LastPage:  last,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOutputWriteFailedError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOutputWriteFailed,
		Message:   "failed to write output file",
		Path:      path,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// CodeOf returns the code of the outermost ProcessingError in err's chain,
// or "" if there is none.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// AsProcessingError returns the outermost ProcessingError in err's chain.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// HasCode reports whether any ProcessingError in err's chain has code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *ProcessingError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// IsFatal reports whether err is an invariant violation that must abort a
// multi-document run instead of being logged and skipped.
func IsFatal(err error) bool {
	return HasCode(err, ErrorDuplicateBatch) || HasCode(err, ErrorInvalidBatch)
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.Path != "" {
		result["path"] = e.Path
	}
	if e.HasRange() {
		result["first_page"] = e.FirstPage
		result["last_page"] = e.LastPage
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
