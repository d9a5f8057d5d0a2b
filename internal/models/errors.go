package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers unsupported kinds and zero-length files.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecodeFailure covers malformed PDF or image structure.
	ErrDecodeFailure = errors.New("decode failure")
	// ErrRecognizerUnavailable is non-fatal; redaction degrades to unmasked output.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
	// ErrArchiveWrite aborts a pack.
	ErrArchiveWrite = errors.New("archive write failure")
)

// ItemError reports the batch item that aborted a pack.
type ItemError struct {
	Index int
	ID    string
	Name  string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index+1, e.Name, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
