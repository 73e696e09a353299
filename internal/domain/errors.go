package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownSource     = errors.New("unknown source")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrDuplicateRow      = errors.New("duplicate row")
	ErrInvalidWorkStatus = errors.New("invalid work status")
)

// AdapterError wraps any failure of a source adapter. The pipeline never
// inspects the wrapped error.
type AdapterError struct {
	Source string
	URL    string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.URL, e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ImageStage names the relocation step that failed.
type ImageStage string

const (
	ImageStageDownload ImageStage = "download"
	ImageStageDecode   ImageStage = "decode"
	ImageStageUpload   ImageStage = "upload"
)

// ImageError reports a single failed image relocation.
type ImageError struct {
	URL   string
	Key   string
	Stage ImageStage
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %s: %s %s: %v", e.Key, e.Stage, e.URL, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// RowInsertError reports a single failed catalog insert.
type RowInsertError struct {
	Key DedupKey
	Err error
}

func (e *RowInsertError) Error() string {
	return fmt.Sprintf("insert %s: %v", e.Key, e.Err)
}

func (e *RowInsertError) Unwrap() error { return e.Err }

// Unavailable marks err as a store connectivity failure.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
