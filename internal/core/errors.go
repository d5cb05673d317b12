package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoBackendsAvailable    = errors.New("no backends available")
	ErrGenerationFailed       = errors.New("generation failed")
	ErrMemoryLookupFailed     = errors.New("memory lookup failed")
	ErrMemoryExtractionFailed = errors.New("memory extraction failed")
	ErrAudioUnavailable       = errors.New("audio unavailable")
	ErrAudioFormatUnsupported = errors.New("audio format unsupported")
	ErrPersonaNotFound        = errors.New("persona not found")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrDocumentNotFound       = errors.New("document not found")
	ErrCommitFailed           = errors.New("turn commit failed")
)

// GenerationError carries the backend that failed a generation call.
// errors.Is(err, ErrGenerationFailed) holds for every GenerationError.
type GenerationError struct {
	Backend string
	Model   string
	Err     error
}

func NewGenerationError(backend, model string, err error) *GenerationError {
	return &GenerationError{Backend: backend, Model: model, Err: err}
}

func (e *GenerationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (%s/%s): %v", ErrGenerationFailed, e.Backend, e.Model, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrGenerationFailed, e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// UnsupportedAudio reports a format that could not be parsed nor re-encoded.
// It matches both ErrAudioUnavailable and ErrAudioFormatUnsupported.
func UnsupportedAudio(format string, cause error) error {
	return fmt.Errorf("%w: %w: %s: %v", ErrAudioUnavailable, ErrAudioFormatUnsupported, format, cause)
}
