package interview

import "errors"

var (
	// ErrProviderRejected means the call can never succeed as configured.
	ErrProviderRejected = errors.New("provider rejected")
	// ErrProviderTransient means the provider was unreachable or unavailable.
	ErrProviderTransient   = errors.New("provider unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrScoringFailed       = errors.New("scoring failed")
	// ErrDuplicateCallback is absorbed by callers and never surfaced to providers.
	ErrDuplicateCallback = errors.New("duplicate callback")
	ErrUnknownReference  = errors.New("unknown reference")

	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidIndex  = errors.New("invalid question index")
	ErrAlreadyExists = errors.New("already exists")
)
