package pipeline

import "errors"

var (
	// ErrMissingUser rejects a turn without a user id before any routing.
	ErrMissingUser = errors.New("missing user id")
	// ErrUpstream wraps failures of the language model or the recognizer.
	ErrUpstream = errors.New("upstream service failed")
	// ErrPersistence wraps chat store failures.
	ErrPersistence = errors.New("chat store failed")
)
