package domain

import "errors"

var (
	// ErrValidation marks input that must never reach a provider.
	ErrValidation = errors.New("validation error")
	// ErrExhausted marks a fallback chain that ran out of candidate providers.
	ErrExhausted = errors.New("all providers exhausted")
	// ErrNotFound marks a missing provider or message reference.
	ErrNotFound = errors.New("not found")
)
