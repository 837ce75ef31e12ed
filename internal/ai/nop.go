package ai

import (
	"context"
	"errors"
)

// ErrDisabled is returned when no LLM is configured.
var ErrDisabled = errors.New("letter generation is not configured")

// DisabledProvider is used when ai.api_key is empty. Digests keep working;
// every letter request fails with ErrDisabled.
type DisabledProvider struct{}

// NewDisabledProvider returns a DisabledProvider.
func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

// Complete always fails.
func (DisabledProvider) Complete(context.Context, string) (string, error) {
	return "", ErrDisabled
}
