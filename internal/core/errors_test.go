package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ValidationError("bad slot")))
	assert.Equal(t, KindStateConflict, KindOf(ConflictError("no active rule")))
	assert.Equal(t, KindProvider, KindOf(ProviderError("weights", errors.New("timeout"))))

	// Untyped errors come from I/O paths and default to provider.
	assert.Equal(t, KindProvider, KindOf(errors.New("dial tcp: refused")))

	// Wrapped typed errors are still classified.
	wrapped := fmt.Errorf("apply failed: %w", ValidationError("bad fraction"))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ProviderError("weights", errors.New("timeout"))))
	assert.False(t, Retryable(ValidationError("bad slot")))
	assert.False(t, Retryable(ConflictError("already rolled back")))
}

func TestErrorMessage(t *testing.T) {
	err := ProviderError("failed to apply weights", errors.New("503"))
	assert.Equal(t, "failed to apply weights: 503", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "503")

	assert.Equal(t, "bad fraction", ValidationError("bad fraction").Error())
}

func TestUptimePercent(t *testing.T) {
	assert.Equal(t, -1.0, Target{}.UptimePercent())
	assert.Equal(t, 75.0, Target{ChecksTotal: 4, ChecksFailed: 1}.UptimePercent())
	assert.Equal(t, 100.0, Target{ChecksTotal: 10}.UptimePercent())
}
