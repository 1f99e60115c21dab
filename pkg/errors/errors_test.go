package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("element not found")

	err := NewTriggerError(5, cause)
	assert.Equal(t, "trigger error at position 5: could not trigger download: element not found", err.Error())
	assert.ErrorIs(t, err, cause)

	timeout := NewDownloadTimeout("/tmp/dl", 3*time.Minute)
	assert.Equal(t, "download_timeout error: no file settled in /tmp/dl within 3m0s", timeout.Error())

	status := New(ErrorTypeServerError, "bad gateway", 502)
	assert.Equal(t, "server_error error (code 502): bad gateway", status.Error())
}

func TestTypePredicates(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", NewCatalogUnavailable("list positions", errors.New("browser gone")))

	assert.True(t, IsFatal(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeCatalogUnavailable))
	assert.Equal(t, ErrorTypeCatalogUnavailable, TypeOf(wrapped))

	assert.False(t, IsFatal(NewRenameError("a.pdf", "b.pdf", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestWithPosition(t *testing.T) {
	base := NewDownloadTimeout("dl", time.Second)
	bound := base.WithPosition(7)

	require.NotSame(t, base, bound)
	assert.Equal(t, NoPosition, base.Position)
	assert.Equal(t, 7, bound.Position)
	assert.Contains(t, bound.Error(), "at position 7")
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypeTrigger))
	assert.False(t, IsRetryable(ErrorTypeAuth))

	assert.True(t, IsRetryableStatusCode(503))
	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(404))

	assert.Equal(t, ErrorTypeRateLimit, FromStatusCode(429))
	assert.Equal(t, ErrorTypeAuth, FromStatusCode(403))
	assert.Equal(t, ErrorTypeServerError, FromStatusCode(500))
}
