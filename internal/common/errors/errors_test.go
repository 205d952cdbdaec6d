// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		reason     string
		wantKind   ErrorKind
		retryable  bool
	}{
		{"gone is permanent", 410, "Unregistered", KindPermanentRejection, false},
		{"bad device token is permanent", 400, "BadDeviceToken", KindPermanentRejection, false},
		{"topic mismatch is permanent", 400, "DeviceTokenNotForTopic", KindPermanentRejection, false},
		{"payload too large", 413, "PayloadTooLarge", KindPayloadTooLarge, false},
		{"too many requests is transient", 429, "TooManyRequests", KindTransientFailure, true},
		{"internal server error is transient", 500, "InternalServerError", KindTransientFailure, true},
		{"service unavailable is transient", 503, "ServiceUnavailable", KindTransientFailure, true},
		{"unknown reason defaults to transient", 400, "SomethingNew", KindTransientFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyResponse(tt.statusCode, tt.reason)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.statusCode, got.StatusCode)
		})
	}
}

func TestPolicyHelpers(t *testing.T) {
	assert.True(t, ShouldDeactivate(KindPermanentRejection))
	assert.False(t, ShouldDeactivate(KindInvalidToken), "locally rejected tokens were never valid")
	assert.False(t, ShouldDeactivate(KindTransientFailure))

	assert.True(t, IsSkip(KindRateLimited))
	assert.True(t, IsSkip(KindQuietHours))
	assert.False(t, IsSkip(KindPermanentRejection))

	assert.Equal(t, 3, GetRetryCount(KindTransientFailure))
	assert.Equal(t, 3, GetRetryCount(KindCollaboratorUnavailable))
	assert.Zero(t, GetRetryCount(KindPermanentRejection))
	assert.Zero(t, GetRetryCount(KindInvalidToken))
}

func TestKindOf(t *testing.T) {
	err := NewRateLimitedError("hourly cap")
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.True(t, IsKind(err, KindRateLimited))

	wrapped := fmt.Errorf("pipeline: %w", err)
	assert.Equal(t, KindRateLimited, KindOf(wrapped))

	assert.Equal(t, ErrorKind(""), KindOf(fmt.Errorf("plain")))
}
