// internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	pusherrors "jobalert-workers/internal/common/errors"
	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/common/metrics"
	"jobalert-workers/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushResult struct {
	res *apns2.Response
	err error
}

// fakePushClient replays a scripted sequence of provider outcomes; the
// last entry repeats if more attempts arrive.
type fakePushClient struct {
	mu     sync.Mutex
	script []pushResult
	calls  []*apns2.Notification
}

func (f *fakePushClient) Push(_ context.Context, n *apns2.Notification) (*apns2.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, n)
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i].res, f.script[i].err
}

func (f *fakePushClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeDeactivator struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeDeactivator) DeactivateToken(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, deviceID)
	return f.err
}

func accepted() pushResult {
	return pushResult{res: &apns2.Response{StatusCode: http.StatusOK, ApnsID: "apns-1"}}
}

func rejected(status int, reason string) pushResult {
	return pushResult{res: &apns2.Response{StatusCode: status, Reason: reason}}
}

func setupDispatcher(t *testing.T, script ...pushResult) (*Dispatcher, *fakePushClient, *fakeDeactivator) {
	client := &fakePushClient{script: script}
	deactivator := &fakeDeactivator{}
	d := New(client, Config{Topic: "com.example.jobalert", Timeout: time.Second, SendsPerSec: 1000},
		deactivator, logger.NewTestLogger(t))
	d.backoff = time.Millisecond
	return d, client, deactivator
}

func testDevice() models.Device {
	return models.Device{ID: "device-1", PushToken: validToken, NotificationsEnabled: true}
}

func singleJobSession() models.MatchSession {
	return testSession(models.JobPosting{ID: 10, Title: "iOS Developer", Company: "Acme"})
}

func TestDispatcher_Send_Success(t *testing.T) {
	d, client, deactivator := setupDispatcher(t, accepted())

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.NoError(t, err)
	require.Equal(t, 1, client.callCount())
	sent := client.calls[0]
	assert.Equal(t, validToken, sent.DeviceToken)
	assert.Equal(t, "com.example.jobalert", sent.Topic)
	assert.NotNil(t, sent.Payload)
	assert.Empty(t, deactivator.ids)
}

func TestDispatcher_Send_InvalidTokenShortCircuits(t *testing.T) {
	d, client, deactivator := setupDispatcher(t, accepted())

	device := testDevice()
	device.PushToken = "abcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd"

	err := d.Send(context.Background(), device, singleJobSession())

	require.Error(t, err)
	assert.True(t, pusherrors.IsKind(err, pusherrors.KindInvalidToken))
	// Never reaches the provider and never deactivates: the token was
	// never valid in the first place.
	assert.Zero(t, client.callCount())
	assert.Empty(t, deactivator.ids)
}

func TestDispatcher_Send_PermanentRejectionDeactivates(t *testing.T) {
	d, client, deactivator := setupDispatcher(t, rejected(http.StatusGone, "Unregistered"))

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.Error(t, err)
	assert.True(t, pusherrors.IsKind(err, pusherrors.KindPermanentRejection))
	assert.Equal(t, 1, client.callCount(), "permanent rejections are not retried")
	assert.Equal(t, []string{"device-1"}, deactivator.ids)
}

func TestDispatcher_Send_BadDeviceTokenReasonIsPermanent(t *testing.T) {
	d, _, deactivator := setupDispatcher(t, rejected(http.StatusBadRequest, "BadDeviceToken"))

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.Error(t, err)
	assert.True(t, pusherrors.IsKind(err, pusherrors.KindPermanentRejection))
	assert.Equal(t, []string{"device-1"}, deactivator.ids)
}

func TestDispatcher_Send_TransientFailureRetriesThenSucceeds(t *testing.T) {
	d, client, deactivator := setupDispatcher(t,
		rejected(http.StatusInternalServerError, "InternalServerError"),
		rejected(http.StatusServiceUnavailable, "ServiceUnavailable"),
		accepted(),
	)

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.NoError(t, err)
	assert.Equal(t, 3, client.callCount())
	assert.Empty(t, deactivator.ids)
}

func TestDispatcher_Send_TransientFailureExhaustsRetries(t *testing.T) {
	d, client, deactivator := setupDispatcher(t,
		rejected(http.StatusServiceUnavailable, "ServiceUnavailable"))

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.Error(t, err)
	assert.True(t, pusherrors.IsKind(err, pusherrors.KindTransientFailure))
	assert.Equal(t, 4, client.callCount(), "initial attempt plus three retries")
	assert.Empty(t, deactivator.ids, "transient failures never deactivate")
}

func TestDispatcher_Send_TransportErrorIsTransient(t *testing.T) {
	d, client, _ := setupDispatcher(t,
		pushResult{err: errors.New("dial tcp: connection refused")},
		accepted(),
	)

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())
}

func TestDispatcher_Send_LocalFailuresAreCounted(t *testing.T) {
	d, client, _ := setupDispatcher(t, accepted())

	invalidTokenFailures := func() float64 {
		return testutil.ToFloat64(metrics.NotificationsFailed.WithLabelValues(string(pusherrors.KindInvalidToken)))
	}
	oversizedFailures := func() float64 {
		return testutil.ToFloat64(metrics.NotificationsFailed.WithLabelValues(string(pusherrors.KindPayloadTooLarge)))
	}

	before := invalidTokenFailures()
	device := testDevice()
	device.PushToken = "too-short"
	err := d.Send(context.Background(), device, singleJobSession())
	require.Error(t, err)
	assert.Equal(t, before+1, invalidTokenFailures())

	before = oversizedFailures()
	sess := testSession(models.JobPosting{ID: 1, Title: strings.Repeat("a", 5000), Company: "Acme"})
	err = d.Send(context.Background(), testDevice(), sess)
	require.Error(t, err)
	assert.Equal(t, before+1, oversizedFailures())

	assert.Zero(t, client.callCount(), "local failures never reach the provider")
}

func TestDispatcher_Send_TooManyRequestsIsTransient(t *testing.T) {
	d, _, deactivator := setupDispatcher(t, rejected(http.StatusTooManyRequests, "TooManyRequests"))

	err := d.Send(context.Background(), testDevice(), singleJobSession())

	require.Error(t, err)
	assert.True(t, pusherrors.IsKind(err, pusherrors.KindTransientFailure))
	assert.Empty(t, deactivator.ids)
}
