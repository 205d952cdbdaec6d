// internal/dispatch/dispatcher.go

// Package dispatch renders and transmits push notifications and maps
// provider outcomes onto the pipeline error taxonomy.
package dispatch

import (
	"context"
	"time"

	pusherrors "jobalert-workers/internal/common/errors"
	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/common/metrics"
	"jobalert-workers/internal/models"

	"github.com/sideshow/apns2"
	"golang.org/x/time/rate"
)

const initialBackoff = 500 * time.Millisecond

// PushClient is the provider transport. *apns2.Client satisfies it via
// the adapter below; tests substitute a fake.
type PushClient interface {
	Push(ctx context.Context, n *apns2.Notification) (*apns2.Response, error)
}

// DeviceDeactivator flags a device token inactive after a permanent
// provider rejection, excluding it from future passes.
type DeviceDeactivator interface {
	DeactivateToken(ctx context.Context, deviceID string) error
}

// Config carries the transport settings for one dispatcher instance.
type Config struct {
	Topic       string        // APNs topic (app bundle id)
	Timeout     time.Duration // per-attempt provider deadline
	SendsPerSec int           // smoothing limit across all devices
}

// Dispatcher validates the token, builds the payload, transmits it, and
// classifies the outcome. Safe for concurrent use by per-device
// pipelines.
type Dispatcher struct {
	client      PushClient
	topic       string
	timeout     time.Duration
	limiter     *rate.Limiter
	backoff     time.Duration
	deactivator DeviceDeactivator
	logger      logger.Logger
}

func New(client PushClient, cfg Config, deactivator DeviceDeactivator, log logger.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SendsPerSec <= 0 {
		cfg.SendsPerSec = 50
	}
	return &Dispatcher{
		client:      client,
		topic:       cfg.Topic,
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(rate.Limit(cfg.SendsPerSec), cfg.SendsPerSec),
		backoff:     initialBackoff,
		deactivator: deactivator,
		logger:      log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Send delivers one session notification to one device. The returned
// error, when non-nil, is always a *PushError carrying the taxonomy
// kind; the caller decides whether it counts as a skip or a failure.
func (d *Dispatcher) Send(ctx context.Context, device models.Device, sess models.MatchSession) error {
	if err := ValidateToken(device.PushToken); err != nil {
		d.logger.Warn("token failed local validation", map[string]interface{}{
			"deviceId": device.ID,
			"token":    RedactToken(device.PushToken),
			"error":    err.Error(),
		})
		metrics.NotificationsFailed.WithLabelValues(string(pusherrors.KindOf(err))).Inc()
		return err
	}

	raw, err := BuildPayload(sess)
	if err != nil {
		metrics.NotificationsFailed.WithLabelValues(string(pusherrors.KindOf(err))).Inc()
		return err
	}

	notification := &apns2.Notification{
		DeviceToken: device.PushToken,
		Topic:       d.topic,
		Payload:     raw,
	}

	var pushErr *pusherrors.PushError
	backoff := d.backoff
	for attempt := 0; ; attempt++ {
		pushErr = d.attempt(ctx, notification, device)
		if pushErr == nil {
			return nil
		}
		if !pushErr.Retryable || attempt >= pusherrors.GetRetryCount(pushErr.Kind) {
			break
		}
		select {
		case <-ctx.Done():
			return pusherrors.NewTransportError(ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	metrics.NotificationsFailed.WithLabelValues(string(pushErr.Kind)).Inc()

	if pusherrors.ShouldDeactivate(pushErr.Kind) {
		if derr := d.deactivator.DeactivateToken(ctx, device.ID); derr != nil {
			d.logger.Error("failed to deactivate token", map[string]interface{}{
				"deviceId": device.ID,
				"error":    derr.Error(),
			})
		} else {
			metrics.TokensDeactivated.Inc()
			d.logger.Info("device token deactivated", map[string]interface{}{
				"deviceId": device.ID,
				"token":    RedactToken(device.PushToken),
				"reason":   pushErr.Details,
			})
		}
	}
	return pushErr
}

func (d *Dispatcher) attempt(ctx context.Context, n *apns2.Notification, device models.Device) *pusherrors.PushError {
	if err := d.limiter.Wait(ctx); err != nil {
		return pusherrors.NewTransportError(err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := d.client.Push(sendCtx, n)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Warn("provider transport error", map[string]interface{}{
			"deviceId":  device.ID,
			"token":     RedactToken(device.PushToken),
			"elapsedMs": elapsed.Milliseconds(),
			"error":     err.Error(),
		})
		return pusherrors.NewTransportError(err)
	}

	if res.Sent() {
		d.logger.Debug("notification accepted by provider", map[string]interface{}{
			"deviceId":  device.ID,
			"apnsId":    res.ApnsID,
			"elapsedMs": elapsed.Milliseconds(),
		})
		return nil
	}

	pushErr := pusherrors.ClassifyResponse(res.StatusCode, res.Reason)
	d.logger.Warn("provider rejected notification", map[string]interface{}{
		"deviceId":   device.ID,
		"token":      RedactToken(device.PushToken),
		"statusCode": res.StatusCode,
		"reason":     res.Reason,
		"errorKind":  string(pushErr.Kind),
		"elapsedMs":  elapsed.Milliseconds(),
	})
	return pushErr
}

// RedactToken keeps just enough of a device token to correlate log
// lines without leaking the credential.
func RedactToken(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
