// internal/orchestrator/orchestrator.go

// Package orchestrator drives one pipeline pass: it loads the candidate
// postings and the active devices, fans out one independent pipeline
// per device, and aggregates the results.
package orchestrator

import (
	"context"
	"sync"
	"time"

	pusherrors "jobalert-workers/internal/common/errors"
	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/common/metrics"
	"jobalert-workers/internal/ledger"
	"jobalert-workers/internal/matcher"
	"jobalert-workers/internal/models"
	"jobalert-workers/internal/session"

	"github.com/google/uuid"
)

// Pass states, exposed for health reporting.
type State string

const (
	StateIdle                State = "idle"
	StateLoadingInputs       State = "loading_inputs"
	StatePerDeviceProcessing State = "per_device_processing"
	StateAggregating         State = "aggregating"
	StateDone                State = "done"
	StateError               State = "error"
)

// Skip reasons for the notifications_skipped_total metric.
const (
	skipDuplicateSession = "duplicate_session"
	skipQuietHours       = "quiet_hours"
	skipRateLimited      = "rate_limited"
	skipLocalGate        = "dispatcher_gate"
)

// DeviceLister and JobLister are the read-side collaborators. Their
// unavailability at pass start aborts the pass; partial progress from a
// previous state is never rolled back.
type DeviceLister interface {
	ListActiveWithKeywords(ctx context.Context) ([]models.Device, error)
}

type JobLister interface {
	RecentPostings(ctx context.Context, window time.Duration, source string, limit int) ([]models.JobPosting, error)
}

// DedupLedger is the at-most-once arbiter (see internal/ledger).
type DedupLedger interface {
	AlreadySent(ctx context.Context, deviceID string, hashes []string) (map[string]bool, error)
	RecordIfNew(ctx context.Context, rec models.NotificationRecord) (bool, error)
}

// PairLocker is the advisory cross-pass lease around a ledger insert.
type PairLocker interface {
	Acquire(ctx context.Context, deviceID, hash string) (func(), bool)
}

// SessionStore persists the session lifecycle around dispatch.
type SessionStore interface {
	RecentlySent(ctx context.Context, deviceID, primaryHash string) (bool, error)
	Persist(ctx context.Context, sess models.MatchSession) error
	MarkSent(ctx context.Context, sessionID string) error
}

// RateGate caps per-device volume and suppresses quiet-hours delivery.
type RateGate interface {
	Allow(ctx context.Context, deviceID string) (bool, error)
	RecordSend(ctx context.Context, deviceID string) error
	InQuietHours(now time.Time) bool
}

// Sender transmits one session notification to one device.
type Sender interface {
	Send(ctx context.Context, device models.Device, sess models.MatchSession) error
}

// Config carries the pass-level knobs.
type Config struct {
	RecencyWindow time.Duration // candidate postings cutoff
	DeviceTimeout time.Duration // per-device pipeline deadline
	DefaultLimit  int           // posting cap when Options.Limit is zero
	DefaultSource string        // source filter when Options.Source is empty
}

// Options select the inputs for one pass.
type Options struct {
	Source string
	Limit  int
	DryRun bool
}

type Orchestrator struct {
	devices    DeviceLister
	jobs       JobLister
	ledger     DedupLedger
	locks      PairLocker
	sessions   SessionStore
	gate       RateGate
	dispatcher Sender
	cfg        Config
	logger     logger.Logger

	mu    sync.Mutex
	state State
}

func New(devices DeviceLister, jobs JobLister, dedup DedupLedger, locks PairLocker,
	sessions SessionStore, gate RateGate, dispatcher Sender, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = 24 * time.Hour
	}
	if cfg.DeviceTimeout <= 0 {
		cfg.DeviceTimeout = 30 * time.Second
	}
	return &Orchestrator{
		devices:    devices,
		jobs:       jobs,
		ledger:     dedup,
		locks:      locks,
		sessions:   sessions,
		gate:       gate,
		dispatcher: dispatcher,
		cfg:        cfg,
		state:      StateIdle,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// State returns the current pass state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RunPass executes one full pass. With DryRun set, it runs matching and
// the already-sent check only: no ledger writes, no counter increments,
// no transport calls.
func (o *Orchestrator) RunPass(ctx context.Context, opts Options) (models.RunStats, error) {
	start := time.Now()
	var stats models.RunStats

	log := o.logger.WithFields(map[string]interface{}{"passId": uuid.NewString()})

	if opts.Source == "" {
		opts.Source = o.cfg.DefaultSource
	}
	if opts.Limit <= 0 {
		opts.Limit = o.cfg.DefaultLimit
	}

	o.setState(StateLoadingInputs)

	devices, err := o.devices.ListActiveWithKeywords(ctx)
	if err != nil {
		o.setState(StateError)
		return stats, pusherrors.NewCollaboratorUnavailableError("device store", err)
	}

	jobs, err := o.jobs.RecentPostings(ctx, o.cfg.RecencyWindow, opts.Source, opts.Limit)
	if err != nil {
		o.setState(StateError)
		return stats, pusherrors.NewCollaboratorUnavailableError("job store", err)
	}

	stats.ProcessedJobs = len(jobs)
	log.Info("pass inputs loaded", map[string]interface{}{
		"devices": len(devices),
		"jobs":    len(jobs),
		"source":  opts.Source,
		"dryRun":  opts.DryRun,
	})

	if len(devices) == 0 || len(jobs) == 0 {
		o.setState(StateDone)
		return stats, nil
	}

	o.setState(StatePerDeviceProcessing)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, device := range devices {
		wg.Add(1)
		go func(device models.Device) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("device pipeline panicked", map[string]interface{}{
						"deviceId": device.ID,
						"panic":    r,
					})
					mu.Lock()
					stats.Errors++
					mu.Unlock()
				}
			}()

			res := o.processDevice(ctx, device, jobs, opts.DryRun)

			mu.Lock()
			if res.matched {
				stats.MatchedDevices++
			}
			stats.NotificationsSent += res.sent
			stats.Skipped += res.skipped
			stats.Errors += res.errors
			mu.Unlock()
		}(device)
	}
	wg.Wait()

	o.setState(StateAggregating)

	if !opts.DryRun {
		metrics.PipelineJobsProcessed.Add(float64(stats.ProcessedJobs))
		metrics.PipelineDevicesMatched.Add(float64(stats.MatchedDevices))
		metrics.PassDuration.Observe(time.Since(start).Seconds())
	}

	log.Info("pass complete", map[string]interface{}{
		"processedJobs":     stats.ProcessedJobs,
		"matchedDevices":    stats.MatchedDevices,
		"notificationsSent": stats.NotificationsSent,
		"skipped":           stats.Skipped,
		"errors":            stats.Errors,
		"elapsedMs":         time.Since(start).Milliseconds(),
		"dryRun":            opts.DryRun,
	})

	o.setState(StateDone)
	return stats, nil
}

type deviceResult struct {
	matched bool
	sent    int
	skipped int
	errors  int
}

type matchedJob struct {
	job      models.JobPosting
	keywords []string
	hash     string
}

// processDevice runs the sequential per-device pipeline: match →
// dedup-check → record → batch → guards → persist → dispatch → confirm.
func (o *Orchestrator) processDevice(ctx context.Context, device models.Device, jobs []models.JobPosting, dryRun bool) deviceResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.DeviceTimeout)
	defer cancel()

	var res deviceResult
	log := o.logger.WithFields(map[string]interface{}{"deviceId": device.ID})

	// Devices without a delivery token are skipped, never errored.
	if device.PushToken == "" {
		return res
	}

	var (
		matches []matchedJob
		hashes  []string
	)
	for _, job := range jobs {
		kws := matcher.Match(job, device.Keywords)
		if len(kws) == 0 {
			continue
		}
		h := ledger.Hash(job.Title, job.Company)
		matches = append(matches, matchedJob{job: job, keywords: kws, hash: h})
		hashes = append(hashes, h)
	}
	if len(matches) == 0 {
		return res
	}

	sent, err := o.ledger.AlreadySent(ctx, device.ID, hashes)
	if err != nil {
		log.Error("dedup check failed", map[string]interface{}{"error": err.Error()})
		res.errors++
		return res
	}

	builder := session.NewBuilder(device.ID)

	if dryRun {
		for _, m := range matches {
			if !sent[m.hash] {
				builder.Add(m.job, m.keywords)
			}
		}
		res.matched = !builder.Empty()
		return res
	}

	now := time.Now().UTC()
	for _, m := range matches {
		if sent[m.hash] {
			continue
		}
		release, _ := o.locks.Acquire(ctx, device.ID, m.hash)
		wasNew, err := o.ledger.RecordIfNew(ctx, models.NotificationRecord{
			DeviceID:        device.ID,
			ContentHash:     m.hash,
			Title:           m.job.Title,
			Company:         m.job.Company,
			Source:          m.job.Source,
			MatchedKeywords: m.keywords,
			SentAt:          now,
		})
		release()
		if err != nil {
			log.Error("ledger insert failed", map[string]interface{}{
				"hash":  m.hash,
				"error": err.Error(),
			})
			res.errors++
			continue
		}
		if wasNew {
			builder.Add(m.job, m.keywords)
		}
	}
	if builder.Empty() {
		return res
	}
	res.matched = true

	sess := builder.Build()

	dup, err := o.sessions.RecentlySent(ctx, device.ID, sess.PrimaryHash)
	if err != nil {
		log.Error("duplicate-session check failed", map[string]interface{}{"error": err.Error()})
		res.errors++
		return res
	}
	if dup {
		log.Debug("duplicate session suppressed", map[string]interface{}{"primaryHash": sess.PrimaryHash})
		metrics.NotificationsSkipped.WithLabelValues(skipDuplicateSession).Inc()
		res.skipped++
		return res
	}

	if o.gate.InQuietHours(now) {
		log.Debug("delivery suppressed during quiet hours", nil)
		metrics.NotificationsSkipped.WithLabelValues(skipQuietHours).Inc()
		res.skipped++
		return res
	}

	allowed, err := o.gate.Allow(ctx, device.ID)
	if err != nil {
		log.Error("rate gate unavailable", map[string]interface{}{"error": err.Error()})
		res.errors++
		return res
	}
	if !allowed {
		metrics.NotificationsSkipped.WithLabelValues(skipRateLimited).Inc()
		res.skipped++
		return res
	}

	if err := o.sessions.Persist(ctx, sess); err != nil {
		log.Error("session persist failed", map[string]interface{}{"error": err.Error()})
		res.errors++
		return res
	}

	if err := o.dispatcher.Send(ctx, device, sess); err != nil {
		if pusherrors.IsSkip(pusherrors.KindOf(err)) {
			metrics.NotificationsSkipped.WithLabelValues(skipLocalGate).Inc()
			res.skipped++
		} else {
			res.errors++
		}
		return res
	}

	// The notification is out; confirmation failures must not undo it.
	if err := o.sessions.MarkSent(ctx, sess.ID); err != nil {
		log.Error("failed to mark session sent", map[string]interface{}{
			"sessionId": sess.ID,
			"error":     err.Error(),
		})
	}
	if err := o.gate.RecordSend(ctx, device.ID); err != nil {
		log.Error("failed to record rate budget", map[string]interface{}{"error": err.Error()})
	}

	metrics.NotificationsSent.Inc()
	res.sent++
	return res
}
