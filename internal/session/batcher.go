// internal/session/batcher.go

// Package session groups the new matches for one device within one
// pipeline pass into a single match session, and persists the session
// lifecycle around dispatch.
package session

import (
	"time"

	"jobalert-workers/internal/ledger"
	"jobalert-workers/internal/models"

	"github.com/google/uuid"
)

// Builder accumulates the per-device working set during a pass: jobs in
// processing order (rank) and the order-preserving union of matched
// keywords. One Builder serves exactly one device in one pass, so it
// needs no locking.
type Builder struct {
	deviceID     string
	jobs         []models.JobPosting
	keywords     []string
	seenKeywords map[string]bool
}

func NewBuilder(deviceID string) *Builder {
	return &Builder{
		deviceID:     deviceID,
		seenKeywords: make(map[string]bool),
	}
}

// Add appends a job that the ledger confirmed as new, together with the
// keywords that matched it. Keywords join the union once, keeping the
// order of first appearance.
func (b *Builder) Add(job models.JobPosting, matched []string) {
	b.jobs = append(b.jobs, job)
	for _, kw := range matched {
		if b.seenKeywords[kw] {
			continue
		}
		b.seenKeywords[kw] = true
		b.keywords = append(b.keywords, kw)
	}
}

func (b *Builder) Empty() bool {
	return len(b.jobs) == 0
}

// Build finalizes the working set into a session. The first job by
// processing order is the primary: its content hash names the session
// for the duplicate-session guard.
func (b *Builder) Build() models.MatchSession {
	return models.MatchSession{
		ID:          uuid.NewString(),
		DeviceID:    b.deviceID,
		PrimaryHash: ledger.Hash(b.jobs[0].Title, b.jobs[0].Company),
		Jobs:        b.jobs,
		Keywords:    b.keywords,
		Sent:        false,
		CreatedAt:   time.Now().UTC(),
	}
}
