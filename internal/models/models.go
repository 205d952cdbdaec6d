// internal/models/models.go
package models

import "time"

// Device is a push-notification subscriber. Owned by the registration
// subsystem; read-only inside a pipeline pass.
type Device struct {
	ID                   string   `json:"id"`
	PushToken            string   `json:"pushToken,omitempty"` // absent devices are skipped, never errored
	Keywords             []string `json:"keywords"`            // ordered, normalized at the store boundary
	NotificationsEnabled bool     `json:"notificationsEnabled"`
}

// JobPosting is one scraped job offer. Read-only input for a pass.
type JobPosting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationRecord is one row of the dedup ledger: written once per
// (device, content hash), never updated.
type NotificationRecord struct {
	DeviceID        string    `json:"deviceId"`
	ContentHash     string    `json:"contentHash"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Source          string    `json:"source"`
	MatchedKeywords []string  `json:"matchedKeywords"`
	SentAt          time.Time `json:"sentAt"`
}

// MatchSession is one notification-worthy batch of newly matched jobs
// for one device in one pass. The sent flag flips exactly once, after a
// successful dispatch.
type MatchSession struct {
	ID          string       `json:"id"`
	DeviceID    string       `json:"deviceId"`
	PrimaryHash string       `json:"primaryHash"`
	Jobs        []JobPosting `json:"jobs"` // ordered by processing rank
	Keywords    []string     `json:"keywords"`
	Sent        bool         `json:"sent"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PrimaryJob returns the first job by processing order, which names the
// session and drives the duplicate-session guard.
func (s *MatchSession) PrimaryJob() JobPosting {
	if len(s.Jobs) == 0 {
		return JobPosting{}
	}
	return s.Jobs[0]
}

// RunStats aggregates the outcome of one orchestrator pass.
type RunStats struct {
	ProcessedJobs     int `json:"processedJobs"`
	MatchedDevices    int `json:"matchedDevices"`
	NotificationsSent int `json:"notificationsSent"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`
}
