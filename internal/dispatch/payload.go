// internal/dispatch/payload.go
package dispatch

import (
	"encoding/json"

	pusherrors "jobalert-workers/internal/common/errors"
	"jobalert-workers/internal/ledger"
	"jobalert-workers/internal/models"
	"jobalert-workers/internal/session"

	"github.com/sideshow/apns2/payload"
)

// MaxPayloadBytes is the provider ceiling for a serialized notification.
const MaxPayloadBytes = 4096

const (
	maxPayloadJobs     = 5
	maxPayloadKeywords = 3

	notificationCategory = "JOB_MATCH"
	notificationThread   = "job-matches"
)

// BuildPayload renders the session into the wire payload and enforces
// the size ceiling. Oversize payloads are trimmed, jobs first, then
// keywords; a payload that is still oversized after trimming fails and
// is never transmitted.
func BuildPayload(sess models.MatchSession) ([]byte, error) {
	body, badge := session.Summarize(sess.Jobs)

	jobCount := len(sess.Jobs)
	if jobCount > maxPayloadJobs {
		jobCount = maxPayloadJobs
	}
	keywordCount := len(sess.Keywords)
	if keywordCount > maxPayloadKeywords {
		keywordCount = maxPayloadKeywords
	}

	for {
		raw, err := render(sess, body, badge, jobCount, keywordCount)
		if err != nil {
			return nil, err
		}
		if len(raw) <= MaxPayloadBytes {
			return raw, nil
		}
		if jobCount > 1 {
			jobCount--
			continue
		}
		if keywordCount > 0 {
			keywordCount--
			continue
		}
		return nil, pusherrors.NewPayloadTooLargeError(len(raw), MaxPayloadBytes)
	}
}

func render(sess models.MatchSession, body string, badge, jobCount, keywordCount int) ([]byte, error) {
	jobRefs := make([]map[string]interface{}, 0, jobCount)
	for _, job := range sess.Jobs[:jobCount] {
		jobRefs = append(jobRefs, map[string]interface{}{
			"id":   job.ID,
			"hash": ledger.Hash(job.Title, job.Company),
		})
	}

	p := payload.NewPayload().
		AlertTitle(alertTitle(body, badge)).
		AlertSubtitle(sess.Jobs[0].Company).
		AlertBody(body).
		Badge(badge).
		Sound("default").
		ThreadID(notificationThread).
		Category(notificationCategory).
		Custom("type", "job_match").
		Custom("sessionId", sess.ID).
		Custom("jobs", jobRefs).
		Custom("keywords", sess.Keywords[:keywordCount]).
		Custom("deepLink", "jobalert://sessions/"+sess.ID)

	return json.Marshal(p)
}

// alertTitle mirrors the batch summary into the title for multi-job
// sessions; a single match keeps the generic header and carries its
// title in the body.
func alertTitle(summary string, badge int) string {
	if badge > 1 {
		return summary
	}
	return "New Job Match"
}
