// internal/session/store.go
package session

import (
	"context"
	"database/sql"
	"fmt"

	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/models"

	"github.com/lib/pq"
)

// Store persists match sessions. The lifecycle is write-once plus a
// single sent-flag transition: Persist writes the row with sent=false
// before dispatch, MarkSent flips it after the provider accepted the
// notification. A crash between the two leaves a resendable unsent row,
// and RecentlySent stops the opposite failure mode of a double send.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "session-store"}),
	}
}

// RecentlySent reports whether a session with the same primary hash was
// already sent to this device within the last hour. Two passes that both
// see the same not-yet-rescraped first job would otherwise double-notify
// the same batch.
func (s *Store) RecentlySent(ctx context.Context, deviceID, primaryHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM match_sessions
		   WHERE device_id = $1 AND primary_hash = $2 AND sent
		     AND created_at > now() - interval '1 hour'
		 )`,
		deviceID, primaryHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query recent sessions: %w", err)
	}
	return exists, nil
}

// Persist writes the session with sent=false.
func (s *Store) Persist(ctx context.Context, sess models.MatchSession) error {
	jobIDs := make([]int64, len(sess.Jobs))
	for i, job := range sess.Jobs {
		jobIDs[i] = job.ID
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO match_sessions
		   (id, device_id, primary_hash, job_ids, keywords, job_count, sent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.ID, sess.DeviceID, sess.PrimaryHash,
		pq.Array(jobIDs), pq.Array(sess.Keywords), len(sess.Jobs),
		sess.Sent, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match_session: %w", err)
	}
	return nil
}

// MarkSent flips the sent flag. It is called exactly once per session,
// after a successful dispatch.
func (s *Store) MarkSent(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE match_sessions SET sent = TRUE WHERE id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("mark session sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}
