// internal/ledger/ledger.go

// Package ledger implements the dedup ledger: it answers "has this
// (device, job) pair already been notified?" and records new
// notifications idempotently.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Ledger wraps the notification_records table. The (device_id,
// content_hash) primary key is the at-most-once invariant; every write
// path maps a duplicate to wasNew=false, never to an error.
type Ledger struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "ledger"}),
	}
}

// AlreadySent reports which of the given hashes are already recorded for
// the device, in a single round trip.
func (l *Ledger) AlreadySent(ctx context.Context, deviceID string, hashes []string) (map[string]bool, error) {
	sent := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return sent, nil
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT content_hash FROM notification_records
		 WHERE device_id = $1 AND content_hash = ANY($2)`,
		deviceID, pq.Array(hashes),
	)
	if err != nil {
		return nil, fmt.Errorf("query notification_records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan content_hash: %w", err)
		}
		sent[h] = true
	}
	return sent, rows.Err()
}

// RecordIfNew inserts one ledger row with insert-or-ignore semantics and
// returns true only on first insertion. The return value is the sole
// trigger for counting a match as new.
func (l *Ledger) RecordIfNew(ctx context.Context, rec models.NotificationRecord) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO notification_records
		   (device_id, content_hash, title, company, source, matched_keywords, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (device_id, content_hash) DO NOTHING`,
		rec.DeviceID, rec.ContentHash, rec.Title, rec.Company, rec.Source,
		pq.Array(rec.MatchedKeywords), rec.SentAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert notification_record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// RecordManyIfNew inserts a batch in one statement and returns the count
// of rows that were actually new. A failing bulk statement degrades to
// row-by-row insertion rather than dropping the batch.
func (l *Ledger) RecordManyIfNew(ctx context.Context, recs []models.NotificationRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	query, args := buildBulkInsert(recs)
	res, err := l.db.ExecContext(ctx, query, args...)
	if err == nil {
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return 0, fmt.Errorf("rows affected: %w", raErr)
		}
		return int(n), nil
	}

	l.logger.Warn("bulk insert failed, degrading to row-by-row", map[string]interface{}{
		"batchSize": len(recs),
		"error":     err.Error(),
	})

	inserted := 0
	for _, rec := range recs {
		wasNew, rowErr := l.RecordIfNew(ctx, rec)
		if rowErr != nil {
			return inserted, rowErr
		}
		if wasNew {
			inserted++
		}
	}
	return inserted, nil
}

func buildBulkInsert(recs []models.NotificationRecord) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO notification_records
	   (device_id, content_hash, title, company, source, matched_keywords, sent_at) VALUES `)

	args := make([]interface{}, 0, len(recs)*7)
	for i, rec := range recs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args,
			rec.DeviceID, rec.ContentHash, rec.Title, rec.Company, rec.Source,
			pq.Array(rec.MatchedKeywords), rec.SentAt,
		)
	}
	sb.WriteString(" ON CONFLICT (device_id, content_hash) DO NOTHING")
	return sb.String(), args
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
