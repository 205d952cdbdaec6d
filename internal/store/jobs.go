// internal/store/jobs.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/models"
)

// JobStore reads candidate postings produced by the scraping subsystem.
type JobStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewJobStore(db *sql.DB, log logger.Logger) *JobStore {
	return &JobStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "job-store"}),
	}
}

// RecentPostings returns postings created within the recency window,
// newest first, optionally filtered by source and capped at limit.
func (s *JobStore) RecentPostings(ctx context.Context, window time.Duration, source string, limit int) ([]models.JobPosting, error) {
	cutoff := time.Now().UTC().Add(-window)

	query := `SELECT id, title, company, source, COALESCE(description, ''), created_at
		 FROM job_postings
		 WHERE created_at > $1`
	args := []interface{}{cutoff}

	if source != "" {
		args = append(args, source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query job_postings: %w", err)
	}
	defer rows.Close()

	var postings []models.JobPosting
	for rows.Next() {
		var job models.JobPosting
		if err := rows.Scan(&job.ID, &job.Title, &job.Company, &job.Source, &job.Description, &job.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job_posting: %w", err)
		}
		postings = append(postings, job)
	}
	return postings, rows.Err()
}
