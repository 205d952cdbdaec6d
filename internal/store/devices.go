// internal/store/devices.go

// Package store holds the read-side collaborators of the pipeline: the
// device registry and the job posting store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/models"
)

// DeviceStore reads the device registry. Devices are owned by the
// registration subsystem; the pipeline only lists them and, on a
// permanent provider rejection, flags a token inactive.
type DeviceStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDeviceStore(db *sql.DB, log logger.Logger) *DeviceStore {
	return &DeviceStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "device-store"}),
	}
}

// ListActiveWithKeywords returns every device that can receive a
// notification: notifications enabled, an active token present, and at
// least one subscribed keyword after normalization. The registry stores
// keywords in legacy mixed representations (JSON array, comma list, or
// a single bare keyword); they are normalized here, once, so the rest
// of the pipeline only ever sees an ordered []string.
func (s *DeviceStore) ListActiveWithKeywords(ctx context.Context) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, push_token, keywords, notifications_enabled
		 FROM devices
		 WHERE notifications_enabled
		   AND token_active
		   AND push_token IS NOT NULL AND push_token <> ''
		   AND keywords IS NOT NULL AND keywords <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var (
			device      models.Device
			rawKeywords string
		)
		if err := rows.Scan(&device.ID, &device.PushToken, &rawKeywords, &device.NotificationsEnabled); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		device.Keywords = parseKeywords(rawKeywords)
		if len(device.Keywords) == 0 {
			continue
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// DeactivateToken flags the device's token inactive so the next
// ListActiveWithKeywords excludes it. Idempotent.
func (s *DeviceStore) DeactivateToken(ctx context.Context, deviceID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE devices SET token_active = FALSE, updated_at = now() WHERE id = $1`,
		deviceID,
	)
	if err != nil {
		return fmt.Errorf("deactivate token: %w", err)
	}
	return nil
}

// parseKeywords flattens the legacy keyword representations into one
// ordered, lowercase, deduplicated list.
func parseKeywords(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return normalizeKeywords(list)
		}
	}
	return normalizeKeywords(strings.Split(raw, ","))
}

func normalizeKeywords(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, kw := range list {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
