package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// deviceSnapshot is the trash payload for a deleted device. Telemetry and
// events stay in place so a restore gets its history back; retention purges
// them on schedule if the device never returns.
type deviceSnapshot struct {
	Device Device  `json:"device"`
	TagIDs []int64 `json:"tagIds,omitempty"`
}

// DeviceCount returns the number of known devices.
func (s *Store) DeviceCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&count)
	return count, err
}

// ListDevices returns devices ordered by external id, tags attached.
// limit <= 0 means no limit.
func (s *Store) ListDevices(limit int) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := `SELECT id, device_id, name, model, location, created_at, last_seen_at FROM devices ORDER BY device_id`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			log.Printf("duckdb scan error (ListDevices): %v", err)
			continue
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagsByDevice, err := s.tagsByDevice(ctx)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Tags = tagsByDevice[results[i].ID]
	}
	return results, nil
}

// DeviceByID looks a device up by its external id.
func (s *Store) DeviceByID(deviceID string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, name, model, location, created_at, last_seen_at
		FROM devices WHERE device_id = ?`, deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tags, err := s.tagsForDevice(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Tags = tags
	return &d, nil
}

// UpdateDevice sets the operator-editable fields of a device.
func (s *Store) UpdateDevice(deviceID, name, model, location string) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE devices SET name = ?, model = ?, location = ? WHERE device_id = ?
		RETURNING id, device_id, name, model, location, created_at, last_seen_at`,
		name, model, location, deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	tags, err := s.tagsForDevice(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Tags = tags
	return &d, nil
}

// TrashDevice snapshots a device into the trash and removes it. The device's
// telemetry and events are left untouched.
func (s *Store) TrashDevice(deviceID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT id, device_id, name, model, location, created_at, last_seen_at
		FROM devices WHERE device_id = ?`, deviceID)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	snap := deviceSnapshot{Device: d}
	tagRows, err := tx.QueryContext(ctx, `SELECT tag_id FROM device_tag_links WHERE device_id = ?`, d.ID)
	if err != nil {
		return err
	}
	for tagRows.Next() {
		var tagID int64
		if err := tagRows.Scan(&tagID); err != nil {
			tagRows.Close()
			return err
		}
		snap.TagIDs = append(snap.TagIDs, tagID)
	}
	if err := tagRows.Err(); err != nil {
		tagRows.Close()
		return err
	}
	tagRows.Close()

	if err := insertTrashTx(ctx, tx, EntityDevice, d.ID, d.DeviceID, snap, ttl); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM device_tag_links WHERE device_id = ?`, d.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, d.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// restoreDeviceTx re-creates a trashed device from its snapshot. Telemetry
// may have re-provisioned the same external id in the meantime; the stored
// snapshot wins and absorbs the newer liveness timestamp.
func restoreDeviceTx(ctx context.Context, tx *sql.Tx, snapshot []byte) error {
	var snap deviceSnapshot
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return fmt.Errorf("duckdb: decode device snapshot: %w", err)
	}
	d := snap.Device

	var newerSeen sql.NullTime
	err := tx.QueryRowContext(ctx, `SELECT last_seen_at FROM devices WHERE device_id = ?`, d.DeviceID).Scan(&newerSeen)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if newerSeen.Valid && newerSeen.Time.After(d.LastSeenAt) {
		d.LastSeenAt = newerSeen.Time
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE device_id = ?`, d.DeviceID); err != nil {
		return err
	}

	var lastSeen interface{}
	if !d.LastSeenAt.IsZero() {
		lastSeen = d.LastSeenAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO devices (id, device_id, name, model, location, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DeviceID, d.Name, d.Model, d.Location, d.CreatedAt, lastSeen); err != nil {
		return err
	}

	for _, tagID := range snap.TagIDs {
		// Tags can be deleted while the device sits in the trash.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO device_tag_links (device_id, tag_id)
			SELECT ?, ? WHERE EXISTS (SELECT 1 FROM device_tags WHERE id = ?)`,
			d.ID, tagID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// ListTags returns all device tags ordered by name.
func (s *Store) ListTags() ([]Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM device_tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			log.Printf("duckdb scan error (ListTags): %v", err)
			continue
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// CreateTag adds a device tag. Tag names are unique.
func (s *Store) CreateTag(name, color string) (*Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var t Tag
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO device_tags (name, color) VALUES (?, ?)
		RETURNING id, name, color`, name, color).Scan(&t.ID, &t.Name, &t.Color)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create tag: %w", err)
	}
	return &t, nil
}

// UpdateTag renames or recolors a tag.
func (s *Store) UpdateTag(id int64, name, color string) (*Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var t Tag
	err := s.db.QueryRowContext(ctx, `
		UPDATE device_tags SET name = ?, color = ? WHERE id = ?
		RETURNING id, name, color`, name, color, id).Scan(&t.ID, &t.Name, &t.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTag removes a tag and all its device links.
func (s *Store) DeleteTag(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM device_tag_links WHERE tag_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM device_tags WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AttachTag links a tag to a device. Attaching twice is a no-op.
func (s *Store) AttachTag(deviceID string, tagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	internalID, err := s.deviceInternalID(ctx, deviceID)
	if err != nil {
		return err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_tags WHERE id = ?`, tagID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO device_tag_links (device_id, tag_id) VALUES (?, ?)
		ON CONFLICT (device_id, tag_id) DO NOTHING`, internalID, tagID)
	return err
}

// DetachTag removes a tag link from a device.
func (s *Store) DetachTag(deviceID string, tagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	internalID, err := s.deviceInternalID(ctx, deviceID)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM device_tag_links WHERE device_id = ? AND tag_id = ?`, internalID, tagID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDevicesByTag returns the devices carrying a tag, ordered by external id.
func (s *Store) ListDevicesByTag(tagID int64) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.device_id, d.name, d.model, d.location, d.created_at, d.last_seen_at
		FROM devices d
		JOIN device_tag_links l ON l.device_id = d.id
		WHERE l.tag_id = ?
		ORDER BY d.device_id`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			log.Printf("duckdb scan error (ListDevicesByTag): %v", err)
			continue
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// InsertDeviceEvent stores a device-side status event, provisioning the
// device if it has never been seen before.
func (s *Store) InsertDeviceEvent(ev *DeviceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO devices (device_id, name, last_seen_at) VALUES (?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET last_seen_at = CASE
			WHEN devices.last_seen_at IS NULL OR excluded.last_seen_at > devices.last_seen_at
			THEN excluded.last_seen_at ELSE devices.last_seen_at END`,
		ev.DeviceID, ev.DeviceID, createdAt); err != nil {
		return fmt.Errorf("device upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO device_events (device_id, severity, message, created_at) VALUES (?, ?, ?, ?)`,
		ev.DeviceID, ev.Severity, ev.Message, createdAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RecentEvents returns device events newest first. deviceID and severity are
// optional filters; limit <= 0 falls back to 100.
func (s *Store) RecentEvents(deviceID, severity string, limit int) ([]DeviceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	var conditions []string
	var args []interface{}
	if deviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, deviceID)
	}
	if severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, severity)
	}

	query := `SELECT id, device_id, severity, message, created_at FROM device_events`
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DeviceEvent
	for rows.Next() {
		var ev DeviceEvent
		if err := rows.Scan(&ev.ID, &ev.DeviceID, &ev.Severity, &ev.Message, &ev.CreatedAt); err != nil {
			log.Printf("duckdb scan error (RecentEvents): %v", err)
			continue
		}
		results = append(results, ev)
	}
	return results, rows.Err()
}

// EventSeverityCounts returns the total event count per severity.
func (s *Store) EventSeverityCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM device_events GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			log.Printf("duckdb scan error (EventSeverityCounts): %v", err)
			continue
		}
		result[severity] = count
	}
	return result, rows.Err()
}

// DeleteEventsBefore removes device events older than cutoff.
func (s *Store) DeleteEventsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM device_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// deviceInternalID resolves an external device id to the devices primary key.
func (s *Store) deviceInternalID(ctx context.Context, deviceID string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM devices WHERE device_id = ?`, deviceID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// tagsByDevice loads every tag link keyed by internal device id.
func (s *Store) tagsByDevice(ctx context.Context) (map[int64][]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.device_id, t.id, t.name, t.color
		FROM device_tag_links l
		JOIN device_tags t ON t.id = l.tag_id
		ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]Tag)
	for rows.Next() {
		var deviceID int64
		var t Tag
		if err := rows.Scan(&deviceID, &t.ID, &t.Name, &t.Color); err != nil {
			log.Printf("duckdb scan error (tagsByDevice): %v", err)
			continue
		}
		result[deviceID] = append(result[deviceID], t)
	}
	return result, rows.Err()
}

// tagsForDevice loads the tags of one device by internal id.
func (s *Store) tagsForDevice(ctx context.Context, internalID int64) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.color
		FROM device_tag_links l
		JOIN device_tags t ON t.id = l.tag_id
		WHERE l.device_id = ?
		ORDER BY t.name`, internalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			log.Printf("duckdb scan error (tagsForDevice): %v", err)
			continue
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// scanDevice reads one device row from either *sql.Row or *sql.Rows.
func scanDevice(row interface{ Scan(dest ...interface{}) error }) (Device, error) {
	var d Device
	var lastSeen sql.NullTime
	if err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.Model, &d.Location, &d.CreatedAt, &lastSeen); err != nil {
		return Device{}, err
	}
	if lastSeen.Valid {
		d.LastSeenAt = lastSeen.Time
	}
	return d, nil
}
