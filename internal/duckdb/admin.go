package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// CreateUser adds an account. Usernames are unique.
func (s *Store) CreateUser(username, passwordHash, role string) (*User, error) {
	if role == "" {
		role = model.RoleUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var u User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)
		RETURNING id, username, password_hash, role, created_at`,
		username, passwordHash, role).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create user: %w", err)
	}
	return &u, nil
}

// UserByUsername looks an account up for login.
func (s *Store) UserByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// insertTrashTx writes one trash entry inside an existing transaction.
// ttl <= 0 stores no expiry, so the entry survives until purged by hand.
func insertTrashTx(ctx context.Context, tx *sql.Tx, entityType string, entityID int64, label string, snapshot interface{}, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("duckdb: marshal %s snapshot: %w", entityType, err)
	}

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO trash (entity_type, entity_id, label, snapshot, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		entityType, entityID, label, string(data), expiresAt)
	return err
}

// ListTrash returns trash entries newest first. entityType is an optional
// filter; snapshots are included so a client can preview what a restore
// brings back.
func (s *Store) ListTrash(entityType string) ([]TrashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := `SELECT id, entity_type, entity_id, label, snapshot, deleted_at, expires_at FROM trash`
	var args []interface{}
	if entityType != "" {
		query += " WHERE entity_type = ?"
		args = append(args, entityType)
	}
	query += " ORDER BY deleted_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TrashEntry
	for rows.Next() {
		entry, err := scanTrashEntry(rows)
		if err != nil {
			log.Printf("duckdb scan error (ListTrash): %v", err)
			continue
		}
		results = append(results, entry)
	}
	return results, rows.Err()
}

// TrashStats returns entry counts per entity type.
func (s *Store) TrashStats() ([]DimensionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, COUNT(*) AS count
		FROM trash
		GROUP BY entity_type
		ORDER BY count DESC, entity_type ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DimensionCount
	for rows.Next() {
		var item DimensionCount
		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			log.Printf("duckdb scan error (TrashStats): %v", err)
			continue
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// RestoreTrash brings a trashed entity back from its snapshot and removes
// the trash entry. Restoring re-uses the original ids.
func (s *Store) RestoreTrash(id int64) error {
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
		SELECT id, entity_type, entity_id, label, snapshot, deleted_at, expires_at
		FROM trash WHERE id = ?`, id)
	entry, err := scanTrashEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	switch entry.EntityType {
	case EntityDashboard:
		err = restoreDashboardTx(ctx, tx, entry.Snapshot)
	case EntityPlaylist:
		err = restorePlaylistTx(ctx, tx, entry.Snapshot)
	case EntityDevice:
		err = restoreDeviceTx(ctx, tx, entry.Snapshot)
	default:
		err = fmt.Errorf("duckdb: unknown trash entity type %q", entry.EntityType)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trash WHERE id = ?`, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// PurgeTrash permanently discards one trash entry.
func (s *Store) PurgeTrash(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM trash WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredTrash discards entries whose expiry has passed.
func (s *Store) DeleteExpiredTrash(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM trash WHERE expires_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RetentionPolicy returns the stored retention policy.
func (s *Store) RetentionPolicy() (RetentionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var p RetentionPolicy
	err := s.db.QueryRowContext(ctx, `
		SELECT telemetry_days, event_days, trash_days, updated_at
		FROM retention_policy WHERE id = 1`).
		Scan(&p.TelemetryDays, &p.EventDays, &p.TrashDays, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultRetentionPolicy(), nil
	}
	return p, err
}

// UpdateRetentionPolicy replaces the stored policy.
func (s *Store) UpdateRetentionPolicy(p RetentionPolicy) (RetentionPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var out RetentionPolicy
	err := s.db.QueryRowContext(ctx, `
		UPDATE retention_policy SET telemetry_days = ?, event_days = ?, trash_days = ?, updated_at = ?
		WHERE id = 1
		RETURNING telemetry_days, event_days, trash_days, updated_at`,
		p.TelemetryDays, p.EventDays, p.TrashDays, time.Now().UTC()).
		Scan(&out.TelemetryDays, &out.EventDays, &out.TrashDays, &out.UpdatedAt)
	return out, err
}

// ResetRetentionPolicy restores the default policy.
func (s *Store) ResetRetentionPolicy() (RetentionPolicy, error) {
	return s.UpdateRetentionPolicy(model.DefaultRetentionPolicy())
}

// RecordRetentionExecution persists the outcome of one retention run.
func (s *Store) RecordRetentionExecution(ex RetentionExecution) (RetentionExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO retention_executions (started_at, finished_at, telemetry_deleted, events_deleted, trash_deleted, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		ex.StartedAt, ex.FinishedAt, ex.TelemetryDeleted, ex.EventsDeleted, ex.TrashDeleted, ex.Status, ex.Detail).
		Scan(&ex.ID)
	return ex, err
}

// ListRetentionExecutions returns past runs newest first.
func (s *Store) ListRetentionExecutions(limit int) ([]RetentionExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, telemetry_deleted, events_deleted, trash_deleted, status, detail
		FROM retention_executions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RetentionExecution
	for rows.Next() {
		var ex RetentionExecution
		if err := rows.Scan(&ex.ID, &ex.StartedAt, &ex.FinishedAt, &ex.TelemetryDeleted,
			&ex.EventsDeleted, &ex.TrashDeleted, &ex.Status, &ex.Detail); err != nil {
			log.Printf("duckdb scan error (ListRetentionExecutions): %v", err)
			continue
		}
		results = append(results, ex)
	}
	return results, rows.Err()
}

// NotifyDeviceOffline fans a device-offline message out to every user whose
// preferences allow it. Returns the number of users notified.
func (s *Store) NotifyDeviceOffline(message string) (int64, error) {
	return s.broadcast(model.NotifyDeviceOffline, message, "COALESCE(p.device_offline, true)")
}

// NotifyRetentionReport fans a retention summary out to users who opted in.
// Returns the number of users notified.
func (s *Store) NotifyRetentionReport(message string) (int64, error) {
	return s.broadcast(model.NotifyRetentionReport, message, "COALESCE(p.retention_reports, false)")
}

// NotifyLayoutSaveFailed records a failed widget placement write for every
// user. No preference gates this kind.
func (s *Store) NotifyLayoutSaveFailed(message string) (int64, error) {
	return s.broadcast(model.NotifyLayoutSave, message, "true")
}

// broadcast inserts one notification per user passing the preference
// predicate. A missing prefs row falls back to the predicate's default.
func (s *Store) broadcast(kind, message, predicate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO notifications (user_id, kind, message)
		SELECT u.id, ?, ?
		FROM users u
		LEFT JOIN notification_prefs p ON p.user_id = u.id
		WHERE %s`, predicate)

	result, err := s.db.ExecContext(ctx, query, kind, message)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// NotificationsForUser returns a user's notifications newest first.
func (s *Store) NotificationsForUser(userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, user_id, kind, message, read_at, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			log.Printf("duckdb scan error (NotificationsForUser): %v", err)
			continue
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// UnreadNotificationCount returns how many notifications a user has not read.
func (s *Store) UnreadNotificationCount(userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID).Scan(&count)
	return count, err
}

// MarkNotificationRead stamps one notification as read. Marking an already
// read notification is a no-op success.
func (s *Store) MarkNotificationRead(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead stamps every unread notification of a user.
func (s *Store) MarkAllNotificationsRead(userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`,
		time.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecentNotifications returns the newest notifications across all users.
func (s *Store) RecentNotifications(limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, message, read_at, created_at
		FROM notifications ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			log.Printf("duckdb scan error (RecentNotifications): %v", err)
			continue
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// NotificationPrefsForUser returns a user's preference toggles. A user who
// never saved preferences gets the defaults.
func (s *Store) NotificationPrefsForUser(userID int64) (NotificationPrefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var p NotificationPrefs
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, device_offline, issue_updates, retention_reports
		FROM notification_prefs WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.DeviceOffline, &p.IssueUpdates, &p.RetentionReports)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationPrefs{
			UserID:        userID,
			DeviceOffline: true,
			IssueUpdates:  true,
		}, nil
	}
	return p, err
}

// UpdateNotificationPrefs saves a user's preference toggles.
func (s *Store) UpdateNotificationPrefs(p NotificationPrefs) (NotificationPrefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_prefs (user_id, device_offline, issue_updates, retention_reports)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			device_offline = excluded.device_offline,
			issue_updates = excluded.issue_updates,
			retention_reports = excluded.retention_reports`,
		p.UserID, p.DeviceOffline, p.IssueUpdates, p.RetentionReports)
	return p, err
}

func scanTrashEntry(row interface{ Scan(dest ...interface{}) error }) (TrashEntry, error) {
	var entry TrashEntry
	var snapshot string
	var expiresAt sql.NullTime
	if err := row.Scan(&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Label,
		&snapshot, &entry.DeletedAt, &expiresAt); err != nil {
		return TrashEntry{}, err
	}
	entry.Snapshot = json.RawMessage(snapshot)
	if expiresAt.Valid {
		t := expiresAt.Time
		entry.ExpiresAt = &t
	}
	return entry, nil
}

func scanNotification(row interface{ Scan(dest ...interface{}) error }) (Notification, error) {
	var n Notification
	var readAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &readAt, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}
