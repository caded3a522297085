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

// ListPlaylists returns all playlists ordered by name, without items.
func (s *Store) ListPlaylists() ([]Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, playlistSelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			log.Printf("duckdb scan error (ListPlaylists): %v", err)
			continue
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// PlaylistByID returns one playlist with its items in position order. Items
// whose dashboard has been deleted keep their row; DashboardName comes back
// empty for them.
func (s *Store) PlaylistByID(id int64) (*Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, playlistSelect+` WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.itemsForPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

// PlaylistByShareToken resolves a public share link. Expired links come back
// as ErrShareExpired, unknown or revoked ones as ErrNotFound.
func (s *Store) PlaylistByShareToken(token string) (*Playlist, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, playlistSelect+` WHERE share_token = ?`, token)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.ShareExpiresAt != nil && time.Now().After(*p.ShareExpiresAt) {
		return nil, ErrShareExpired
	}

	items, err := s.itemsForPlaylist(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

// CreatePlaylist adds an empty playlist. Looping defaults to on and the
// transition to fade.
func (s *Store) CreatePlaylist(name, description string, loopEnabled bool, transition string) (*Playlist, error) {
	if transition == "" {
		transition = model.TransitionFade
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO playlists (name, description, loop_enabled, transition_effect)
		VALUES (?, ?, ?, ?)
		RETURNING `+playlistColumns, name, description, loopEnabled, transition)
	p, err := scanPlaylist(row)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create playlist: %w", err)
	}
	return &p, nil
}

// UpdatePlaylist rewrites a playlist's settings and returns it with items.
func (s *Store) UpdatePlaylist(id int64, name, description string, loopEnabled bool, transition string) (*Playlist, error) {
	if transition == "" {
		transition = model.TransitionFade
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE playlists SET name = ?, description = ?, loop_enabled = ?, transition_effect = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+playlistColumns,
		name, description, loopEnabled, transition, time.Now().UTC(), id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.itemsForPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

// TrashPlaylist snapshots a playlist with its items into the trash and
// removes both.
func (s *Store) TrashPlaylist(id int64, ttl time.Duration) error {
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

	row := tx.QueryRowContext(ctx, playlistSelect+` WHERE id = ?`, id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT id, playlist_id, dashboard_id, position, duration_seconds
		FROM playlist_items WHERE playlist_id = ? ORDER BY position`, id)
	if err != nil {
		return err
	}
	for itemRows.Next() {
		var item PlaylistItem
		if err := itemRows.Scan(&item.ID, &item.PlaylistID, &item.DashboardID, &item.Position, &item.DurationSeconds); err != nil {
			itemRows.Close()
			return err
		}
		p.Items = append(p.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		itemRows.Close()
		return err
	}
	itemRows.Close()

	if err := insertTrashTx(ctx, tx, EntityPlaylist, p.ID, p.Name, p, ttl); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE playlist_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// restorePlaylistTx re-creates a trashed playlist and its items with their
// original ids and positions.
func restorePlaylistTx(ctx context.Context, tx *sql.Tx, snapshot []byte) error {
	var p Playlist
	if err := json.Unmarshal(snapshot, &p); err != nil {
		return fmt.Errorf("duckdb: decode playlist snapshot: %w", err)
	}

	var shareExpires interface{}
	if p.ShareExpiresAt != nil {
		shareExpires = *p.ShareExpiresAt
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, description, loop_enabled, transition_effect, share_token, share_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.LoopEnabled, p.TransitionEffect, p.ShareToken, shareExpires, p.CreatedAt, p.UpdatedAt); err != nil {
		return err
	}
	for _, item := range p.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_items (id, playlist_id, dashboard_id, position, duration_seconds)
			VALUES (?, ?, ?, ?, ?)`,
			item.ID, item.PlaylistID, item.DashboardID, item.Position, item.DurationSeconds); err != nil {
			return err
		}
	}
	return nil
}

// AddPlaylistItem appends a dashboard to the end of a playlist. A zero or
// negative duration gets the default.
func (s *Store) AddPlaylistItem(playlistID, dashboardID int64, durationSeconds int) (*PlaylistItem, error) {
	if durationSeconds <= 0 {
		durationSeconds = model.DefaultItemDurationSeconds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists WHERE id = ?`, playlistID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboards WHERE id = ?`, dashboardID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("duckdb: dashboard %d: %w", dashboardID, ErrNotFound)
	}

	var position int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlist_items WHERE playlist_id = ?`, playlistID).Scan(&position); err != nil {
		return nil, err
	}

	var item PlaylistItem
	err = tx.QueryRowContext(ctx, `
		INSERT INTO playlist_items (playlist_id, dashboard_id, position, duration_seconds)
		VALUES (?, ?, ?, ?)
		RETURNING id, playlist_id, dashboard_id, position, duration_seconds`,
		playlistID, dashboardID, position, durationSeconds).
		Scan(&item.ID, &item.PlaylistID, &item.DashboardID, &item.Position, &item.DurationSeconds)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), playlistID); err != nil {
		return nil, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(name, '') FROM dashboards WHERE id = ?`, dashboardID).
		Scan(&item.DashboardName); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &item, nil
}

// UpdatePlaylistItem changes one item's display duration.
func (s *Store) UpdatePlaylistItem(playlistID, itemID int64, durationSeconds int) (*PlaylistItem, error) {
	if durationSeconds <= 0 {
		durationSeconds = model.DefaultItemDurationSeconds
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var item PlaylistItem
	err := s.db.QueryRowContext(ctx, `
		UPDATE playlist_items SET duration_seconds = ?
		WHERE id = ? AND playlist_id = ?
		RETURNING id, playlist_id, dashboard_id, position, duration_seconds`,
		durationSeconds, itemID, playlistID).
		Scan(&item.ID, &item.PlaylistID, &item.DashboardID, &item.Position, &item.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemovePlaylistItem deletes one item and closes the position gap so the
// remaining items stay numbered 0..n-1.
func (s *Store) RemovePlaylistItem(playlistID, itemID int64) error {
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

	var position int
	err = tx.QueryRowContext(ctx, `
		SELECT position FROM playlist_items WHERE id = ? AND playlist_id = ?`,
		itemID, playlistID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_items WHERE id = ?`, itemID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE playlist_items SET position = position - 1
		WHERE playlist_id = ? AND position > ?`, playlistID, position); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), playlistID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReorderPlaylistItems rewrites item positions to match the given id order.
// The id list must contain exactly the playlist's current items.
func (s *Store) ReorderPlaylistItems(playlistID int64, itemIDs []int64) error {
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

	rows, err := tx.QueryContext(ctx, `SELECT id FROM playlist_items WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return err
	}
	current := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		current[id] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if len(itemIDs) != len(current) {
		return fmt.Errorf("duckdb: reorder wants %d items, playlist has %d", len(itemIDs), len(current))
	}
	seen := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		if !current[id] {
			return fmt.Errorf("duckdb: item %d not in playlist %d", id, playlistID)
		}
		if seen[id] {
			return fmt.Errorf("duckdb: item %d listed twice", id)
		}
		seen[id] = true
	}

	for position, id := range itemIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE playlist_items SET position = ? WHERE id = ?`, position, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), playlistID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SharePlaylist installs a share token and its expiry on a playlist.
func (s *Store) SharePlaylist(id int64, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE playlists SET share_token = ?, share_expires_at = ?, updated_at = ? WHERE id = ?`,
		token, expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeShare clears a playlist's share token.
func (s *Store) RevokeShare(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE playlists SET share_token = '', share_expires_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const playlistColumns = `id, name, description, loop_enabled, transition_effect, share_token, share_expires_at, created_at, updated_at`

const playlistSelect = `SELECT ` + playlistColumns + ` FROM playlists`

// itemsForPlaylist loads a playlist's items in position order with dashboard
// names resolved.
func (s *Store) itemsForPlaylist(ctx context.Context, playlistID int64) ([]PlaylistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.playlist_id, i.dashboard_id, i.position, i.duration_seconds, COALESCE(d.name, '')
		FROM playlist_items i
		LEFT JOIN dashboards d ON d.id = i.dashboard_id
		WHERE i.playlist_id = ?
		ORDER BY i.position`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PlaylistItem
	for rows.Next() {
		var item PlaylistItem
		if err := rows.Scan(&item.ID, &item.PlaylistID, &item.DashboardID, &item.Position,
			&item.DurationSeconds, &item.DashboardName); err != nil {
			log.Printf("duckdb scan error (itemsForPlaylist): %v", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// scanPlaylist reads one playlist row from either *sql.Row or *sql.Rows.
func scanPlaylist(row interface{ Scan(dest ...interface{}) error }) (Playlist, error) {
	var p Playlist
	var shareExpires sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.LoopEnabled, &p.TransitionEffect,
		&p.ShareToken, &shareExpires, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Playlist{}, err
	}
	if shareExpires.Valid {
		t := shareExpires.Time
		p.ShareExpiresAt = &t
	}
	return p, nil
}
