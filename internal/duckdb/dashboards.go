package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// ListDashboards returns all dashboards ordered by name, without widgets.
func (s *Store) ListDashboards() ([]Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM dashboards ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Dashboard
	for rows.Next() {
		var d Dashboard
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			log.Printf("duckdb scan error (ListDashboards): %v", err)
			continue
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// DashboardByID returns one dashboard with its widgets ordered by grid
// position (row first, then column).
func (s *Store) DashboardByID(id int64) (*Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var d Dashboard
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM dashboards WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	widgets, err := s.widgetsForDashboard(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Widgets = widgets
	return &d, nil
}

// CreateDashboard adds an empty dashboard.
func (s *Store) CreateDashboard(name, description string) (*Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var d Dashboard
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO dashboards (name, description) VALUES (?, ?)
		RETURNING id, name, description, created_at, updated_at`, name, description).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create dashboard: %w", err)
	}
	return &d, nil
}

// UpdateDashboard renames a dashboard and returns it with widgets.
func (s *Store) UpdateDashboard(id int64, name, description string) (*Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var d Dashboard
	err := s.db.QueryRowContext(ctx, `
		UPDATE dashboards SET name = ?, description = ?, updated_at = ? WHERE id = ?
		RETURNING id, name, description, created_at, updated_at`,
		name, description, time.Now().UTC(), id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	widgets, err := s.widgetsForDashboard(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Widgets = widgets
	return &d, nil
}

// TrashDashboard snapshots a dashboard with its widgets into the trash and
// removes both. Playlist items pointing at it are left in place; the player
// surfaces the missing dashboard as a load error.
func (s *Store) TrashDashboard(id int64, ttl time.Duration) error {
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

	var d Dashboard
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM dashboards WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, widgetSelect+` WHERE dashboard_id = ? ORDER BY position_y, position_x`, id)
	if err != nil {
		return err
	}
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			rows.Close()
			return err
		}
		d.Widgets = append(d.Widgets, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if err := insertTrashTx(ctx, tx, EntityDashboard, d.ID, d.Name, d, ttl); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM widgets WHERE dashboard_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboards WHERE id = ?`, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// restoreDashboardTx re-creates a trashed dashboard and its widgets with
// their original ids.
func restoreDashboardTx(ctx context.Context, tx *sql.Tx, snapshot []byte) error {
	var d Dashboard
	if err := json.Unmarshal(snapshot, &d); err != nil {
		return fmt.Errorf("duckdb: decode dashboard snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dashboards (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	for _, w := range d.Widgets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO widgets (id, dashboard_id, type, title, device_id, variable, aggregation,
				time_range_minutes, position_x, position_y, width, height, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID, w.DashboardID, w.Type, w.Title, w.DeviceID, w.Variable, w.Aggregation,
			w.TimeRangeMinutes, w.PositionX, w.PositionY, w.Width, w.Height, w.CreatedAt, w.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

// CreateWidget adds a widget to a dashboard, filling in grid and query
// defaults for anything the caller left zero.
func (s *Store) CreateWidget(dashboardID int64, w Widget) (*Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboards WHERE id = ?`, dashboardID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	if w.Width <= 0 {
		w.Width = model.DefaultWidgetWidth
	}
	if w.Height <= 0 {
		w.Height = model.DefaultWidgetHeight
	}
	if w.Aggregation == "" {
		w.Aggregation = model.AggregationNone
	}
	if w.TimeRangeMinutes <= 0 {
		w.TimeRangeMinutes = model.DefaultWidgetTimeRangeMinutes
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO widgets (dashboard_id, type, title, device_id, variable, aggregation,
			time_range_minutes, position_x, position_y, width, height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+widgetColumns,
		dashboardID, w.Type, w.Title, w.DeviceID, w.Variable, w.Aggregation,
		w.TimeRangeMinutes, w.PositionX, w.PositionY, w.Width, w.Height)
	created, err := scanWidget(row)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create widget: %w", err)
	}
	return &created, nil
}

// ApplyWidgetUpdate applies a partial widget update. Nil fields keep their
// stored values; an update with every field nil still succeeds and bumps
// updated_at.
func (s *Store) ApplyWidgetUpdate(dashboardID, widgetID int64, u WidgetUpdate) (*Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.Type != nil {
		set("type", *u.Type)
	}
	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.DeviceID != nil {
		set("device_id", *u.DeviceID)
	}
	if u.Variable != nil {
		set("variable", *u.Variable)
	}
	if u.Aggregation != nil {
		set("aggregation", *u.Aggregation)
	}
	if u.TimeRangeMinutes != nil {
		set("time_range_minutes", *u.TimeRangeMinutes)
	}
	if u.PositionX != nil {
		set("position_x", *u.PositionX)
	}
	if u.PositionY != nil {
		set("position_y", *u.PositionY)
	}
	if u.Width != nil {
		set("width", *u.Width)
	}
	if u.Height != nil {
		set("height", *u.Height)
	}

	args = append(args, widgetID, dashboardID)
	query := fmt.Sprintf(`UPDATE widgets SET %s WHERE id = ? AND dashboard_id = ? RETURNING %s`,
		strings.Join(sets, ", "), widgetColumns)

	row := s.db.QueryRowContext(ctx, query, args...)
	w, err := scanWidget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWidget removes one widget from a dashboard.
func (s *Store) DeleteWidget(dashboardID, widgetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM widgets WHERE id = ? AND dashboard_id = ?`, widgetID, dashboardID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = s.db.ExecContext(ctx, `UPDATE dashboards SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), dashboardID)
	return err
}

// UpdateWidgetPosition persists one widget's grid placement. A write whose
// values equal the stored ones succeeds like any other update.
func (s *Store) UpdateWidgetPosition(ctx context.Context, dashboardID int64, layout model.WidgetLayout) (*model.Widget, error) {
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		UPDATE widgets SET position_x = ?, position_y = ?, width = ?, height = ?, updated_at = ?
		WHERE id = ? AND dashboard_id = ?
		RETURNING `+widgetColumns,
		layout.PositionX, layout.PositionY, layout.Width, layout.Height, time.Now().UTC(),
		layout.WidgetID, dashboardID)
	w, err := scanWidget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("duckdb: widget %d on dashboard %d: %w", layout.WidgetID, dashboardID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateDashboardFromTemplate materializes a dashboard and its widgets from
// an imported template in one transaction.
func (s *Store) CreateDashboardFromTemplate(t model.DashboardTemplate) (*Dashboard, error) {
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

	var d Dashboard
	err = tx.QueryRowContext(ctx, `
		INSERT INTO dashboards (name, description) VALUES (?, ?)
		RETURNING id, name, description, created_at, updated_at`, t.Name, t.Description).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create dashboard from template: %w", err)
	}

	for _, wt := range t.Widgets {
		width := wt.Width
		if width <= 0 {
			width = model.DefaultWidgetWidth
		}
		height := wt.Height
		if height <= 0 {
			height = model.DefaultWidgetHeight
		}
		agg := wt.Aggregation
		if agg == "" {
			agg = model.AggregationNone
		}
		timeRange := wt.TimeRangeMinutes
		if timeRange <= 0 {
			timeRange = model.DefaultWidgetTimeRangeMinutes
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO widgets (dashboard_id, type, title, device_id, variable, aggregation,
				time_range_minutes, position_x, position_y, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+widgetColumns,
			d.ID, wt.Type, wt.Title, wt.DeviceID, wt.Variable, agg,
			timeRange, wt.X, wt.Y, width, height)
		w, err := scanWidget(row)
		if err != nil {
			return nil, fmt.Errorf("duckdb: template widget %q: %w", wt.Title, err)
		}
		d.Widgets = append(d.Widgets, w)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &d, nil
}

const widgetColumns = `id, dashboard_id, type, title, device_id, variable, aggregation,
	time_range_minutes, position_x, position_y, width, height, created_at, updated_at`

const widgetSelect = `SELECT ` + widgetColumns + ` FROM widgets`

// widgetsForDashboard loads a dashboard's widgets in grid order.
func (s *Store) widgetsForDashboard(ctx context.Context, dashboardID int64) ([]Widget, error) {
	rows, err := s.db.QueryContext(ctx, widgetSelect+` WHERE dashboard_id = ? ORDER BY position_y, position_x`, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var widgets []Widget
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			log.Printf("duckdb scan error (widgetsForDashboard): %v", err)
			continue
		}
		widgets = append(widgets, w)
	}
	return widgets, rows.Err()
}

// scanWidget reads one widget row from either *sql.Row or *sql.Rows.
func scanWidget(row interface{ Scan(dest ...interface{}) error }) (Widget, error) {
	var w Widget
	if err := row.Scan(&w.ID, &w.DashboardID, &w.Type, &w.Title, &w.DeviceID, &w.Variable,
		&w.Aggregation, &w.TimeRangeMinutes, &w.PositionX, &w.PositionY, &w.Width, &w.Height,
		&w.CreatedAt, &w.UpdatedAt); err != nil {
		return Widget{}, err
	}
	return w, nil
}
