package duckdb

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// aggregateFuncs maps API aggregation names to the SQL function applied to
// the value column. Only names in this map ever reach query text.
var aggregateFuncs = map[string]string{
	"AVG":   "AVG(value)",
	"MIN":   "MIN(value)",
	"MAX":   "MAX(value)",
	"SUM":   "SUM(value)",
	"COUNT": "COUNT(value)",
}

// TelemetryCount returns the total number of stored telemetry points.
func (s *Store) TelemetryCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM telemetry`).Scan(&count)
	return count, err
}

// VariablesForDevice returns per-variable stats for one device: point count,
// most recent value, and when it was last reported.
func (s *Store) VariablesForDevice(deviceID string) ([]VariableStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT variable, COUNT(*) AS count, arg_max(value, ts) AS last_value, MAX(ts) AS last_seen
		FROM telemetry
		WHERE device_id = ?
		GROUP BY variable
		ORDER BY variable`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []VariableStat
	for rows.Next() {
		var vs VariableStat
		if err := rows.Scan(&vs.Variable, &vs.Count, &vs.LastValue, &vs.LastSeen); err != nil {
			log.Printf("duckdb scan error (VariablesForDevice): %v", err)
			continue
		}
		results = append(results, vs)
	}
	return results, rows.Err()
}

// SeriesForDevice returns raw points for one device variable in chronological
// order. When limit > 0 the newest points win, but results still come back
// ascending.
func (s *Store) SeriesForDevice(deviceID, variable string, from, to time.Time, limit int) ([]SeriesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	conditions := "device_id = ? AND variable = ?"
	args := []interface{}{deviceID, variable}
	if !from.IsZero() {
		conditions += " AND ts >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		conditions += " AND ts <= ?"
		args = append(args, to)
	}

	inner := fmt.Sprintf(`SELECT ts, value FROM telemetry WHERE %s ORDER BY ts DESC`, conditions)
	if limit > 0 {
		inner += " LIMIT ?"
		args = append(args, limit)
	}

	// Wrap so final results come back in chronological (ASC) order.
	query := "SELECT * FROM (" + inner + ") ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SeriesPoint
	for rows.Next() {
		var sp SeriesPoint
		if err := rows.Scan(&sp.Timestamp, &sp.Value); err != nil {
			log.Printf("duckdb scan error (SeriesForDevice): %v", err)
			continue
		}
		results = append(results, sp)
	}
	return results, rows.Err()
}

// BucketedSeries returns one aggregated point per minute for a device
// variable over [from, to]. agg must be one of AVG/MIN/MAX/SUM/COUNT.
func (s *Store) BucketedSeries(deviceID, variable, agg string, from, to time.Time) ([]SeriesPoint, error) {
	fn, ok := aggregateFuncs[agg]
	if !ok {
		return nil, fmt.Errorf("duckdb: unsupported aggregation %q", agg)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	conditions := "device_id = ? AND variable = ?"
	args := []interface{}{deviceID, variable}
	if !from.IsZero() {
		conditions += " AND ts >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		conditions += " AND ts <= ?"
		args = append(args, to)
	}

	query := fmt.Sprintf(`
		SELECT date_trunc('minute', ts) AS minute, %s AS value
		FROM telemetry
		WHERE %s
		GROUP BY minute
		ORDER BY minute`, fn, conditions)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SeriesPoint
	for rows.Next() {
		var sp SeriesPoint
		if err := rows.Scan(&sp.Timestamp, &sp.Value); err != nil {
			log.Printf("duckdb scan error (BucketedSeries): %v", err)
			continue
		}
		results = append(results, sp)
	}
	return results, rows.Err()
}

// AggregateOverRange collapses a device variable over [from, to] into a single
// value. An empty range yields 0.
func (s *Store) AggregateOverRange(deviceID, variable, agg string, from, to time.Time) (float64, error) {
	fn, ok := aggregateFuncs[agg]
	if !ok {
		return 0, fmt.Errorf("duckdb: unsupported aggregation %q", agg)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	conditions := "device_id = ? AND variable = ?"
	args := []interface{}{deviceID, variable}
	if !from.IsZero() {
		conditions += " AND ts >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		conditions += " AND ts <= ?"
		args = append(args, to)
	}

	query := fmt.Sprintf(`SELECT COALESCE(%s, 0) FROM telemetry WHERE %s`, fn, conditions)

	var value float64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	return value, err
}

// LatestValue returns the most recent value reported for a device variable.
// ErrNotFound when the variable has never been reported.
func (s *Store) LatestValue(deviceID, variable string) (float64, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var value sql.NullFloat64
	var ts sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT arg_max(value, ts), MAX(ts)
		FROM telemetry
		WHERE device_id = ? AND variable = ?`, deviceID, variable).Scan(&value, &ts)
	if err != nil {
		return 0, time.Time{}, err
	}
	if !value.Valid || !ts.Valid {
		return 0, time.Time{}, ErrNotFound
	}
	return value.Float64, ts.Time, nil
}

// DeleteTelemetryBefore removes points older than cutoff and reports how many
// were removed.
func (s *Store) DeleteTelemetryBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM telemetry WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
