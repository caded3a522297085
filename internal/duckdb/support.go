package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// ListCannedResponses returns reply snippets, most used first. activeOnly
// and category are optional filters.
func (s *Store) ListCannedResponses(activeOnly bool, category string) ([]CannedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := cannedSelect
	var conditions []string
	var args []interface{}
	if activeOnly {
		conditions = append(conditions, "active")
	}
	if category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, category)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY use_count DESC, title ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CannedResponse
	for rows.Next() {
		cr, err := scanCanned(rows)
		if err != nil {
			log.Printf("duckdb scan error (ListCannedResponses): %v", err)
			continue
		}
		results = append(results, cr)
	}
	return results, rows.Err()
}

// CannedResponseByID returns one reply snippet.
func (s *Store) CannedResponseByID(id int64) (*CannedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, cannedSelect+` WHERE id = ?`, id)
	cr, err := scanCanned(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// CreateCannedResponse adds a reply snippet, active by default.
func (s *Store) CreateCannedResponse(title, body, category string) (*CannedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO canned_responses (title, body, category) VALUES (?, ?, ?)
		RETURNING `+cannedColumns, title, body, category)
	cr, err := scanCanned(row)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create canned response: %w", err)
	}
	return &cr, nil
}

// UpdateCannedResponse rewrites a snippet's content and active flag.
func (s *Store) UpdateCannedResponse(id int64, title, body, category string, active bool) (*CannedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE canned_responses SET title = ?, body = ?, category = ?, active = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+cannedColumns, title, body, category, active, time.Now().UTC(), id)
	cr, err := scanCanned(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// DeleteCannedResponse removes a snippet.
func (s *Store) DeleteCannedResponse(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM canned_responses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UseCannedResponse bumps a snippet's use counter and returns it.
func (s *Store) UseCannedResponse(id int64) (*CannedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE canned_responses SET use_count = use_count + 1 WHERE id = ?
		RETURNING `+cannedColumns, id)
	cr, err := scanCanned(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

// CreateIssue files a new issue in SUBMITTED state.
func (s *Store) CreateIssue(title, body, severity, reporter string) (*Issue, error) {
	if severity == "" {
		severity = model.SeverityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO issues (title, body, severity, reporter) VALUES (?, ?, ?, ?)
		RETURNING `+issueColumns, title, body, severity, reporter)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, fmt.Errorf("duckdb: create issue: %w", err)
	}
	return &issue, nil
}

// ListIssues returns issues newest first. status and severity are optional
// filters.
func (s *Store) ListIssues(status, severity string) ([]Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := issueSelect
	var conditions []string
	var args []interface{}
	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, severity)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			log.Printf("duckdb scan error (ListIssues): %v", err)
			continue
		}
		results = append(results, issue)
	}
	return results, rows.Err()
}

// IssueByID returns one issue.
func (s *Store) IssueByID(id int64) (*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	row := s.db.QueryRowContext(ctx, issueSelect+` WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssueStatus moves an issue to a new status and notifies the reporter
// if their preferences allow issue updates.
func (s *Store) UpdateIssueStatus(id int64, status string) (*Issue, error) {
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

	row := tx.QueryRowContext(ctx, `
		UPDATE issues SET status = ?, updated_at = ? WHERE id = ?
		RETURNING `+issueColumns, status, time.Now().UTC(), id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if issue.Reporter != "" {
		message := fmt.Sprintf("issue #%d %q is now %s", issue.ID, issue.Title, status)
		// A missing prefs row means the default: issue updates on.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (user_id, kind, message)
			SELECT u.id, ?, ?
			FROM users u
			LEFT JOIN notification_prefs p ON p.user_id = u.id
			WHERE u.username = ? AND COALESCE(p.issue_updates, true)`,
			model.NotifyIssueUpdate, message, issue.Reporter); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &issue, nil
}

// AddIssueComment appends a comment. When cannedID is non-zero the comment
// body is taken from that snippet and its use counter is bumped in the same
// transaction.
func (s *Store) AddIssueComment(issueID int64, author, body string, cannedID int64) (*IssueComment, error) {
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
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE id = ?`, issueID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	if cannedID > 0 {
		var cannedBody string
		err := tx.QueryRowContext(ctx, `
			UPDATE canned_responses SET use_count = use_count + 1 WHERE id = ?
			RETURNING body`, cannedID).Scan(&cannedBody)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("duckdb: canned response %d: %w", cannedID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		if body == "" {
			body = cannedBody
		}
	}

	var comment IssueComment
	err = tx.QueryRowContext(ctx, `
		INSERT INTO issue_comments (issue_id, author, body) VALUES (?, ?, ?)
		RETURNING id, issue_id, author, body, created_at`, issueID, author, body).
		Scan(&comment.ID, &comment.IssueID, &comment.Author, &comment.Body, &comment.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE issues SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), issueID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &comment, nil
}

// CommentsForIssue returns an issue's comments oldest first.
func (s *Store) CommentsForIssue(issueID int64) ([]IssueComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author, body, created_at
		FROM issue_comments WHERE issue_id = ? ORDER BY created_at`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []IssueComment
	for rows.Next() {
		var c IssueComment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			log.Printf("duckdb scan error (CommentsForIssue): %v", err)
			continue
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

const cannedColumns = `id, title, body, category, active, use_count, created_at, updated_at`

const cannedSelect = `SELECT ` + cannedColumns + ` FROM canned_responses`

const issueColumns = `id, title, body, severity, status, reporter, created_at, updated_at`

const issueSelect = `SELECT ` + issueColumns + ` FROM issues`

func scanCanned(row interface{ Scan(dest ...interface{}) error }) (CannedResponse, error) {
	var cr CannedResponse
	if err := row.Scan(&cr.ID, &cr.Title, &cr.Body, &cr.Category, &cr.Active, &cr.UseCount,
		&cr.CreatedAt, &cr.UpdatedAt); err != nil {
		return CannedResponse{}, err
	}
	return cr, nil
}

func scanIssue(row interface{ Scan(dest ...interface{}) error }) (Issue, error) {
	var issue Issue
	if err := row.Scan(&issue.ID, &issue.Title, &issue.Body, &issue.Severity, &issue.Status,
		&issue.Reporter, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
		return Issue{}, err
	}
	return issue, nil
}
