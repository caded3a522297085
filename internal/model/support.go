package model

import "time"

// Issue lifecycle statuses.
const (
	IssueSubmitted = "SUBMITTED"
	IssueInReview  = "IN_REVIEW"
	IssueResolved  = "RESOLVED"
	IssueClosed    = "CLOSED"
)

// Issue severities, reporter-assigned at submission.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// ValidIssueStatus reports whether s is a known issue status.
func ValidIssueStatus(s string) bool {
	switch s {
	case IssueSubmitted, IssueInReview, IssueResolved, IssueClosed:
		return true
	}
	return false
}

// ValidIssueSeverity reports whether s is a known issue severity.
func ValidIssueSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Issue is a user-reported problem tracked through a small support workflow.
type Issue struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Reporter  string    `json:"reporter,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IssueComment is one comment on an issue.
type IssueComment struct {
	ID        int64     `json:"id"`
	IssueID   int64     `json:"issueId"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// CannedResponse is a reusable reply snippet for support workflows.
// UseCount increments every time the snippet is applied.
type CannedResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category,omitempty"`
	Active    bool      `json:"active"`
	UseCount  int64     `json:"useCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
