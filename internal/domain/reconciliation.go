package domain

import "time"

type ReconciliationAction string

const (
	ReconciliationActionMarkAbsent     ReconciliationAction = "mark_absent"
	ReconciliationActionMarkHoliday    ReconciliationAction = "mark_holiday"
	ReconciliationActionSkipExisting   ReconciliationAction = "skip_existing"
	ReconciliationActionSkipNonWorking ReconciliationAction = "skip_non_working"
)

type ReconciliationDecision struct {
	UserID int64                `json:"userID"`
	Action ReconciliationAction `json:"action"`
	Reason string               `json:"reason"`
}

type ReconciliationResult struct {
	RunID           string                   `json:"runID"`
	TargetDate      string                   `json:"targetDate"`
	DryRun          bool                     `json:"dryRun"`
	Success         bool                     `json:"success"`
	Skipped         bool                     `json:"skipped"`
	Message         string                   `json:"message"`
	ParsedUsers     int                      `json:"parsedUsers"`
	MarkedAbsent    int                      `json:"markedAbsent"`
	MarkedHoliday   int                      `json:"markedHoliday"`
	SkippedExisting int                      `json:"skippedExisting"`
	NonWorking      int                      `json:"nonWorking"`
	Decisions       []ReconciliationDecision `json:"decisions,omitempty"` // 仅在 dry run 时返回
	StartedAt       time.Time                `json:"startedAt"`
	FinishedAt      time.Time                `json:"finishedAt"`
}
