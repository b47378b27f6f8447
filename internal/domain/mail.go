package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const (
	MailTypeReconciliationReport = "reconciliation_report"
	MailTypeReconciliationFailed = "reconciliation_failed"
)

type ReconciliationReportMailData struct {
	RunID         string `json:"runID"`
	TargetDate    string `json:"targetDate"`
	ParsedUsers   int    `json:"parsedUsers"`
	MarkedAbsent  int    `json:"markedAbsent"`
	MarkedHoliday int    `json:"markedHoliday"`
	Skipped       int    `json:"skipped"`
}

type ReconciliationFailedMailData struct {
	TargetDate string `json:"targetDate"`
	Error      string `json:"error"`
}
