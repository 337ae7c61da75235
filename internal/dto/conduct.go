package dto

import "time"

// ScoreReportEntry is one ledger entry joined with its author's display name.
type ScoreReportEntry struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	ScoreChange int       `json:"score_change"`
	Reason      string    `json:"reason"`
	TermID      *string   `json:"term_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScoreReport is the externally consumed "current score and history" view.
type ScoreReport struct {
	StudentID   string             `json:"student_id"`
	StudentName string             `json:"student_name"`
	TotalScore  int                `json:"total_score"`
	History     []ScoreReportEntry `json:"history"`
}

// BackfillResult summarises one classification run.
type BackfillResult struct {
	Scanned    int      `json:"scanned"`
	Classified int      `json:"classified"`
	Unmatched  []string `json:"unmatched"`
}

// TotalMismatch describes a student whose cached conduct score diverges
// from the recomputed ledger sum.
type TotalMismatch struct {
	StudentID string `json:"student_id"`
	Cached    int    `json:"cached"`
	Expected  int    `json:"expected"`
}

// VerifyResult reports the outcome of a total-consistency audit.
type VerifyResult struct {
	Checked    int             `json:"checked"`
	Mismatches []TotalMismatch `json:"mismatches"`
}
