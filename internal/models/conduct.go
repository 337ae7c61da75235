package models

import "time"

// ConductLog is one immutable entry in a student's conduct ledger.
// ScoreChange, StudentID and CreatedAt never change after insert. TermID
// starts null for entries predating term configuration and may be set
// exactly once by classification; it is never reassigned afterwards.
type ConductLog struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	ScoreChange int       `db:"score_change" json:"score_change"`
	Reason      string    `db:"reason" json:"reason"`
	TermID      *string   `db:"term_id" json:"term_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ConductLogFilter narrows ledger listings. TermID filters on the
// classified value, not on date ranges: unclassified entries are excluded
// whenever a term filter is present.
type ConductLogFilter struct {
	StudentID string
	TermID    *string
}
