package models

import "time"

// TermCategory classifies an academic term. Breaks between semesters are
// terms too, so every calendar date the school cares about has a bucket.
type TermCategory string

const (
	TermCategoryFirst  TermCategory = "term1"
	TermCategorySecond TermCategory = "term2"
	TermCategorySummer TermCategory = "summer"
	TermCategoryOther  TermCategory = "other"
)

// Valid reports whether the category is one of the known values.
func (c TermCategory) Valid() bool {
	switch c {
	case TermCategoryFirst, TermCategorySecond, TermCategorySummer, TermCategoryOther:
		return true
	}
	return false
}

// AcademicTerm is a named, closed calendar-date interval, e.g. "1/2567"
// running 2024-05-16 through 2024-10-10. StartDate and EndDate carry only
// the date portion; EndDate is inclusive.
type AcademicTerm struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Category  TermCategory `db:"category" json:"category"`
	StartDate time.Time    `db:"start_date" json:"start_date"`
	EndDate   time.Time    `db:"end_date" json:"end_date"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// Contains reports whether the instant falls inside the term. The end
// boundary is evaluated at 23:59:59.999 on EndDate so a timestamp on the
// end date itself still matches; one millisecond into the next day does not.
func (t AcademicTerm) Contains(at time.Time) bool {
	loc := at.Location()
	start := time.Date(t.StartDate.Year(), t.StartDate.Month(), t.StartDate.Day(), 0, 0, 0, 0, loc)
	end := time.Date(t.EndDate.Year(), t.EndDate.Month(), t.EndDate.Day(), 23, 59, 59, 999000000, loc)
	return !at.Before(start) && !at.After(end)
}
