package models

import "time"

// Student represents a learner registered in the institution.
// ConductScore is a denormalized running total: it always equals the
// configured default plus the sum of score changes in the conduct log,
// and is mutated only through the ledger append path.
type Student struct {
	ID           string    `db:"id" json:"id"`
	StudentCode  string    `db:"student_code" json:"student_code"`
	Prefix       string    `db:"prefix" json:"prefix"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Class        int       `db:"class" json:"class"`
	Room         int       `db:"room" json:"room"`
	House        string    `db:"house" json:"house"`
	CitizenID    string    `db:"citizen_id" json:"-"`
	Email        string    `db:"email" json:"email"`
	ConductScore int       `db:"conduct_score" json:"conduct_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName renders the student's full name with prefix.
func (s Student) DisplayName() string {
	name := s.Prefix
	if name != "" && s.FirstName != "" {
		name += " "
	}
	name += s.FirstName
	if s.LastName != "" {
		name += " " + s.LastName
	}
	return name
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Class     *int
	Room      *int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
