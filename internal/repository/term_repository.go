package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sakolwit/school-portal-api/internal/models"
)

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListByStartAscending returns every term ordered by start date ascending.
// This is the registry iteration order: date matching walks the result and
// the first containing term wins, which keeps overlap resolution stable.
func (r *TermRepository) ListByStartAscending(ctx context.Context) ([]models.AcademicTerm, error) {
	const query = `SELECT id, name, category, start_date, end_date, created_at, updated_at
FROM academic_terms ORDER BY start_date ASC, id ASC`
	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, fmt.Errorf("list terms ascending: %w", err)
	}
	return terms, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	const query = `SELECT id, name, category, start_date, end_date, created_at, updated_at
FROM academic_terms WHERE id = $1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByName checks if a term with the given display name exists.
// Seeding re-runs rely on this to stay idempotent.
func (r *TermRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM academic_terms WHERE name = $1 LIMIT 1", name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check term name: %w", err)
	}
	return true, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.AcademicTerm) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO academic_terms (id, name, category, start_date, end_date, created_at, updated_at)
VALUES (:id, :name, :category, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}
