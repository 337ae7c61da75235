package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sakolwit/school-portal-api/internal/models"
)

const defaultAppendRetries = 3

// ErrTxConflict marks an append that kept losing to concurrent writers
// within the retry budget. Callers may retry the whole operation.
var ErrTxConflict = errors.New("conduct append transaction conflict")

// ConductRepository manages the append-only conduct ledger and the
// denormalized running total on the student row.
type ConductRepository struct {
	db      *sqlx.DB
	retries int
}

// NewConductRepository constructs a conduct ledger repository.
// appendRetries bounds retry attempts when the append transaction is
// aborted by a concurrent writer; values <= 0 fall back to the default.
func NewConductRepository(db *sqlx.DB, appendRetries int) *ConductRepository {
	if appendRetries <= 0 {
		appendRetries = defaultAppendRetries
	}
	return &ConductRepository{db: db, retries: appendRetries}
}

// Append inserts a ledger entry and bumps the student's cached total in a
// single transaction. The total update is expressed as an in-place
// increment so concurrent appends for the same student cannot lose an
// update. Serialization aborts and deadlocks are retried up to the
// configured budget before surfacing.
func (r *ConductRepository) Append(ctx context.Context, entry *models.ConductLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		lastErr = r.appendOnce(ctx, entry)
		if lastErr == nil {
			return nil
		}
		if !isRetryableTxError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("append after %d attempts (%v): %w", r.retries, lastErr, ErrTxConflict)
}

func (r *ConductRepository) appendOnce(ctx context.Context, entry *models.ConductLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO conduct_logs (id, student_id, teacher_id, score_change, reason, term_id, created_at)
VALUES (:id, :student_id, :teacher_id, :score_change, :reason, :term_id, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, entry); err != nil {
		return fmt.Errorf("insert conduct log: %w", err)
	}

	const updateQuery = `UPDATE students SET conduct_score = conduct_score + $2, updated_at = $3 WHERE id = $1`
	var res sql.Result
	if res, err = tx.ExecContext(ctx, updateQuery, entry.StudentID, entry.ScoreChange, time.Now().UTC()); err != nil {
		return fmt.Errorf("update conduct score: %w", err)
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

// ListForStudent returns ledger entries for a student, newest first. A
// non-nil termID restricts results to entries classified under that term;
// unclassified entries never match a term filter.
func (r *ConductRepository) ListForStudent(ctx context.Context, filter models.ConductLogFilter) ([]models.ConductLog, error) {
	query := `SELECT id, student_id, teacher_id, score_change, reason, term_id, created_at
FROM conduct_logs WHERE student_id = $1`
	args := []interface{}{filter.StudentID}
	if filter.TermID != nil {
		query += " AND term_id = $2"
		args = append(args, *filter.TermID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	var entries []models.ConductLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list conduct logs: %w", err)
	}
	return entries, nil
}

// ListUnclassified returns entries still lacking a term reference, oldest
// first so backfill walks history in insertion order.
func (r *ConductRepository) ListUnclassified(ctx context.Context) ([]models.ConductLog, error) {
	const query = `SELECT id, student_id, teacher_id, score_change, reason, term_id, created_at
FROM conduct_logs WHERE term_id IS NULL ORDER BY created_at ASC, id ASC`
	var entries []models.ConductLog
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list unclassified conduct logs: %w", err)
	}
	return entries, nil
}

// AssignTerm sets the term reference on an entry that has none. The
// predicate makes the write idempotent: entries already classified are
// never touched, so re-running a backfill cannot rewrite history.
func (r *ConductRepository) AssignTerm(ctx context.Context, entryID, termID string) (bool, error) {
	const query = `UPDATE conduct_logs SET term_id = $2 WHERE id = $1 AND term_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, entryID, termID)
	if err != nil {
		return false, fmt.Errorf("assign term: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign term rows affected: %w", err)
	}
	return affected == 1, nil
}

// TotalRow pairs a student's cached total with the recomputed ledger sum.
type TotalRow struct {
	StudentID string `db:"student_id"`
	Cached    int    `db:"cached"`
	DeltaSum  int    `db:"delta_sum"`
}

// Totals recomputes every student's ledger sum alongside the cached score.
// Reserved for offline audit tooling, not the hot read path.
func (r *ConductRepository) Totals(ctx context.Context) ([]TotalRow, error) {
	const query = `SELECT s.id AS student_id, s.conduct_score AS cached, COALESCE(SUM(l.score_change), 0) AS delta_sum
FROM students s LEFT JOIN conduct_logs l ON l.student_id = s.id
GROUP BY s.id, s.conduct_score`
	var rows []TotalRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("recompute totals: %w", err)
	}
	return rows, nil
}

func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure and deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
