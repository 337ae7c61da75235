package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/dto"
	"github.com/sakolwit/school-portal-api/internal/models"
	"github.com/sakolwit/school-portal-api/internal/repository"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
)

type backfillLedger interface {
	ListUnclassified(ctx context.Context) ([]models.ConductLog, error)
	AssignTerm(ctx context.Context, entryID, termID string) (bool, error)
	Totals(ctx context.Context) ([]repository.TotalRow, error)
}

// BackfillService classifies historical ledger entries into terms and
// audits the denormalized running totals. Both operations are idempotent
// and safe to re-run: classification only ever touches entries that are
// still unclassified, so adding terms later cannot rewrite settled history.
type BackfillService struct {
	ledger       backfillLedger
	terms        termLocator
	logger       *zap.Logger
	defaultScore int
}

// NewBackfillService constructs the service.
func NewBackfillService(ledger backfillLedger, terms termLocator, logger *zap.Logger, defaultScore int) *BackfillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultScore == 0 {
		defaultScore = 150
	}
	return &BackfillService{ledger: ledger, terms: terms, logger: logger, defaultScore: defaultScore}
}

// Run assigns a term to every unclassified entry whose creation timestamp
// falls inside a configured term. Entries in a gap no term covers are left
// unclassified and reported for operator review; that is legitimate
// historical data, not a failure.
func (s *BackfillService) Run(ctx context.Context) (*dto.BackfillResult, error) {
	entries, err := s.ledger.ListUnclassified(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list unclassified entries")
	}

	result := &dto.BackfillResult{Scanned: len(entries), Unmatched: []string{}}
	for _, entry := range entries {
		term, found, err := s.terms.FindContaining(ctx, entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		if !found {
			s.logger.Warn("conduct log matched no term",
				zap.String("entry_id", entry.ID),
				zap.Time("created_at", entry.CreatedAt))
			result.Unmatched = append(result.Unmatched, entry.ID)
			continue
		}

		updated, err := s.ledger.AssignTerm(ctx, entry.ID, term.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to assign term")
		}
		if !updated {
			// Classified concurrently since the scan; leave it alone.
			continue
		}
		result.Classified++
	}

	s.logger.Info("term backfill finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("classified", result.Classified),
		zap.Int("unmatched", len(result.Unmatched)))
	return result, nil
}

// VerifyTotals recomputes every student's expected score from the ledger
// and reports rows whose cached total diverges. Read-only; fixing a
// mismatch is an operator decision.
func (s *BackfillService) VerifyTotals(ctx context.Context) (*dto.VerifyResult, error) {
	rows, err := s.ledger.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to recompute totals")
	}

	result := &dto.VerifyResult{Checked: len(rows), Mismatches: []dto.TotalMismatch{}}
	for _, row := range rows {
		expected := s.defaultScore + row.DeltaSum
		if row.Cached != expected {
			result.Mismatches = append(result.Mismatches, dto.TotalMismatch{
				StudentID: row.StudentID,
				Cached:    row.Cached,
				Expected:  expected,
			})
		}
	}

	if len(result.Mismatches) > 0 {
		s.logger.Error("conduct totals diverged from ledger",
			zap.Int("mismatches", len(result.Mismatches)))
	}
	return result, nil
}
