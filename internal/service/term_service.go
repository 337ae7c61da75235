package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/models"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
)

type termRepository interface {
	ListByStartAscending(ctx context.Context) ([]models.AcademicTerm, error)
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, term *models.AcademicTerm) error
}

// TermService is the registry of academic terms. The term list changes a
// few times a year, so it is cached in memory for the life of the process
// and invalidated only when a term is created through this service.
type TermService struct {
	repo      termRepository
	validator *validator.Validate
	logger    *zap.Logger

	mu     sync.RWMutex
	cached []models.AcademicTerm
	loaded bool
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, validator: validate, logger: logger}
}

// CreateTermRequest describes payload for creating academic terms.
type CreateTermRequest struct {
	Name      string    `json:"name" validate:"required"`
	Category  string    `json:"category" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// List returns all terms ordered most-recent-start-first for display.
// An empty slice is a valid outcome when no terms are configured.
func (s *TermService) List(ctx context.Context) ([]models.AcademicTerm, error) {
	terms, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AcademicTerm, len(terms))
	for i, t := range terms {
		out[len(terms)-1-i] = t
	}
	return out, nil
}

// FindContaining returns the term whose date interval contains the instant,
// or ok=false when no configured term covers it - an expected outcome for
// data predating all terms, not an error. When terms overlap the first
// match in registry order (start date ascending) wins, deterministically.
func (s *TermService) FindContaining(ctx context.Context, at time.Time) (*models.AcademicTerm, bool, error) {
	terms, err := s.registry(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range terms {
		if terms[i].Contains(at) {
			term := terms[i]
			return &term, true, nil
		}
	}
	return nil, false, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load term")
	}
	return term, nil
}

// Create adds a new term after validating the interval and name uniqueness.
// Matching the seed scripts, creating a term whose name already exists is a
// conflict rather than a duplicate row, so seeding can re-run safely.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.AcademicTerm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	category := models.TermCategory(req.Category)
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown term category")
	}
	if req.StartDate.After(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must not be after end_date")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check term name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term with this name already exists")
	}

	term := &models.AcademicTerm{
		Name:      req.Name,
		Category:  category,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create term")
	}

	s.Invalidate()
	return term, nil
}

// Invalidate drops the in-memory term cache. The next read reloads from
// storage.
func (s *TermService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.loaded = false
	s.mu.Unlock()
}

// registry returns the cached term list in ascending start-date order,
// loading it on first use. Load failure is surfaced to the caller.
func (s *TermService) registry(ctx context.Context) ([]models.AcademicTerm, error) {
	s.mu.RLock()
	if s.loaded {
		terms := s.cached
		s.mu.RUnlock()
		return terms, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached, nil
	}
	terms, err := s.repo.ListByStartAscending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load term registry")
	}
	s.cached = terms
	s.loaded = true
	s.logger.Debug("term registry loaded", zap.Int("terms", len(terms)))
	return terms, nil
}
