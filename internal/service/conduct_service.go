package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/dto"
	"github.com/sakolwit/school-portal-api/internal/models"
	"github.com/sakolwit/school-portal-api/internal/repository"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
	"github.com/sakolwit/school-portal-api/pkg/export"
)

const unknownAuthorName = "Unknown"

type conductLedger interface {
	Append(ctx context.Context, entry *models.ConductLog) error
	ListForStudent(ctx context.Context, filter models.ConductLogFilter) ([]models.ConductLog, error)
}

type conductStudentResolver interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Student, error)
}

type authorDirectory interface {
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

type termLocator interface {
	FindContaining(ctx context.Context, at time.Time) (*models.AcademicTerm, bool, error)
}

// ConductConfig tunes ledger behaviour at the service level.
type ConductConfig struct {
	DefaultScore int
	MaxDelta     int
}

// ConductService composes the ledger, the term registry and staff
// identities into score-change and score-report use cases.
type ConductService struct {
	ledger    conductLedger
	students  conductStudentResolver
	authors   authorDirectory
	terms     termLocator
	validator *validator.Validate
	logger    *zap.Logger
	config    ConductConfig
}

// NewConductService constructs the service.
func NewConductService(ledger conductLedger, students conductStudentResolver, authors authorDirectory, terms termLocator, validate *validator.Validate, logger *zap.Logger, config ConductConfig) *ConductService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultScore == 0 {
		config.DefaultScore = 150
	}
	return &ConductService{
		ledger:    ledger,
		students:  students,
		authors:   authors,
		terms:     terms,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// AppendRequest describes a score-change submission.
type AppendRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	ScoreChange int    `json:"score_change"`
	Reason      string `json:"reason" validate:"required"`
}

// Append records one conduct score change for a student. The current term
// is resolved before the write so live entries are classified with the
// exact same matching rules the backfill uses. The ledger insert and the
// cached-total increment commit as one unit.
func (s *ConductService) Append(ctx context.Context, req AppendRequest, teacherID string) (*models.ConductLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conduct log payload")
	}
	if s.config.MaxDelta > 0 {
		if req.ScoreChange > s.config.MaxDelta || req.ScoreChange < -s.config.MaxDelta {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("score_change magnitude must not exceed %d", s.config.MaxDelta))
		}
	}

	student, err := s.students.FindByIdentifier(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve student")
	}

	entry := &models.ConductLog{
		StudentID:   student.ID,
		TeacherID:   teacherID,
		ScoreChange: req.ScoreChange,
		Reason:      req.Reason,
	}

	term, found, err := s.terms.FindContaining(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if found {
		entry.TermID = &term.ID
	} else {
		s.logger.Warn("no term covers the current date, appending unclassified",
			zap.String("student_id", student.ID))
	}

	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrTxConflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent score update, retry the request")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to append conduct log")
	}

	s.logger.Info("conduct log appended",
		zap.String("student_id", student.ID),
		zap.String("teacher_id", teacherID),
		zap.Int("score_change", req.ScoreChange))
	return entry, nil
}

// GetScoreReport resolves a student by internal id or public code and
// returns the cached total plus the (optionally term-filtered) history with
// author display names resolved in a single batched lookup.
func (s *ConductService) GetScoreReport(ctx context.Context, identifier string, termID *string) (*dto.ScoreReport, error) {
	student, err := s.students.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve student")
	}

	entries, err := s.ledger.ListForStudent(ctx, models.ConductLogFilter{StudentID: student.ID, TermID: termID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list conduct logs")
	}

	names, err := s.resolveAuthors(ctx, entries)
	if err != nil {
		return nil, err
	}

	history := make([]dto.ScoreReportEntry, len(entries))
	for i, entry := range entries {
		name, ok := names[entry.TeacherID]
		if !ok || name == "" {
			name = unknownAuthorName
		}
		history[i] = dto.ScoreReportEntry{
			ID:          entry.ID,
			StudentID:   entry.StudentID,
			TeacherID:   entry.TeacherID,
			TeacherName: name,
			ScoreChange: entry.ScoreChange,
			Reason:      entry.Reason,
			TermID:      entry.TermID,
			CreatedAt:   entry.CreatedAt,
		}
	}

	report := &dto.ScoreReport{
		StudentID:   student.StudentCode,
		StudentName: student.DisplayName(),
		TotalScore:  student.ConductScore,
		History:     history,
	}
	if report.StudentID == "" {
		report.StudentID = student.ID
	}
	if report.StudentName == "" {
		report.StudentName = "Unknown Student"
	}
	return report, nil
}

// ExportFormat selects the rendering for conduct history exports.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportHistory renders a student's score report as a downloadable file.
func (s *ConductService) ExportHistory(ctx context.Context, identifier string, termID *string, format ExportFormat) ([]byte, string, error) {
	report, err := s.GetScoreReport(ctx, identifier, termID)
	if err != nil {
		return nil, "", err
	}

	data := export.Dataset{
		Headers: []string{"Date", "Change", "Reason", "Recorded By", "Term"},
		Rows:    make([]map[string]string, len(report.History)),
	}
	for i, entry := range report.History {
		termRef := ""
		if entry.TermID != nil {
			termRef = *entry.TermID
		}
		data.Rows[i] = map[string]string{
			"Date":        entry.CreatedAt.Format("2006-01-02 15:04"),
			"Change":      strconv.Itoa(entry.ScoreChange),
			"Reason":      entry.Reason,
			"Recorded By": entry.TeacherName,
			"Term":        termRef,
		}
	}

	switch format {
	case ExportPDF:
		payload, err := export.NewPDFExporter().Render(data, fmt.Sprintf("Conduct Report %s", report.StudentID))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case ExportCSV:
		payload, err := export.NewCSVExporter().Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *ConductService) resolveAuthors(ctx context.Context, entries []models.ConductLog) (map[string]string, error) {
	if len(entries) == 0 {
		return map[string]string{}, nil
	}
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.TeacherID]; ok {
			continue
		}
		seen[entry.TeacherID] = struct{}{}
		ids = append(ids, entry.TeacherID)
	}
	names, err := s.authors.DisplayNames(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve authors")
	}
	return names, nil
}
