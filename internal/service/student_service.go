package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/models"
	appErrors "github.com/sakolwit/school-portal-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.Student, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

type fieldCipher interface {
	Encrypt(plaintext string) (string, error)
}

// StudentService manages the student roster. The conduct score on new
// records is preset to the configured default; afterwards only the ledger
// append path may change it.
type StudentService struct {
	repo         studentRepository
	cipher       fieldCipher
	validator    *validator.Validate
	logger       *zap.Logger
	defaultScore int
}

// NewStudentService constructs the service. cipher may be nil when field
// encryption is not configured; citizen ids are then stored as given.
func NewStudentService(repo studentRepository, cipher fieldCipher, validate *validator.Validate, logger *zap.Logger, defaultScore int) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultScore == 0 {
		defaultScore = 150
	}
	return &StudentService{repo: repo, cipher: cipher, validator: validate, logger: logger, defaultScore: defaultScore}
}

// CreateStudentRequest describes create payload.
type CreateStudentRequest struct {
	StudentCode string `json:"student_code" validate:"required"`
	Prefix      string `json:"prefix"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name"`
	Class       int    `json:"class"`
	Room        int    `json:"room"`
	House       string `json:"house"`
	CitizenID   string `json:"citizen_id"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// ImportSummary reports the outcome of a roster import.
type ImportSummary struct {
	Rows    int      `json:"rows"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// List returns students with pagination.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list students")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return students, pagination, nil
}

// Get resolves one student by internal id or public code.
func (s *StudentService) Get(ctx context.Context, identifier string) (*models.Student, error) {
	student, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student with the default conduct score.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByCode(ctx, req.StudentCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student code already registered")
	}

	citizenID := req.CitizenID
	if citizenID != "" && s.cipher != nil {
		if citizenID, err = s.cipher.Encrypt(citizenID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encrypt citizen id")
		}
	}

	student := &models.Student{
		StudentCode:  req.StudentCode,
		Prefix:       req.Prefix,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Class:        req.Class,
		Room:         req.Room,
		House:        req.House,
		CitizenID:    citizenID,
		Email:        req.Email,
		ConductScore: s.defaultScore,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create student")
	}
	return student, nil
}

// ImportCSV ingests a roster file with the columns
// student_code,prefix,first_name,last_name,class,room,house,citizen_id,email.
// Rows whose student code already exists are skipped, so re-importing the
// same file is harmless.
func (s *StudentService) ImportCSV(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty or unreadable csv")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := cols["student_code"]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv missing student_code column")
	}

	summary := &ImportSummary{Errors: []string{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "malformed csv row")
		}
		summary.Rows++

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		req := CreateStudentRequest{
			StudentCode: field("student_code"),
			Prefix:      field("prefix"),
			FirstName:   field("first_name"),
			LastName:    field("last_name"),
			House:       field("house"),
			CitizenID:   field("citizen_id"),
			Email:       field("email"),
		}
		if v, err := strconv.Atoi(field("class")); err == nil {
			req.Class = v
		}
		if v, err := strconv.Atoi(field("room")); err == nil {
			req.Room = v
		}

		if _, err := s.Create(ctx, req); err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrConflict.Code {
				summary.Skipped++
				continue
			}
			summary.Errors = append(summary.Errors, req.StudentCode+": "+appErr.Message)
			continue
		}
		summary.Created++
	}

	s.logger.Info("student roster imported",
		zap.Int("rows", summary.Rows),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)))
	return summary, nil
}
