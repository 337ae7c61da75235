package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/models"
	"github.com/sakolwit/school-portal-api/internal/repository"
	"github.com/sakolwit/school-portal-api/internal/service"
)

type termRepoStub struct {
	terms []models.AcademicTerm
}

func (s *termRepoStub) ListByStartAscending(ctx context.Context) ([]models.AcademicTerm, error) {
	return s.terms, nil
}

func (s *termRepoStub) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	return nil, sql.ErrNoRows
}

func (s *termRepoStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, term := range s.terms {
		if term.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *termRepoStub) Create(ctx context.Context, term *models.AcademicTerm) error {
	term.ID = "created"
	s.terms = append(s.terms, *term)
	return nil
}

type backfillLedgerStub struct {
	unclassified []models.ConductLog
	assigned     map[string]string
	totals       []repository.TotalRow
}

func (s *backfillLedgerStub) ListUnclassified(ctx context.Context) ([]models.ConductLog, error) {
	return s.unclassified, nil
}

func (s *backfillLedgerStub) AssignTerm(ctx context.Context, entryID, termID string) (bool, error) {
	if s.assigned == nil {
		s.assigned = make(map[string]string)
	}
	s.assigned[entryID] = termID
	return true, nil
}

func (s *backfillLedgerStub) Totals(ctx context.Context) ([]repository.TotalRow, error) {
	return s.totals, nil
}

func newTermHandlerFixture(repo *termRepoStub, ledger *backfillLedgerStub) *TermHandler {
	termSvc := service.NewTermService(repo, nil, zap.NewNop())
	backfillSvc := service.NewBackfillService(ledger, termSvc, zap.NewNop(), 150)
	return NewTermHandler(termSvc, backfillSvc, nil)
}

func TestTermHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &termRepoStub{terms: []models.AcademicTerm{{
		ID: "t1", Name: "1/2567", Category: models.TermCategoryFirst,
		StartDate: time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC),
	}}}
	handler := newTermHandlerFixture(repo, &backfillLedgerStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/conduct/terms", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1/2567")
}

func TestTermHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &termRepoStub{}
	handler := newTermHandlerFixture(repo, &backfillLedgerStub{})

	payload, _ := json.Marshal(service.CreateTermRequest{
		Name:      "1/2567",
		Category:  "term1",
		StartDate: time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/conduct/terms", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, repo.terms, 1)
}

func TestTermHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &termRepoStub{terms: []models.AcademicTerm{{ID: "t1", Name: "1/2567"}}}
	handler := newTermHandlerFixture(repo, &backfillLedgerStub{})

	payload, _ := json.Marshal(service.CreateTermRequest{
		Name:      "1/2567",
		Category:  "term1",
		StartDate: time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/conduct/terms", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTermHandlerBackfill(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &termRepoStub{terms: []models.AcademicTerm{{
		ID: "t1", Name: "1/2567", Category: models.TermCategoryFirst,
		StartDate: time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC),
	}}}
	ledger := &backfillLedgerStub{unclassified: []models.ConductLog{
		{ID: "e1", CreatedAt: time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "old", CreatedAt: time.Date(2023, time.January, 1, 9, 0, 0, 0, time.UTC)},
	}}
	handler := newTermHandlerFixture(repo, ledger)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/conduct/terms/backfill", nil)
	c.Request = req

	handler.Backfill(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", ledger.assigned["e1"])
	assert.Contains(t, w.Body.String(), `"unmatched":["old"]`)
}

func TestTermHandlerVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := &backfillLedgerStub{totals: []repository.TotalRow{
		{StudentID: "s1", Cached: 140, DeltaSum: -5},
	}}
	handler := newTermHandlerFixture(&termRepoStub{}, ledger)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/conduct/verify", nil)
	c.Request = req

	handler.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"expected":145`)
}
