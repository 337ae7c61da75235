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

	"github.com/sakolwit/school-portal-api/internal/middleware"
	"github.com/sakolwit/school-portal-api/internal/models"
	"github.com/sakolwit/school-portal-api/internal/service"
	"github.com/sakolwit/school-portal-api/pkg/response"
)

type ledgerStub struct {
	entries []models.ConductLog
	lastPut *models.ConductLog
}

func (s *ledgerStub) Append(ctx context.Context, entry *models.ConductLog) error {
	entry.ID = "entry-1"
	entry.CreatedAt = time.Now().UTC()
	s.lastPut = entry
	return nil
}

func (s *ledgerStub) ListForStudent(ctx context.Context, filter models.ConductLogFilter) ([]models.ConductLog, error) {
	return s.entries, nil
}

type studentStub struct {
	student *models.Student
}

func (s *studentStub) FindByIdentifier(ctx context.Context, identifier string) (*models.Student, error) {
	if s.student == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s.student
	return &cp, nil
}

type authorStub struct{}

func (authorStub) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	return map[string]string{"u1": "Teacher A"}, nil
}

type termStub struct{}

func (termStub) FindContaining(ctx context.Context, at time.Time) (*models.AcademicTerm, bool, error) {
	return nil, false, nil
}

func newConductHandlerFixture(student *models.Student) (*ConductHandler, *ledgerStub) {
	ledger := &ledgerStub{}
	svc := service.NewConductService(ledger, &studentStub{student: student}, authorStub{}, termStub{}, nil, zap.NewNop(), service.ConductConfig{DefaultScore: 150})
	return NewConductHandler(svc, nil), ledger
}

func TestConductHandlerAppend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, ledger := newConductHandlerFixture(&models.Student{ID: "s1", StudentCode: "STU001", FirstName: "Anan", ConductScore: 150})

	payload, _ := json.Marshal(service.AppendRequest{StudentID: "STU001", ScoreChange: -5, Reason: "late"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/conduct/logs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})

	handler.Append(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, ledger.lastPut)
	assert.Equal(t, "u1", ledger.lastPut.TeacherID)
	assert.Equal(t, "s1", ledger.lastPut.StudentID)
}

func TestConductHandlerAppendInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newConductHandlerFixture(&models.Student{ID: "s1"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/conduct/logs", bytes.NewBufferString(`{"student_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})

	handler.Append(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConductHandlerAppendMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newConductHandlerFixture(&models.Student{ID: "s1"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/conduct/logs", bytes.NewBufferString(`{}`))
	c.Request = req

	handler.Append(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConductHandlerStudentScore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newConductHandlerFixture(&models.Student{ID: "s1", StudentCode: "STU001", Prefix: "Mr.", FirstName: "Anan", ConductScore: 145})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/conduct/students/STU001", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "STU001"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})

	handler.StudentScore(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_score":145`)
}

func TestConductHandlerStudentScoreNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newConductHandlerFixture(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/conduct/students/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.StudentScore(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestConductHandlerExportHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newConductHandlerFixture(&models.Student{ID: "s1", StudentCode: "STU001", FirstName: "Anan"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/conduct/students/STU001/export?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "STU001"}}

	handler.ExportHistory(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "conduct-STU001.csv")
}
