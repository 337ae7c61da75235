package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/models"
)

type mockStudentRepo struct {
	byCode  map[string]*models.Student
	created []*models.Student
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.byCode))
	for _, student := range m.byCode {
		out = append(out, *student)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByIdentifier(ctx context.Context, identifier string) (*models.Student, error) {
	if student, ok := m.byCode[identifier]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, ok := m.byCode[code]
	return ok, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.byCode == nil {
		m.byCode = make(map[string]*models.Student)
	}
	if student.ID == "" {
		student.ID = "id-" + student.StudentCode
	}
	cp := *student
	m.byCode[student.StudentCode] = &cp
	m.created = append(m.created, &cp)
	return nil
}

type staticCipher struct{}

func (staticCipher) Encrypt(plaintext string) (string, error) {
	return "enc(" + plaintext + ")", nil
}

func TestStudentServiceCreatePresetsDefaultScore(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop(), 150)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentCode: "STU001",
		FirstName:   "Anan",
	})
	require.NoError(t, err)
	assert.Equal(t, 150, student.ConductScore)
}

func TestStudentServiceCreateEncryptsCitizenID(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, staticCipher{}, validator.New(), zap.NewNop(), 150)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentCode: "STU001",
		FirstName:   "Anan",
		CitizenID:   "1234567890123",
	})
	require.NoError(t, err)
	assert.Equal(t, "enc(1234567890123)", student.CitizenID)
}

func TestStudentServiceCreateDuplicateCode(t *testing.T) {
	repo := &mockStudentRepo{byCode: map[string]*models.Student{
		"STU001": {ID: "s1", StudentCode: "STU001"},
	}}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop(), 150)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentCode: "STU001",
		FirstName:   "Anan",
	})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestStudentServiceImportCSV(t *testing.T) {
	repo := &mockStudentRepo{byCode: map[string]*models.Student{
		"STU002": {ID: "s2", StudentCode: "STU002"},
	}}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop(), 150)

	csvData := strings.Join([]string{
		"student_code,prefix,first_name,last_name,class,room,house,citizen_id,email",
		"STU001,Mr.,Anan,K,4,2,Red,,anan@example.com",
		"STU002,Ms.,Busaba,P,4,2,Blue,,",
		",,NoCode,,,,,,",
	}, "\n")

	summary, err := svc.ImportCSV(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, summary.Errors, 1)

	created, err := svc.Get(context.Background(), "STU001")
	require.NoError(t, err)
	assert.Equal(t, 4, created.Class)
	assert.Equal(t, 150, created.ConductScore)
}

func TestStudentServiceImportCSVMissingHeader(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, validator.New(), zap.NewNop(), 150)

	_, err := svc.ImportCSV(context.Background(), strings.NewReader("first_name,last_name\nA,B"))
	require.Error(t, err)
}
