package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/models"
)

type mockTermRepo struct {
	terms     []models.AcademicTerm
	names     map[string]bool
	listCalls int
	created   []*models.AcademicTerm
}

func (m *mockTermRepo) ListByStartAscending(ctx context.Context) ([]models.AcademicTerm, error) {
	m.listCalls++
	out := make([]models.AcademicTerm, len(m.terms))
	copy(out, m.terms)
	return out, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	for _, term := range m.terms {
		if term.ID == id {
			cp := term
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return m.names[name], nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.AcademicTerm) error {
	if term.ID == "" {
		term.ID = "generated"
	}
	m.created = append(m.created, term)
	m.terms = append(m.terms, *term)
	return nil
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func firstTerm2024() models.AcademicTerm {
	return models.AcademicTerm{
		ID:        "t-1-2567",
		Name:      "1/2567",
		Category:  models.TermCategoryFirst,
		StartDate: date(2024, time.May, 16),
		EndDate:   date(2024, time.October, 10),
	}
}

func TestTermServiceFindContainingBoundaries(t *testing.T) {
	repo := &mockTermRepo{terms: []models.AcademicTerm{firstTerm2024()}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start of first day", time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC), true},
		{"middle of term", time.Date(2024, time.July, 1, 12, 30, 0, 0, time.UTC), true},
		{"last moment of end date", time.Date(2024, time.October, 10, 23, 59, 59, 999000000, time.UTC), true},
		{"one millisecond past end date", time.Date(2024, time.October, 11, 0, 0, 0, 0, time.UTC), false},
		{"day before start", time.Date(2024, time.May, 15, 23, 59, 59, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			term, found, err := svc.FindContaining(context.Background(), tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, found)
			if tc.want {
				assert.Equal(t, "1/2567", term.Name)
			}
		})
	}
}

func TestTermServiceFindContainingOverlapPrefersEarlierStart(t *testing.T) {
	early := models.AcademicTerm{
		ID: "early", Name: "1/2567", Category: models.TermCategoryFirst,
		StartDate: date(2024, time.May, 1), EndDate: date(2024, time.August, 31),
	}
	late := models.AcademicTerm{
		ID: "late", Name: "summer/2567", Category: models.TermCategorySummer,
		StartDate: date(2024, time.August, 1), EndDate: date(2024, time.September, 30),
	}
	repo := &mockTermRepo{terms: []models.AcademicTerm{early, late}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	term, found, err := svc.FindContaining(context.Background(), time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "early", term.ID)
}

func TestTermServiceFindContainingNoMatch(t *testing.T) {
	repo := &mockTermRepo{terms: []models.AcademicTerm{firstTerm2024()}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	_, found, err := svc.FindContaining(context.Background(), time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTermServiceRegistryCached(t *testing.T) {
	repo := &mockTermRepo{terms: []models.AcademicTerm{firstTerm2024()}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	at := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, _, err := svc.FindContaining(context.Background(), at)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.listCalls)

	svc.Invalidate()
	_, _, err := svc.FindContaining(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestTermServiceListNewestFirst(t *testing.T) {
	repo := &mockTermRepo{terms: []models.AcademicTerm{
		{ID: "a", Name: "1/2567", Category: models.TermCategoryFirst, StartDate: date(2024, time.May, 16), EndDate: date(2024, time.October, 10)},
		{ID: "b", Name: "2/2567", Category: models.TermCategorySecond, StartDate: date(2024, time.November, 1), EndDate: date(2025, time.March, 31)},
	}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	terms, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "b", terms[0].ID)
	assert.Equal(t, "a", terms[1].ID)
}

func TestTermServiceCreate(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	term, err := svc.Create(context.Background(), CreateTermRequest{
		Name:      "1/2567",
		Category:  "term1",
		StartDate: date(2024, time.May, 16),
		EndDate:   date(2024, time.October, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TermCategoryFirst, term.Category)
	assert.Len(t, repo.created, 1)
}

func TestTermServiceCreateInvalidatesCache(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	// Prime the cache while empty.
	_, found, err := svc.FindContaining(context.Background(), date(2024, time.June, 1))
	require.NoError(t, err)
	assert.False(t, found)

	_, err = svc.Create(context.Background(), CreateTermRequest{
		Name:      "1/2567",
		Category:  "term1",
		StartDate: date(2024, time.May, 16),
		EndDate:   date(2024, time.October, 10),
	})
	require.NoError(t, err)

	_, found, err = svc.FindContaining(context.Background(), date(2024, time.June, 1))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestTermServiceCreateRejectsBadInput(t *testing.T) {
	repo := &mockTermRepo{names: map[string]bool{"taken": true}}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name: "x", Category: "nonsense",
		StartDate: date(2024, time.May, 16), EndDate: date(2024, time.October, 10),
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateTermRequest{
		Name: "x", Category: "term1",
		StartDate: date(2024, time.October, 11), EndDate: date(2024, time.October, 10),
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateTermRequest{
		Name: "taken", Category: "term1",
		StartDate: date(2024, time.May, 16), EndDate: date(2024, time.October, 10),
	})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestTermServiceCreateAllowsSingleDayTerm(t *testing.T) {
	repo := &mockTermRepo{}
	svc := NewTermService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name: "exam day", Category: "other",
		StartDate: date(2024, time.October, 10), EndDate: date(2024, time.October, 10),
	})
	require.NoError(t, err)
}
