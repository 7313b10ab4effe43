package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vacradar/vacradar/internal/vacancy"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndListVacancies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.CreateVacancy(ctx, "Go разработчик, опыт 5 лет", "telegram")
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	require.Equal(t, "telegram", rec.Source)
	require.False(t, rec.Classified)
	require.False(t, rec.CreatedAt.IsZero())

	_, err = s.CreateVacancy(ctx, "QA инженер, Selenium", "site")
	require.NoError(t, err)

	texts, err := s.VacancyTexts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Go разработчик, опыт 5 лет", "QA инженер, Selenium"}, texts)
}

func TestUnclassifiedOrderAndLimit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"first", "second", "third"} {
		rec, err := s.CreateVacancy(ctx, text, "test")
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	batch, err := s.Unclassified(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, ids[0], batch[0].ID)
	require.Equal(t, ids[1], batch[1].ID)

	batch, err = s.Unclassified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
}

func TestDeleteVacancyIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.CreateVacancy(ctx, "to be removed", "test")
	require.NoError(t, err)

	require.NoError(t, s.DeleteVacancy(ctx, rec.ID))
	require.NoError(t, s.DeleteVacancy(ctx, rec.ID))

	batch, err := s.Unclassified(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestGetOrCreateFirstSeenWins(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 20)
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.GetOrCreateCategory(ctx, "Developer")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 20; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}

	count, err := s.CountCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGetOrCreateScopedByParent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	dev, err := s.GetOrCreateCategory(ctx, "Developer")
	require.NoError(t, err)
	qa, err := s.GetOrCreateCategory(ctx, "QA")
	require.NoError(t, err)

	devOther, err := s.GetOrCreateSubcategory(ctx, dev, "Other")
	require.NoError(t, err)
	qaOther, err := s.GetOrCreateSubcategory(ctx, qa, "Other")
	require.NoError(t, err)
	require.NotEqual(t, devOther, qaOther)

	again, err := s.GetOrCreateSubcategory(ctx, dev, "Other")
	require.NoError(t, err)
	require.Equal(t, devOther, again)

	reqA, err := s.GetOrCreateRequirement(ctx, dev, "Go")
	require.NoError(t, err)
	reqB, err := s.GetOrCreateRequirement(ctx, dev, "Go")
	require.NoError(t, err)
	require.Equal(t, reqA, reqB)
}

func TestApplyAnalysisAllOrNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.CreateVacancy(ctx, "Go разработчик", "test")
	require.NoError(t, err)

	err = s.ApplyAnalysis(ctx, vacancy.Analysis{
		VacancyID:      rec.ID,
		Category:       "Developer",
		Subcategory:    "Go",
		Company:        "Rockits",
		Location:       "-",
		EmploymentType: "Full-time",
		WorkFormat:     "remote",
		SalaryMin:      "400000",
		SalaryMax:      "unknown",
		SalaryCurrency: "RUB",
		Experience:     "5",
		Requirements:   []string{"Go", "gRPC"},
	})
	require.NoError(t, err)

	got, err := s.Vacancy(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, got.Classified)

	a, err := s.Analysis(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Developer", a.Category)
	require.Equal(t, "Go", a.Subcategory)
	require.Equal(t, "Rockits", a.Company)
	require.Equal(t, []string{"Go", "gRPC"}, a.Requirements)
}

func TestApplyAnalysisReplacesTagsWholesale(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.CreateVacancy(ctx, "Go разработчик", "test")
	require.NoError(t, err)

	first := vacancy.Analysis{
		VacancyID: rec.ID, Category: "Developer",
		Company: "unknown", Location: "-", EmploymentType: "unknown",
		WorkFormat: "unknown", SalaryMin: "unknown", SalaryMax: "unknown",
		SalaryCurrency: "unknown", Experience: "unknown",
		Requirements: []string{"Go", "Kubernetes", "gRPC"},
	}
	require.NoError(t, s.ApplyAnalysis(ctx, first))

	second := first
	second.Requirements = []string{"Go", "PostgreSQL"}
	require.NoError(t, s.ApplyAnalysis(ctx, second))

	a, err := s.Analysis(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Go", "PostgreSQL"}, a.Requirements)
}

func TestApplyAnalysisRollsBackOnMissingVacancy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.ApplyAnalysis(ctx, vacancy.Analysis{
		VacancyID: 12345, Category: "Ghost Category",
		Company: "unknown", Location: "-", EmploymentType: "unknown",
		WorkFormat: "unknown", SalaryMin: "unknown", SalaryMax: "unknown",
		SalaryCurrency: "unknown", Experience: "unknown",
		Requirements: []string{"Go"},
	})
	require.Error(t, err)

	// The category created inside the failed transaction must not survive.
	count, err := s.CountCategories(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = s.Analysis(ctx, 12345)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteVacancyCascadesAnalysis(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rec, err := s.CreateVacancy(ctx, "Go разработчик", "test")
	require.NoError(t, err)

	require.NoError(t, s.ApplyAnalysis(ctx, vacancy.Analysis{
		VacancyID: rec.ID, Category: "Developer",
		Company: "unknown", Location: "-", EmploymentType: "unknown",
		WorkFormat: "unknown", SalaryMin: "unknown", SalaryMax: "unknown",
		SalaryCurrency: "unknown", Experience: "unknown",
	}))

	require.NoError(t, s.DeleteVacancy(ctx, rec.ID))

	_, err = s.Analysis(ctx, rec.ID)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
