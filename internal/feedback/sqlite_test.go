package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func scenarioAResult() domain.DiagnosticResult {
	return domain.DiagnosticResult{
		Diagnosis:          "Bayesian Consensus: Scenario_A_Impact",
		Probability:        0.93,
		ConfidenceInterval: domain.ConfidenceInterval{Lower: 0.88, Upper: 0.98},
		CitationSource:     "Bayesian Network (P=0.93)",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "reviews.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestNewReview(t *testing.T) {
	agreed := NewReview("", "Austin-Moore", scenarioAResult(), "", "pedestal sign on X-ray")
	_, err := uuid.Parse(agreed.CaseID)
	assert.NoError(t, err)
	assert.True(t, agreed.Agreed)
	assert.Equal(t, agreed.SuggestedDiagnosis, agreed.ClinicianDiagnosis)
	assert.Equal(t, "Bayesian Network (P=0.93)", agreed.CitationSource)

	disagreed := NewReview("case-7", "Corail", scenarioAResult(), "Periprosthetic fracture", "")
	assert.Equal(t, "case-7", disagreed.CaseID)
	assert.False(t, disagreed.Agreed)
}

func TestReview_Validate(t *testing.T) {
	tests := []struct {
		name   string
		review Review
		field  string
	}{
		{"missing case", Review{SuggestedDiagnosis: "x"}, "case_id"},
		{"missing diagnosis", Review{CaseID: "c"}, "suggested_diagnosis"},
		{"bad probability", Review{CaseID: "c", SuggestedDiagnosis: "x", Probability: 1.2}, "probability"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.review.Validate()
			require.Error(t, err)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	review := NewReview("case-1", "Austin-Moore", scenarioAResult(), "", "")
	require.NoError(t, store.Save(ctx, review))
	assert.NotZero(t, review.ID)
	assert.False(t, review.CreatedAt.IsZero())

	got, err := store.Get(ctx, "case-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, review.ID, got.ID)
	assert.Equal(t, "Austin-Moore", got.ImplantType)
	assert.Equal(t, 0.93, got.Probability)
	assert.True(t, got.Agreed)

	missing, err := store.Get(ctx, "no-such-case")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_SaveUpdatesExistingCase(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	first := NewReview("case-2", "Austin-Moore", scenarioAResult(), "", "")
	require.NoError(t, store.Save(ctx, first))

	second := NewReview("case-2", "Austin-Moore", scenarioAResult(), "Infection_PJI", "positive aspiration")
	require.NoError(t, store.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Get(ctx, "case-2")
	require.NoError(t, err)
	assert.False(t, got.Agreed)
	assert.Equal(t, "Infection_PJI", got.ClinicianDiagnosis)
	assert.Equal(t, "positive aspiration", got.Notes)
}

func TestSQLiteStore_SaveRejectsInvalid(t *testing.T) {
	store := createTestStore(t)

	err := store.Save(context.Background(), &Review{SuggestedDiagnosis: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSQLiteStore_ListCountDelete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i, clinician := range []string{"", "", "Scenario_B_Loosening"} {
		r := NewReview("", "Austin-Moore", scenarioAResult(), clinician, "")
		require.NoError(t, store.Save(ctx, r), "review %d", i)
	}

	all, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	agreed, err := store.CountAgreed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), agreed)

	rate, err := AgreementRate(ctx, store)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, rate, 1e-12)

	require.NoError(t, store.Delete(ctx, all[0].ID))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	src := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, src.Save(ctx, NewReview("case-a", "Austin-Moore", scenarioAResult(), "", "")))
	require.NoError(t, src.Save(ctx, NewReview("case-b", "Corail", scenarioAResult(), "Scenario_B_Loosening", "")))

	var buf bytes.Buffer
	require.NoError(t, src.ExportJSON(ctx, &buf))

	var export ReviewExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, ExportVersion, export.Version)
	assert.Equal(t, 2, export.Count)

	dst := createTestStore(t)
	require.NoError(t, dst.Save(ctx, NewReview("case-a", "Austin-Moore", scenarioAResult(), "", "")))

	imported, skipped, err := dst.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	got, err := dst.Get(ctx, "case-b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Corail", got.ImplantType)

	original, err := src.Get(ctx, "case-b")
	require.NoError(t, err)
	assert.True(t, original.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", original.CreatedAt, got.CreatedAt)
	assert.True(t, original.UpdatedAt.Equal(got.UpdatedAt), "updated_at %v != %v", original.UpdatedAt, got.UpdatedAt)

	_, _, err = dst.ImportJSON(ctx, bytes.NewReader([]byte("not json")))
	assert.Error(t, err)
}

func TestAgreementRate_Empty(t *testing.T) {
	rate, err := AgreementRate(context.Background(), createTestStore(t))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate)
}

func TestOpen(t *testing.T) {
	store, err := Open(domain.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(domain.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}
