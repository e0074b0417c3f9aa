package feedback

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewRowColumns = []string{
	"id", "case_id", "implant_type", "suggested_diagnosis", "probability",
	"citation_source", "clinician_diagnosis", "agreed", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_RequiresConnection(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, err = NewPostgresStore(db)
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	review := NewReview("case-1", "Austin-Moore", scenarioAResult(), "", "")
	mock.ExpectQuery("INSERT INTO case_reviews").
		WithArgs("case-1", "Austin-Moore", review.SuggestedDiagnosis, 0.93, review.CitationSource,
			review.SuggestedDiagnosis, true, "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), created, created))

	require.NoError(t, store.Save(context.Background(), review))
	assert.Equal(t, int64(42), review.ID)
	assert.Equal(t, created, review.CreatedAt)
	assert.Equal(t, created, review.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.Save(context.Background(), &Review{CaseID: "c"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM case_reviews WHERE case_id").
		WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows(reviewRowColumns).
			AddRow(int64(1), "case-1", "Corail", "Bayesian Consensus: Scenario_B_Loosening", 0.8,
				"Bayesian Network (P=0.80)", "Scenario_B_Loosening", false, "revised", now, now))

	got, err := store.Get(ctx, "case-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Corail", got.ImplantType)
	assert.False(t, got.Agreed)

	mock.ExpectQuery("SELECT (.+) FROM case_reviews WHERE case_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAndCounts(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM case_reviews ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(reviewRowColumns).
			AddRow(int64(2), "case-2", "", "dx", 0.5, "c", "dx", true, "", now, now).
			AddRow(int64(1), "case-1", "", "dx", 0.6, "c", "other", false, "", now, now))

	list, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "case-2", list[0].CaseID)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM case_reviews$").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM case_reviews WHERE agreed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	rate, err := AgreementRate(ctx, store)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, rate, 1e-12)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM case_reviews WHERE id").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(ctx, 7))

	mock.ExpectExec("DELETE FROM case_reviews WHERE id").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorContains(t, store.Delete(ctx, 8), "review not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportSkipsExisting(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	payload := `{"version":"1.0","count":2,"reviews":[
		{"case_id":"case-1","suggested_diagnosis":"dx","clinician_diagnosis":"dx","agreed":true,"probability":0.7},
		{"case_id":"case-2","suggested_diagnosis":"dx","clinician_diagnosis":"other","probability":0.6,
		 "created_at":"2025-11-04T08:30:00Z","updated_at":"2025-11-09T17:05:00Z"}
	]}`

	mock.ExpectQuery("SELECT (.+) FROM case_reviews WHERE case_id").
		WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows(reviewRowColumns).
			AddRow(int64(1), "case-1", "", "dx", 0.7, "", "dx", true, "", now, now))
	mock.ExpectQuery("SELECT (.+) FROM case_reviews WHERE case_id").
		WithArgs("case-2").
		WillReturnError(sql.ErrNoRows)
	exported := time.Date(2025, 11, 4, 8, 30, 0, 0, time.UTC)
	revised := time.Date(2025, 11, 9, 17, 5, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO case_reviews").
		WithArgs("case-2", "", "dx", 0.6, "", "other", false, "", exported, revised, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(2), exported, revised))

	imported, skipped, err := store.ImportJSON(ctx, bytes.NewBufferString(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}
