//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sadit-diagnostic-engine/internal/domain"
	"github.com/sadit-diagnostic-engine/internal/feedback"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("sadit"),
		postgres.WithUsername("sadit"),
		postgres.WithPassword("sadit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

func TestMigrationsAndReviewStore(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	url := startPostgres(t)

	db, err := Connect(ctx, url, DefaultPoolConfig(), logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Health(ctx))

	status, err := db.Status(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, status.ServerVersion)
	assert.False(t, status.ReviewTable)

	runner, err := NewMigrationRunner(url, logger)
	require.NoError(t, err)
	defer runner.Close()

	version, _, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Up(ctx), "second up is a no-op")

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	status, err = db.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.ReviewTable)

	store, err := feedback.NewPostgresStoreFromURL(url)
	require.NoError(t, err)
	defer store.Close()

	result := domain.DiagnosticResult{
		Diagnosis:      "Bayesian Consensus: Scenario_B_Loosening",
		Probability:    0.91,
		CitationSource: "Bayesian Network (P=0.91)",
	}
	review := feedback.NewReview("", "Corail", result, "", "")
	require.NoError(t, store.Save(ctx, review))

	again := feedback.NewReview(review.CaseID, "Corail", result, "Infection_PJI", "aspiration positive")
	require.NoError(t, store.Save(ctx, again))
	assert.Equal(t, review.ID, again.ID)

	got, err := store.Get(ctx, review.CaseID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Agreed)

	rate, err := feedback.AgreementRate(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate)

	require.NoError(t, runner.Down(ctx))
	status, err = db.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.ReviewTable)
}
