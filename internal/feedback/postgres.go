package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a review store on an open connection.
// The case_reviews table must already exist (see database.MigrationRunner).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a connection pool and creates a review store on it.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates the review of a case.
func (s *PostgresStore) Save(ctx context.Context, review *Review) error {
	if err := review.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	created, updated := review.timestamps(now)

	query := `
		INSERT INTO case_reviews (
			case_id, implant_type, suggested_diagnosis, probability,
			citation_source, clinician_diagnosis, agreed, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (case_id) DO UPDATE SET
			implant_type = EXCLUDED.implant_type,
			suggested_diagnosis = EXCLUDED.suggested_diagnosis,
			probability = EXCLUDED.probability,
			citation_source = EXCLUDED.citation_source,
			clinician_diagnosis = EXCLUDED.clinician_diagnosis,
			agreed = EXCLUDED.agreed,
			notes = EXCLUDED.notes,
			updated_at = $11
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		review.CaseID,
		review.ImplantType,
		review.SuggestedDiagnosis,
		review.Probability,
		review.CitationSource,
		review.ClinicianDiagnosis,
		review.Agreed,
		review.Notes,
		created,
		updated,
		now,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}

	return nil
}

// Get retrieves the review of a case.
func (s *PostgresStore) Get(ctx context.Context, caseID string) (*Review, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM case_reviews WHERE case_id = $1", caseID)

	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return r, nil
}

// List returns reviews newest first with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Review, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM case_reviews ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var result []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM case_reviews").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// CountAgreed returns the number of reviews where the clinician agreed.
func (s *PostgresStore) CountAgreed(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM case_reviews WHERE agreed").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count agreed reviews: %w", err)
	}
	return count, nil
}

// Delete removes a review by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM case_reviews WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("review not found: %d", id)
	}
	return nil
}

// ExportJSON exports all reviews to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports reviews from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
