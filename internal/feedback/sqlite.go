package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using an embedded SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens or creates the review database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const reviewColumns = `id, case_id, implant_type, suggested_diagnosis, probability,
	citation_source, clinician_diagnosis, agreed, notes, created_at, updated_at`

func scanReview(s scanner) (*Review, error) {
	r := &Review{}
	err := s.Scan(
		&r.ID, &r.CaseID, &r.ImplantType, &r.SuggestedDiagnosis, &r.Probability,
		&r.CitationSource, &r.ClinicianDiagnosis, &r.Agreed, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS case_reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id TEXT NOT NULL UNIQUE,
		implant_type TEXT DEFAULT '',
		suggested_diagnosis TEXT NOT NULL,
		probability REAL NOT NULL DEFAULT 0,
		citation_source TEXT DEFAULT '',
		clinician_diagnosis TEXT NOT NULL,
		agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_case_reviews_agreed ON case_reviews(agreed);
	CREATE INDEX IF NOT EXISTS idx_case_reviews_created_at ON case_reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the review of a case.
func (s *SQLiteStore) Save(ctx context.Context, review *Review) error {
	if err := review.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM case_reviews WHERE case_id = ?", review.CaseID,
	).Scan(&existingID, &createdAt)

	if err == nil {
		review.ID = existingID
		review.CreatedAt = createdAt
		review.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE case_reviews SET
				implant_type = ?,
				suggested_diagnosis = ?,
				probability = ?,
				citation_source = ?,
				clinician_diagnosis = ?,
				agreed = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			review.ImplantType,
			review.SuggestedDiagnosis,
			review.Probability,
			review.CitationSource,
			review.ClinicianDiagnosis,
			review.Agreed,
			review.Notes,
			now,
			existingID,
		)
		return err
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	created, updated := review.timestamps(now)
	review.CreatedAt = created
	review.UpdatedAt = updated

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO case_reviews (
			case_id, implant_type, suggested_diagnosis, probability,
			citation_source, clinician_diagnosis, agreed, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	review.ID = id

	return nil
}

// Get retrieves the review of a case.
func (s *SQLiteStore) Get(ctx context.Context, caseID string) (*Review, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM case_reviews WHERE case_id = ?", caseID)

	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return r, nil
}

// List returns reviews newest first with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Review, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM case_reviews ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM case_reviews").Scan(&count)
	return count, err
}

// CountAgreed returns the number of reviews where the clinician agreed.
func (s *SQLiteStore) CountAgreed(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM case_reviews WHERE agreed = 1").Scan(&count)
	return count, err
}

// Delete removes a review by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM case_reviews WHERE id = ?", id)
	return err
}

// ExportJSON exports all reviews to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports reviews from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
