// Package feedback stores clinician reviews of fused diagnoses: whether the
// treating surgeon agreed with the engine's suggestion for a case, and what
// they concluded instead.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// ExportVersion is written into every JSON export
const ExportVersion = "1.0"

// Review is a clinician's verdict on one analysed case.
type Review struct {
	ID                 int64     `json:"id,omitempty"`
	CaseID             string    `json:"case_id"`
	ImplantType        string    `json:"implant_type,omitempty"`
	SuggestedDiagnosis string    `json:"suggested_diagnosis"`       // Engine's diagnosis
	Probability        float64   `json:"probability"`               // Engine's confidence
	CitationSource     string    `json:"citation_source,omitempty"` // Evidence behind the suggestion
	ClinicianDiagnosis string    `json:"clinician_diagnosis"`       // Clinician's decision
	Agreed             bool      `json:"agreed"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewReview records a clinician verdict on result. An empty caseID gets a
// fresh UUID; an empty clinicianDiagnosis means the clinician accepted the
// suggestion.
func NewReview(caseID, implantType string, result domain.DiagnosticResult, clinicianDiagnosis, notes string) *Review {
	if caseID == "" {
		caseID = uuid.NewString()
	}
	if clinicianDiagnosis == "" {
		clinicianDiagnosis = result.Diagnosis
	}
	return &Review{
		CaseID:             caseID,
		ImplantType:        implantType,
		SuggestedDiagnosis: result.Diagnosis,
		Probability:        result.Probability,
		CitationSource:     result.CitationSource,
		ClinicianDiagnosis: clinicianDiagnosis,
		Agreed:             clinicianDiagnosis == result.Diagnosis,
		Notes:              notes,
	}
}

// Validate checks the fields every store requires
func (r *Review) Validate() error {
	if r.CaseID == "" {
		return domain.NewValidationError("case_id", "is required", r.CaseID)
	}
	if r.SuggestedDiagnosis == "" {
		return domain.NewValidationError("suggested_diagnosis", "is required", r.SuggestedDiagnosis)
	}
	if r.Probability < 0 || r.Probability > 1 {
		return domain.NewValidationError("probability", "must be within [0, 1]", r.Probability)
	}
	return nil
}

// timestamps returns the review's creation and update times, with unset ones
// replaced by now. Imported reviews keep the history they were exported with.
func (r *Review) timestamps(now time.Time) (created, updated time.Time) {
	created, updated = now, now
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC()
	}
	if !r.UpdatedAt.IsZero() {
		updated = r.UpdatedAt.UTC()
	}
	return created, updated
}

// Store defines the interface for review storage operations.
type Store interface {
	// Save stores or updates the review of a case. A second review of the
	// same case replaces the first.
	Save(ctx context.Context, review *Review) error

	// Get retrieves the review of a case, or nil if there is none.
	Get(ctx context.Context, caseID string) (*Review, error)

	// List returns reviews newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*Review, error)

	// Count returns the total number of reviews.
	Count(ctx context.Context) (int64, error)

	// CountAgreed returns the number of reviews where the clinician agreed.
	CountAgreed(ctx context.Context) (int64, error)

	// Delete removes a review by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all reviews to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports reviews from a JSON reader, skipping cases that
	// already have a review.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ReviewExport represents the JSON export format.
type ReviewExport struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Reviews    []*Review `json:"reviews"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	export := &ReviewExport{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Count:      len(all),
		Reviews:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export ReviewExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Reviews {
		existing, err := s.Get(ctx, r.CaseID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		r.ID = 0
		if err := s.Save(ctx, r); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// AgreementRate returns the share of reviews where the clinician agreed with
// the engine, or 0 when there are no reviews.
func AgreementRate(ctx context.Context, s Store) (float64, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	agreed, err := s.CountAgreed(ctx)
	if err != nil {
		return 0, err
	}
	return float64(agreed) / float64(total), nil
}
