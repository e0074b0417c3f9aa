package domain

import (
	"errors"
	"fmt"
)

// Error codes for the failure kinds a case can end with
const (
	ErrCodeSafety          = "SAFETY_VIOLATION"
	ErrCodeEvidence        = "EVIDENCE_MISSING"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeUnknownMaterial = "UNKNOWN_MATERIAL"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// Sentinels matched by errors.Is against the typed errors below
var (
	ErrSafetyViolation = errors.New("safety protocol violated")
	ErrMissingEvidence = errors.New("diagnosis lacks a citation")
	ErrUnknownMaterial = errors.New("unknown material")
	ErrInvalidInput    = errors.New("invalid clinical input")
)

// SafetyError reports an image that fails the ISO 14971 quality gate.
// The case must be rejected and better imaging requested.
type SafetyError struct {
	Check     string  `json:"check"` // "resolution" or "snr"
	Message   string  `json:"message"`
	Measured  float64 `json:"measured"`
	Threshold float64 `json:"threshold"`
}

// Error implements the error interface
func (e *SafetyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodeSafety, e.Message)
}

// Code returns the stable error code
func (e *SafetyError) Code() string { return ErrCodeSafety }

// Is makes errors.Is(err, ErrSafetyViolation) true for any SafetyError
func (e *SafetyError) Is(target error) bool {
	return target == ErrSafetyViolation
}

// EvidenceError reports a diagnosis produced without a citation source.
type EvidenceError struct {
	Diagnosis string `json:"diagnosis"`
}

// Error implements the error interface
func (e *EvidenceError) Error() string {
	return fmt.Sprintf("%s: validation failed: diagnosis '%s' requires a citation_source", ErrCodeEvidence, e.Diagnosis)
}

// Code returns the stable error code
func (e *EvidenceError) Code() string { return ErrCodeEvidence }

// Is makes errors.Is(err, ErrMissingEvidence) true for any EvidenceError
func (e *EvidenceError) Is(target error) bool {
	return target == ErrMissingEvidence
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Code returns the stable error code
func (e *ValidationError) Code() string { return ErrCodeValidation }

// Is makes errors.Is(err, ErrInvalidInput) true for any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode extracts the code of a typed error anywhere in err's chain.
// Unknown errors map to ErrCodeInternal.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, ErrUnknownMaterial) {
		return ErrCodeUnknownMaterial
	}
	return ErrCodeInternal
}
