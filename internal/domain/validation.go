package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// clinicalValidate is shared; validator caches struct metadata and is safe
// for concurrent use.
var clinicalValidate = validator.New()

// Validate checks the structural constraints of a clinical input before any
// engine sees it. The first failing field is returned as a *ValidationError.
func (c *ClinicalInput) Validate() error {
	if err := clinicalValidate.Struct(c); err != nil {
		return toValidationError(err)
	}
	return nil
}

// Validate checks a pain profile on its own.
func (p *PainProfile) Validate() error {
	if err := clinicalValidate.Struct(p); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating clinical input: %w", err)
	}

	fe := fieldErrs[0]
	return NewValidationError(fe.Namespace(), describeTag(fe), fe.Value())
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}
