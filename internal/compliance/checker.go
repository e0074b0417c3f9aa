// Package compliance is the gatekeeper of the diagnostic pipeline. It enforces
// ISO 14971 risk management on input imaging and evidence-based medicine on
// output diagnoses: no image below the quality floor is analysed and no
// diagnosis leaves the engine without a citation.
package compliance

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// DefaultConfig returns the regulatory thresholds used when nothing is configured.
func DefaultConfig() domain.ComplianceConfig {
	return domain.ComplianceConfig{
		MinRows:        1024,
		MinCols:        1024,
		MinSNRdB:       15.0,
		NoiseFloor:     1e-5,
		CertaintyLower: 0.01,
		CertaintyUpper: 0.99,
	}
}

// Checker runs the image safety gate and the evidence gate. It holds only
// configuration and is safe for concurrent use.
type Checker struct {
	logger *logrus.Logger
	cfg    domain.ComplianceConfig
}

var _ domain.EvidenceGate = (*Checker)(nil)

// NewChecker creates a compliance checker with the given thresholds
func NewChecker(logger *logrus.Logger, cfg domain.ComplianceConfig) *Checker {
	return &Checker{
		logger: logger,
		cfg:    cfg,
	}
}

// Config returns the thresholds in force
func (c *Checker) Config() domain.ComplianceConfig {
	return c.cfg
}

// CheckImageSafety verifies image quality before it is used in a case.
// It fails with *domain.ValidationError when the declared shape does not match
// the pixels, and with *domain.SafetyError on insufficient resolution or SNR.
func (c *Checker) CheckImageSafety(image *Image) error {
	if image == nil {
		return &domain.SafetyError{Check: "resolution", Message: "no image supplied"}
	}
	if err := image.Validate(); err != nil {
		c.logger.WithError(err).Warn("Image rejected: malformed pixel array")
		return err
	}

	rows, cols := image.Shape()
	if rows < c.cfg.MinRows || cols < c.cfg.MinCols {
		c.logger.WithFields(logrus.Fields{
			"rows":     rows,
			"cols":     cols,
			"min_rows": c.cfg.MinRows,
			"min_cols": c.cfg.MinCols,
		}).Warn("Image rejected: resolution below safety threshold")

		return &domain.SafetyError{
			Check: "resolution",
			Message: fmt.Sprintf("Image resolution (%d, %d) below safety threshold (%d, %d).",
				rows, cols, c.cfg.MinRows, c.cfg.MinCols),
			Measured:  float64(min(rows, cols)),
			Threshold: float64(min(c.cfg.MinRows, c.cfg.MinCols)),
		}
	}

	snr, err := c.SignalToNoise(image)
	if err != nil {
		return fmt.Errorf("computing image SNR: %w", err)
	}

	// NaN and -Inf (zero or negative mean signal) never pass.
	if math.IsNaN(snr) || snr < c.cfg.MinSNRdB {
		c.logger.WithFields(logrus.Fields{
			"snr_db":     snr,
			"min_snr_db": c.cfg.MinSNRdB,
		}).Warn("Image rejected: SNR below safety threshold")

		return &domain.SafetyError{
			Check:     "snr",
			Message:   fmt.Sprintf("Image SNR %.2fdB is too low. Risk of artifact misinterpretation.", snr),
			Measured:  snr,
			Threshold: c.cfg.MinSNRdB,
		}
	}

	c.logger.WithFields(logrus.Fields{
		"rows":   rows,
		"cols":   cols,
		"snr_db": snr,
	}).Debug("Image passed safety gate")

	return nil
}

// SignalToNoise returns 20*log10(mean/std) in decibels, with std floored at
// the configured noise floor so uniform images do not divide by zero.
func (c *Checker) SignalToNoise(image *Image) (float64, error) {
	signal, err := stats.Mean(image.Pixels)
	if err != nil {
		return 0, err
	}
	noise, err := stats.StandardDeviation(image.Pixels)
	if err != nil {
		return 0, err
	}
	noise = math.Max(noise, c.cfg.NoiseFloor)

	return 20 * math.Log10(signal/noise), nil
}

// ValidateInference ensures a diagnosis carries a citation. Probabilities
// outside the certainty band are flagged in the log but never rejected.
func (c *Checker) ValidateInference(result domain.DiagnosticResult) error {
	if !result.HasCitation() {
		c.logger.WithField("diagnosis", result.Diagnosis).Error("Diagnosis rejected: missing citation source")
		return &domain.EvidenceError{Diagnosis: result.Diagnosis}
	}

	if c.IsOverCertain(result.Probability) {
		c.logger.WithFields(logrus.Fields{
			"diagnosis":   result.Diagnosis,
			"probability": result.Probability,
		}).Warn("Diagnosis probability outside certainty band; clinical certainty is never absolute")
	}

	return nil
}

// IsOverCertain reports whether p falls outside the (lower, upper) certainty band.
func (c *Checker) IsOverCertain(p float64) bool {
	return p > c.cfg.CertaintyUpper || p < c.cfg.CertaintyLower
}
