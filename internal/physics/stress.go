package physics

import "github.com/sadit-diagnostic-engine/internal/domain"

// RiskLevel grades stress shielding and stem-tip stress
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// ShieldingRatioThreshold is the implant/bone stiffness ratio above which
// proximal stress shielding is expected.
const ShieldingRatioThreshold = 8.0

const (
	MechanismBalanced     = "Balanced Load Transfer"
	MechanismHighMismatch = "High Stiffness Mismatch causing Proximal Resorption"
	PedestalEffect        = "Load bypasses proximal bone and concentrates at stem tip (Pedestal Effect)."
	WolffsLawCitation     = "Wolff's Law (1892) - Bone Remodeling"
)

// StressAssessment is the load-transfer opinion for one implant/pain pairing
type StressAssessment struct {
	StressShieldingRisk RiskLevel `json:"stress_shielding_risk"`
	TipStressRisk       RiskLevel `json:"tip_stress_risk"`
	Mechanism           string    `json:"mechanism"`
	Description         string    `json:"description,omitempty"`
	Citation            string    `json:"citation"`
}

// IsTipCritical reports whether stem-tip stress was graded Critical
func (a StressAssessment) IsTipCritical() bool {
	return a.TipStressRisk == RiskCritical
}

// AssessStressConditions correlates stiffness mismatch with pain location
// using Wolff's Law. Distal pain with a stiff stem marks the tip as Critical.
func AssessStressConditions(mismatchRatio float64, painLocation string) StressAssessment {
	result := StressAssessment{
		StressShieldingRisk: RiskLow,
		TipStressRisk:       RiskLow,
		Mechanism:           MechanismBalanced,
		Citation:            WolffsLawCitation,
	}

	if mismatchRatio > ShieldingRatioThreshold {
		result.StressShieldingRisk = RiskHigh
		result.Mechanism = MechanismHighMismatch

		if painLocation == domain.LocationDistal {
			result.TipStressRisk = RiskCritical
			result.Description = PedestalEffect
		}
	}

	return result
}
