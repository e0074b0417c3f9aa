package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// Safety score weights of the ALICIA inflammatory heuristic
const (
	inflammatoryCharacterWeight = 0.6
	nightPainWeight             = 0.3
	noRestReliefWeight          = 0.2

	// SepticRiskThreshold is the score above which a profile is treated as septic risk
	SepticRiskThreshold = 0.4
)

const (
	msgInflammatoryWarning = "WARNING: Inflammatory Pain Profile."
	msgDeepBonePain        = "CRITICAL: Deep Bone Pain (Osteomyelitic Origin). Suspected Septic Process."
	msgAsepticLoosening    = "Probable Aseptic Loosening (Scenario B)"
	msgStiffnessMismatch   = "Potential Material Stiffness Mismatch (Scenario A)"
	msgUndetermined        = "Undetermined Mechanical Etiology. Correlate with Imaging."

	citeALICIA       = "ALICIA: Inflammatory/Terebrante markers require ruling out PJI."
	citeTerebrante   = "Semiology: 'Terebrante' character indicates intra-osseous pressure/Infection."
	citeDistalWolff  = "Distal Pain + Mechanical Pattern (Wolff's Law)"
	citeInconclusive = "Clinical features inconclusive."
)

// SemiologyEngine turns an ALICIA pain profile into a rule-based diagnosis.
// Rules are evaluated in priority order and the first match wins.
type SemiologyEngine struct {
	logger *logrus.Logger
	rules  []*SemiologyRule
}

// SemiologyRule is one entry of the priority chain
type SemiologyRule struct {
	Priority int
	Code     string
	Name     string
	Matches  func(f semiologyFindings) bool
	Build    func(f semiologyFindings) domain.DiagnosticResult
}

// semiologyFindings are the facts derived once per case and shared by every rule
type semiologyFindings struct {
	input          domain.ClinicalInput
	safetyScore    float64
	septicRisk     bool
	infectionRuled bool
}

// RuleTrace records how one rule behaved for a case
type RuleTrace struct {
	Priority int    `json:"priority"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Matched  bool   `json:"matched"`
	Fired    bool   `json:"fired"`
}

// SemiologyEvaluation is the full audit of one semiology run
type SemiologyEvaluation struct {
	SafetyScore       float64                 `json:"safety_score"`
	SepticRisk        bool                    `json:"septic_risk"`
	InfectionRuledOut bool                    `json:"infection_ruled_out"`
	Result            domain.DiagnosticResult `json:"result"`
	Trace             []RuleTrace             `json:"trace"`
}

// NewSemiologyEngine creates a new semiology engine
func NewSemiologyEngine(logger *logrus.Logger) *SemiologyEngine {
	engine := &SemiologyEngine{
		logger: logger,
	}

	engine.initializeRules()

	return engine
}

// Rules returns the priority chain in evaluation order
func (e *SemiologyEngine) Rules() []*SemiologyRule {
	return e.rules
}

// CalculateInflammatorySafetyScore returns the 0-1 inflammatory risk score of a profile
func (e *SemiologyEngine) CalculateInflammatorySafetyScore(profile domain.PainProfile) float64 {
	score := 0.0

	switch profile.Character {
	case domain.CharacterInflammatory, domain.CharacterTerebrante, domain.CharacterBoring:
		score += inflammatoryCharacterWeight
	}

	if profile.HasAggravating(domain.FactorNight) {
		score += nightPainWeight
	}

	if !profile.HasAlleviating(domain.FactorRest) {
		score += noRestReliefWeight
	}

	return math.Min(score, 1.0)
}

// Process returns the highest priority diagnosis for the case
func (e *SemiologyEngine) Process(input domain.ClinicalInput) domain.DiagnosticResult {
	return e.EvaluateRules(input).Result
}

// EvaluateRules runs the whole priority chain and reports which rules matched
// and which one produced the diagnosis. Rules after the fired one are still
// traced but cannot change the result.
func (e *SemiologyEngine) EvaluateRules(input domain.ClinicalInput) SemiologyEvaluation {
	findings := e.derive(input)

	eval := SemiologyEvaluation{
		SafetyScore:       findings.safetyScore,
		SepticRisk:        findings.septicRisk,
		InfectionRuledOut: findings.infectionRuled,
		Trace:             make([]RuleTrace, 0, len(e.rules)),
	}

	fired := false
	for _, rule := range e.rules {
		matched := rule.Matches(findings)
		trace := RuleTrace{
			Priority: rule.Priority,
			Code:     rule.Code,
			Name:     rule.Name,
			Matched:  matched,
		}
		if matched && !fired {
			trace.Fired = true
			eval.Result = rule.Build(findings)
			fired = true
		}
		eval.Trace = append(eval.Trace, trace)
	}

	e.logger.WithFields(logrus.Fields{
		"location":            input.PainProfile.Location,
		"character":           input.PainProfile.Character,
		"safety_score":        findings.safetyScore,
		"septic_risk":         findings.septicRisk,
		"infection_ruled_out": findings.infectionRuled,
		"diagnosis":           eval.Result.Diagnosis,
	}).Debug("Completed semiology evaluation")

	return eval
}

func (e *SemiologyEngine) derive(input domain.ClinicalInput) semiologyFindings {
	score := e.CalculateInflammatorySafetyScore(input.PainProfile)
	return semiologyFindings{
		input:          input,
		safetyScore:    score,
		septicRisk:     score > SepticRiskThreshold,
		infectionRuled: infectionRuledOut(input.LabData),
	}
}

// infectionRuledOut requires both PCR and VSG to be measured and normal.
func infectionRuledOut(labs *domain.LabData) bool {
	if labs == nil || labs.PCR == nil || labs.VSG == nil {
		return false
	}
	return *labs.PCR < domain.PCRUpperNormal && *labs.VSG < domain.VSGUpperNormal
}

// initializeRules builds the priority chain. Order is significant.
func (e *SemiologyEngine) initializeRules() {
	e.addRule("SEPTIC", "Septic risk not ruled out by labs",
		func(f semiologyFindings) bool {
			return f.septicRisk && !f.infectionRuled
		},
		func(f semiologyFindings) domain.DiagnosticResult {
			msg := msgInflammatoryWarning
			if f.input.PainProfile.IsDeepBonePain() {
				msg = msgDeepBonePain
			}

			prob := 0.85
			switch f.input.PainProfile.Character {
			case domain.CharacterTerebrante, domain.CharacterTaladrante:
				prob += 0.10
			}

			return domain.DiagnosticResult{
				Diagnosis:          fmt.Sprintf("%s (ISS: %.2f)", msg, f.safetyScore),
				Probability:        prob,
				ConfidenceInterval: domain.ConfidenceInterval{Lower: 0.80, Upper: 0.95},
				CitationSource:     citeALICIA,
			}
		})

	// Fires for deep bone pain even when labs ruled infection out in the
	// septic rule above. Kept as is pending clinical review.
	e.addRule("DEEP_BONE", "Deep bone (terebrante) pain",
		func(f semiologyFindings) bool {
			return f.input.PainProfile.IsDeepBonePain()
		},
		func(semiologyFindings) domain.DiagnosticResult {
			return domain.DiagnosticResult{
				Diagnosis:          msgDeepBonePain,
				Probability:        0.92,
				ConfidenceInterval: domain.ConfidenceInterval{Lower: 0.88, Upper: 0.95},
				CitationSource:     citeTerebrante,
			}
		})

	e.addRule("LOOSENING", "Inguinal mechanical pain",
		func(f semiologyFindings) bool {
			p := f.input.PainProfile
			return p.Location == domain.LocationInguinal && p.Character == domain.CharacterMechanical
		},
		func(f semiologyFindings) domain.DiagnosticResult {
			return domain.DiagnosticResult{
				Diagnosis:          msgAsepticLoosening,
				Probability:        0.88,
				ConfidenceInterval: domain.ConfidenceInterval{Lower: 0.85, Upper: 0.92},
				CitationSource:     fmt.Sprintf("Inguinal Mechanical Pain + ILD %dmo", f.input.ILDMonths),
			}
		})

	e.addRule("MISMATCH", "Distal mechanical pain",
		func(f semiologyFindings) bool {
			p := f.input.PainProfile
			return p.Location == domain.LocationDistal && p.Character == domain.CharacterMechanical
		},
		func(semiologyFindings) domain.DiagnosticResult {
			return domain.DiagnosticResult{
				Diagnosis:          msgStiffnessMismatch,
				Probability:        0.85,
				ConfidenceInterval: domain.ConfidenceInterval{Lower: 0.80, Upper: 0.90},
				CitationSource:     citeDistalWolff,
			}
		})

	e.addRule("FALLBACK", "Undetermined etiology",
		func(semiologyFindings) bool { return true },
		func(semiologyFindings) domain.DiagnosticResult {
			return domain.DiagnosticResult{
				Diagnosis:          msgUndetermined,
				Probability:        0.50,
				ConfidenceInterval: domain.ConfidenceInterval{Lower: 0.40, Upper: 0.60},
				CitationSource:     citeInconclusive,
			}
		})
}

// addRule appends a rule at the next priority
func (e *SemiologyEngine) addRule(code, name string, matches func(semiologyFindings) bool, build func(semiologyFindings) domain.DiagnosticResult) {
	e.rules = append(e.rules, &SemiologyRule{
		Priority: len(e.rules) + 1,
		Code:     code,
		Name:     name,
		Matches:  matches,
		Build:    build,
	})
}
