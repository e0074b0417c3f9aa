package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sadit-diagnostic-engine/internal/compliance"
	"github.com/sadit-diagnostic-engine/internal/domain"
	"github.com/sadit-diagnostic-engine/internal/physics"
)

const (
	physicsBoost        = 0.10
	maxFusedConfidence  = 0.99
	intervalHalfWidth   = 0.05
	criticalPrefix      = "CRITICAL: "
	defaultImagingState = "Stable"
)

// Triage recommendations
const (
	RecommendInfectiousDiseases = "Refer to Infectious Diseases"
	RecommendSurgicalAssessment = "Standard Surgical Assessment"
)

// Orchestrator triangulates semiology, the Bayesian classifier and implant
// biomechanics into one cited diagnosis. It holds no per-case state.
type Orchestrator struct {
	logger     *logrus.Logger
	semiology  domain.SemiologyEvaluator
	classifier domain.DiagnosticClassifier
	checker    *compliance.Checker
}

// CaseReport is the fused diagnosis together with every intermediate opinion
type CaseReport struct {
	ImplantType      string                         `json:"implant_type"`
	Material         string                         `json:"material"`
	MismatchRatio    float64                        `json:"mismatch_ratio"`
	Stress           physics.StressAssessment       `json:"stress"`
	Semiology        domain.DiagnosticResult        `json:"semiology"`
	SafetyScore      float64                        `json:"safety_score"`
	Bayesian         domain.BayesianInferenceResult `json:"bayesian"`
	ImageChecked     bool                           `json:"image_checked"`
	PhysicsConfirmed bool                           `json:"physics_confirmed"`
	CertaintyFlagged bool                           `json:"certainty_flagged"`
	Result           domain.DiagnosticResult        `json:"result"`
}

// TriageReport is the quick clinical screening used before imaging is available
type TriageReport struct {
	Diagnosis      string                         `json:"diagnosis"`
	Probability    float64                        `json:"probability"`
	SafetyScore    float64                        `json:"safety_score"`
	Recommendation string                         `json:"recommendation"`
	Semiology      domain.DiagnosticResult        `json:"semiology"`
	Bayesian       domain.BayesianInferenceResult `json:"bayesian"`
}

// NewOrchestrator creates a new orchestrator from its engines
func NewOrchestrator(
	logger *logrus.Logger,
	semiology domain.SemiologyEvaluator,
	classifier domain.DiagnosticClassifier,
	checker *compliance.Checker,
) *Orchestrator {
	return &Orchestrator{
		logger:     logger,
		semiology:  semiology,
		classifier: classifier,
		checker:    checker,
	}
}

// AnalyzeCase runs the full fusion pipeline and returns the validated diagnosis.
// image may be nil; when supplied it must pass the safety gate.
func (o *Orchestrator) AnalyzeCase(input domain.ClinicalInput, implantType string, image *compliance.Image, imagingStatus string) (domain.DiagnosticResult, error) {
	report, err := o.AnalyzeCaseDetailed(input, implantType, image, imagingStatus)
	if err != nil {
		return domain.DiagnosticResult{}, err
	}
	return report.Result, nil
}

// AnalyzeCaseDetailed runs the fusion pipeline and keeps every intermediate opinion
func (o *Orchestrator) AnalyzeCaseDetailed(input domain.ClinicalInput, implantType string, image *compliance.Image, imagingStatus string) (*CaseReport, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clinical input: %w", err)
	}

	profile := input.PainProfile
	o.logger.WithFields(logrus.Fields{
		"implant":   implantType,
		"location":  profile.Location,
		"character": profile.Character,
		"ild":       input.ILDMonths,
		"has_image": image != nil,
	}).Info("Starting case analysis")

	report := &CaseReport{ImplantType: implantType}

	// Step 1: Image safety gate
	if image != nil {
		if err := o.checker.CheckImageSafety(image); err != nil {
			return nil, fmt.Errorf("case aborted by image safety gate: %w", err)
		}
		report.ImageChecked = true
	}

	// Step 2: Biomechanics
	report.Material = physics.MaterialForImplant(implantType)
	ratio, err := physics.CalculateStiffnessMismatch(report.Material, physics.CorticalBone)
	if err != nil {
		return nil, fmt.Errorf("failed to assess implant biomechanics: %w", err)
	}
	report.MismatchRatio = ratio
	report.Stress = physics.AssessStressConditions(ratio, profile.Location)

	// Step 3: Semiology opinion
	report.Semiology = o.semiology.Process(input)
	report.SafetyScore = o.semiology.CalculateInflammatorySafetyScore(profile)

	// Step 4: Bayesian opinion
	bayes, err := o.classifier.InferDiagnosis(profile.Location, profile.Character, input.ILDMonths, imagingStatus, input.MobilityAssistance)
	if err != nil {
		return nil, fmt.Errorf("failed to infer diagnosis: %w", err)
	}
	report.Bayesian = bayes

	// Step 5-7: Synthesis
	result, confirmed := synthesize(report.Bayesian, report.Stress)
	report.PhysicsConfirmed = confirmed

	// Step 8: Evidence gate
	if err := o.checker.ValidateInference(result); err != nil {
		o.logger.WithError(err).Error("Synthesized diagnosis failed evidence gate")
		return nil, fmt.Errorf("internal synthesis error: %w", err)
	}
	report.CertaintyFlagged = o.checker.IsOverCertain(result.Probability)
	report.Result = result

	o.logger.WithFields(logrus.Fields{
		"diagnosis":         result.Diagnosis,
		"probability":       result.Probability,
		"physics_confirmed": confirmed,
		"semiology":         report.Semiology.Diagnosis,
	}).Info("Case analysis completed")

	return report, nil
}

// synthesize builds the fused diagnosis from the Bayesian posterior, boosting
// Scenario A when biomechanics independently predicts critical tip stress.
func synthesize(bayes domain.BayesianInferenceResult, stress physics.StressAssessment) (domain.DiagnosticResult, bool) {
	label := bayes.MostLikelyDiagnosis
	confidence := bayes.MaxProbability()

	diagnosis := fmt.Sprintf("Bayesian Consensus: %s", label)
	citation := fmt.Sprintf("Bayesian Network (P=%.2f)", confidence)

	confirmed := stress.IsTipCritical() && label == domain.LabelScenarioA
	if confirmed {
		diagnosis += fmt.Sprintf(" | CONFIRMED by Physics: %s", stress.Mechanism)
		citation += fmt.Sprintf(" + %s", stress.Citation)
		confidence = math.Min(confidence+physicsBoost, maxFusedConfidence)
	}

	if label == domain.LabelInfection {
		diagnosis = criticalPrefix + diagnosis
	}

	return domain.DiagnosticResult{
		Diagnosis:   diagnosis,
		Probability: confidence,
		ConfidenceInterval: domain.ConfidenceInterval{
			Lower: confidence - intervalHalfWidth,
			Upper: math.Min(1.0, confidence+intervalHalfWidth),
		},
		CitationSource: citation,
	}, confirmed
}

// Triage screens a case from semiology alone, with the classifier run on a
// stable imaging assumption when imagingStatus is empty. Semiology alerts take
// priority over the Bayesian opinion.
func (o *Orchestrator) Triage(input domain.ClinicalInput, imagingStatus string) (*TriageReport, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clinical input: %w", err)
	}
	if imagingStatus == "" {
		imagingStatus = defaultImagingState
	}

	profile := input.PainProfile
	sem := o.semiology.Process(input)
	if err := o.checker.ValidateInference(sem); err != nil {
		return nil, fmt.Errorf("semiology produced an uncited diagnosis: %w", err)
	}

	score := o.semiology.CalculateInflammatorySafetyScore(profile)
	bayes, err := o.classifier.InferDiagnosis(profile.Location, profile.Character, input.ILDMonths, imagingStatus, input.MobilityAssistance)
	if err != nil {
		return nil, fmt.Errorf("failed to infer diagnosis: %w", err)
	}

	recommendation := RecommendSurgicalAssessment
	if score > SepticRiskThreshold {
		recommendation = RecommendInfectiousDiseases
	}

	o.logger.WithFields(logrus.Fields{
		"diagnosis":      sem.Diagnosis,
		"safety_score":   score,
		"recommendation": recommendation,
	}).Info("Triage completed")

	return &TriageReport{
		Diagnosis:      sem.Diagnosis,
		Probability:    sem.Probability,
		SafetyScore:    score,
		Recommendation: recommendation,
		Semiology:      sem,
		Bayesian:       bayes,
	}, nil
}
