package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sadit-diagnostic-engine/internal/compliance"
	"github.com/sadit-diagnostic-engine/internal/domain"
	"github.com/sadit-diagnostic-engine/internal/physics"
)

// MockSemiologyEvaluator is a mock implementation of domain.SemiologyEvaluator
type MockSemiologyEvaluator struct {
	mock.Mock
}

func (m *MockSemiologyEvaluator) Process(input domain.ClinicalInput) domain.DiagnosticResult {
	args := m.Called(input)
	return args.Get(0).(domain.DiagnosticResult)
}

func (m *MockSemiologyEvaluator) CalculateInflammatorySafetyScore(profile domain.PainProfile) float64 {
	args := m.Called(profile)
	return args.Get(0).(float64)
}

// MockDiagnosticClassifier is a mock implementation of domain.DiagnosticClassifier
type MockDiagnosticClassifier struct {
	mock.Mock
}

func (m *MockDiagnosticClassifier) InferDiagnosis(location, painCharacter string, ildMonths int, imagingStatus, mobility string) (domain.BayesianInferenceResult, error) {
	args := m.Called(location, painCharacter, ildMonths, imagingStatus, mobility)
	return args.Get(0).(domain.BayesianInferenceResult), args.Error(1)
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	logger := newTestLogger()
	return NewOrchestrator(
		logger,
		NewSemiologyEngine(logger),
		newTestBayesianEngine(t),
		compliance.NewChecker(logger, compliance.DefaultConfig()),
	)
}

func distalMechanicalCase() domain.ClinicalInput {
	return domain.ClinicalInput{
		PainProfile: domain.NewPainProfile(domain.OnsetGradual, domain.LocationDistal, 7, domain.CharacterMechanical, false,
			[]string{domain.FactorLoad}, []string{domain.FactorRest}),
		ILDMonths:          1,
		MobilityAssistance: "none",
	}
}

func TestOrchestrator_AnalyzeCase_PhysicsConfirmsScenarioA(t *testing.T) {
	orch := newTestOrchestrator(t)

	report, err := orch.AnalyzeCaseDetailed(distalMechanicalCase(), "Austin-Moore", nil, "Stable")
	require.NoError(t, err)

	assert.Equal(t, physics.CobaltChrome, report.Material)
	assert.InDelta(t, 220.0/18.0, report.MismatchRatio, 1e-12)
	assert.Equal(t, physics.RiskCritical, report.Stress.TipStressRisk)
	assert.Equal(t, domain.LabelScenarioA, report.Bayesian.MostLikelyDiagnosis)
	assert.True(t, report.PhysicsConfirmed)
	assert.False(t, report.ImageChecked)
	assert.Equal(t, msgStiffnessMismatch, report.Semiology.Diagnosis)

	result := report.Result
	assert.Equal(t, "Bayesian Consensus: Scenario_A_Impact | CONFIRMED by Physics: High Stiffness Mismatch causing Proximal Resorption", result.Diagnosis)
	assert.Equal(t, "Bayesian Network (P=0.99) + Wolff's Law (1892) - Bone Remodeling", result.CitationSource)
	assert.InDelta(t, 0.99, result.Probability, 1e-12)
	assert.InDelta(t, 0.94, result.ConfidenceInterval.Lower, 1e-12)
	assert.Equal(t, 1.0, result.ConfidenceInterval.Upper)
	assert.False(t, report.CertaintyFlagged)
}

func TestOrchestrator_AnalyzeCase_TitaniumStemNotBoosted(t *testing.T) {
	orch := newTestOrchestrator(t)

	result, err := orch.AnalyzeCase(distalMechanicalCase(), "Corail", nil, "Stable")
	require.NoError(t, err)

	pa := 0.166212 / (0.166212 + 0.00072 + 0.000864)
	assert.Equal(t, "Bayesian Consensus: Scenario_A_Impact", result.Diagnosis)
	assert.Equal(t, "Bayesian Network (P=0.99)", result.CitationSource)
	assert.InDelta(t, pa, result.Probability, 1e-12)
	assert.InDelta(t, pa-0.05, result.ConfidenceInterval.Lower, 1e-12)
	assert.Equal(t, 1.0, result.ConfidenceInterval.Upper)
}

func TestOrchestrator_AnalyzeCase_InfectionIsCritical(t *testing.T) {
	orch := newTestOrchestrator(t)

	input := domain.ClinicalInput{
		PainProfile: domain.NewPainProfile(domain.OnsetSudden, domain.LocationInguinal, 9, domain.CharacterInflammatory, true,
			[]string{domain.FactorNight}, nil),
		ILDMonths:          12,
		MobilityAssistance: "wheelchair",
		LabData:            &domain.LabData{PCR: domain.Float(85), VSG: domain.Float(60)},
	}

	report, err := orch.AnalyzeCaseDetailed(input, "Austin-Moore", nil, "Stable")
	require.NoError(t, err)

	pi := 0.028224 / (0.000027 + 0.00432 + 0.028224)
	assert.Equal(t, "CRITICAL: Bayesian Consensus: Infection_PJI", report.Result.Diagnosis)
	assert.Equal(t, "Bayesian Network (P=0.87)", report.Result.CitationSource)
	assert.InDelta(t, pi, report.Result.Probability, 1e-12)
	assert.False(t, report.PhysicsConfirmed)
	assert.Equal(t, 1.0, report.SafetyScore)
	assert.Contains(t, report.Semiology.Diagnosis, "WARNING: Inflammatory Pain Profile.")
}

func TestOrchestrator_AnalyzeCase_Idempotent(t *testing.T) {
	orch := newTestOrchestrator(t)
	image := compliance.UniformImage(1024, 1024, 120)

	first, err := orch.AnalyzeCase(distalMechanicalCase(), "Austin-Moore", image, "Stable")
	require.NoError(t, err)
	second, err := orch.AnalyzeCase(distalMechanicalCase(), "Austin-Moore", image, "Stable")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestOrchestrator_AnalyzeCase_SafetyGateAborts(t *testing.T) {
	logger := newTestLogger()
	sem := new(MockSemiologyEvaluator)
	cls := new(MockDiagnosticClassifier)
	orch := NewOrchestrator(logger, sem, cls, compliance.NewChecker(logger, compliance.DefaultConfig()))

	_, err := orch.AnalyzeCase(distalMechanicalCase(), "Austin-Moore", compliance.UniformImage(500, 500, 100), "Stable")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSafetyViolation))
	assert.Equal(t, domain.ErrCodeSafety, domain.ErrorCode(err))

	sem.AssertNotCalled(t, "Process", mock.Anything)
	cls.AssertNotCalled(t, "InferDiagnosis", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_AnalyzeCase_MalformedImageIsValidationError(t *testing.T) {
	logger := newTestLogger()
	sem := new(MockSemiologyEvaluator)
	cls := new(MockDiagnosticClassifier)
	orch := NewOrchestrator(logger, sem, cls, compliance.NewChecker(logger, compliance.DefaultConfig()))

	_, err := orch.AnalyzeCase(distalMechanicalCase(), "Austin-Moore", &compliance.Image{Rows: 2000, Cols: 2000}, "Stable")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))

	sem.AssertNotCalled(t, "Process", mock.Anything)
}

func TestOrchestrator_ClassifierErrorAbortsCase(t *testing.T) {
	logger := newTestLogger()
	sem := new(MockSemiologyEvaluator)
	cls := new(MockDiagnosticClassifier)
	orch := NewOrchestrator(logger, sem, cls, compliance.NewChecker(logger, compliance.DefaultConfig()))

	input := distalMechanicalCase()
	sem.On("Process", input).Return(domain.DiagnosticResult{Diagnosis: "stub", CitationSource: "stub"})
	sem.On("CalculateInflammatorySafetyScore", input.PainProfile).Return(0.0)
	networkErr := errors.New("network rejected evidence")
	cls.On("InferDiagnosis", domain.LocationDistal, domain.CharacterMechanical, 1, "Stable", "none").
		Return(domain.BayesianInferenceResult{}, networkErr)

	report, err := orch.AnalyzeCaseDetailed(input, "Austin-Moore", nil, "Stable")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, networkErr))

	_, err = orch.Triage(input, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, networkErr))
}

func TestOrchestrator_AnalyzeCase_RejectsInvalidInput(t *testing.T) {
	orch := newTestOrchestrator(t)

	input := distalMechanicalCase()
	input.PainProfile.Intensity = 0

	_, err := orch.AnalyzeCase(input, "Austin-Moore", nil, "Stable")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestOrchestrator_AnalyzeCase_UsesInjectedEngines(t *testing.T) {
	logger := newTestLogger()
	sem := new(MockSemiologyEvaluator)
	cls := new(MockDiagnosticClassifier)
	orch := NewOrchestrator(logger, sem, cls, compliance.NewChecker(logger, compliance.DefaultConfig()))

	input := distalMechanicalCase()
	sem.On("Process", input).Return(domain.DiagnosticResult{Diagnosis: "stub", CitationSource: "stub"})
	sem.On("CalculateInflammatorySafetyScore", input.PainProfile).Return(0.0)
	cls.On("InferDiagnosis", domain.LocationDistal, domain.CharacterMechanical, 1, "Loose", "none").Return(domain.BayesianInferenceResult{
		ScenarioAProb:       0.4,
		ScenarioBProb:       0.4,
		InfectionProb:       0.2,
		MostLikelyDiagnosis: domain.LabelScenarioA,
	}, nil)

	report, err := orch.AnalyzeCaseDetailed(input, "Austin-Moore", nil, "Loose")
	require.NoError(t, err)

	assert.Equal(t, "stub", report.Semiology.Diagnosis)
	assert.True(t, report.PhysicsConfirmed)
	assert.InDelta(t, 0.5, report.Result.Probability, 1e-12)
	assert.Equal(t, "Bayesian Network (P=0.40) + Wolff's Law (1892) - Bone Remodeling", report.Result.CitationSource)

	sem.AssertExpectations(t)
	cls.AssertExpectations(t)
}

func TestSynthesize(t *testing.T) {
	critical := physics.AssessStressConditions(12.2, domain.LocationDistal)
	balanced := physics.AssessStressConditions(6.1, domain.LocationDistal)

	tests := []struct {
		name          string
		bayes         domain.BayesianInferenceResult
		stress        physics.StressAssessment
		wantDiagnosis string
		wantProb      float64
		wantConfirmed bool
	}{
		{
			name:          "boost capped at 0.99",
			bayes:         domain.BayesianInferenceResult{ScenarioAProb: 0.95, ScenarioBProb: 0.03, InfectionProb: 0.02, MostLikelyDiagnosis: domain.LabelScenarioA},
			stress:        critical,
			wantDiagnosis: "Bayesian Consensus: Scenario_A_Impact | CONFIRMED by Physics: " + physics.MechanismHighMismatch,
			wantProb:      0.99,
			wantConfirmed: true,
		},
		{
			name:          "no boost for Scenario B",
			bayes:         domain.BayesianInferenceResult{ScenarioAProb: 0.2, ScenarioBProb: 0.7, InfectionProb: 0.1, MostLikelyDiagnosis: domain.LabelScenarioB},
			stress:        critical,
			wantDiagnosis: "Bayesian Consensus: Scenario_B_Loosening",
			wantProb:      0.7,
		},
		{
			name:          "no boost without critical tip stress",
			bayes:         domain.BayesianInferenceResult{ScenarioAProb: 0.6, ScenarioBProb: 0.3, InfectionProb: 0.1, MostLikelyDiagnosis: domain.LabelScenarioA},
			stress:        balanced,
			wantDiagnosis: "Bayesian Consensus: Scenario_A_Impact",
			wantProb:      0.6,
		},
		{
			name:          "infection prefixed",
			bayes:         domain.BayesianInferenceResult{ScenarioAProb: 0.1, ScenarioBProb: 0.3, InfectionProb: 0.6, MostLikelyDiagnosis: domain.LabelInfection},
			stress:        critical,
			wantDiagnosis: "CRITICAL: Bayesian Consensus: Infection_PJI",
			wantProb:      0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, confirmed := synthesize(tt.bayes, tt.stress)

			assert.Equal(t, tt.wantDiagnosis, result.Diagnosis)
			assert.InDelta(t, tt.wantProb, result.Probability, 1e-12)
			assert.Equal(t, tt.wantConfirmed, confirmed)
			assert.True(t, result.HasCitation())
			assert.InDelta(t, tt.wantProb-0.05, result.ConfidenceInterval.Lower, 1e-12)
			assert.LessOrEqual(t, result.ConfidenceInterval.Upper, 1.0)
		})
	}
}

func TestOrchestrator_Triage(t *testing.T) {
	orch := newTestOrchestrator(t)

	septic := domain.ClinicalInput{
		PainProfile: domain.NewPainProfile(domain.OnsetSudden, domain.LocationInguinal, 8, domain.CharacterTerebrante, false,
			[]string{domain.FactorNight}, nil),
		ILDMonths:          12,
		MobilityAssistance: "Independent",
	}

	report, err := orch.Triage(septic, "")
	require.NoError(t, err)
	assert.Equal(t, RecommendInfectiousDiseases, report.Recommendation)
	assert.Equal(t, 1.0, report.SafetyScore)
	assert.Equal(t, report.Semiology.Diagnosis, report.Diagnosis)
	assert.InDelta(t, 0.95, report.Probability, 1e-9)
	assert.Equal(t, StateStable, report.Bayesian.EvidenceUsed.Imaging)

	report, err = orch.Triage(distalMechanicalCase(), "")
	require.NoError(t, err)
	assert.Equal(t, RecommendSurgicalAssessment, report.Recommendation)
	assert.Equal(t, msgStiffnessMismatch, report.Diagnosis)
}

func TestOrchestrator_TriageDefaultsImagingToStable(t *testing.T) {
	logger := newTestLogger()
	sem := new(MockSemiologyEvaluator)
	cls := new(MockDiagnosticClassifier)
	orch := NewOrchestrator(logger, sem, cls, compliance.NewChecker(logger, compliance.DefaultConfig()))

	input := distalMechanicalCase()
	sem.On("Process", input).Return(domain.DiagnosticResult{Diagnosis: "x", Probability: 0.5, CitationSource: "y"})
	sem.On("CalculateInflammatorySafetyScore", input.PainProfile).Return(0.2)
	cls.On("InferDiagnosis", domain.LocationDistal, domain.CharacterMechanical, 1, "Stable", "none").
		Return(domain.BayesianInferenceResult{MostLikelyDiagnosis: domain.LabelScenarioA}, nil)

	_, err := orch.Triage(input, "")
	require.NoError(t, err)
	cls.AssertExpectations(t)

	sem2 := new(MockSemiologyEvaluator)
	orch = NewOrchestrator(logger, sem2, cls, compliance.NewChecker(logger, compliance.DefaultConfig()))
	sem2.On("Process", input).Return(domain.DiagnosticResult{Diagnosis: "uncited"})

	_, err = orch.Triage(input, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingEvidence))
}
