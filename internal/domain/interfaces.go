package domain

// SemiologyEvaluator derives a rule-based opinion from the ALICIA pain profile
type SemiologyEvaluator interface {
	Process(input ClinicalInput) DiagnosticResult
	CalculateInflammatorySafetyScore(profile PainProfile) float64
}

// DiagnosticClassifier computes posteriors over Scenario A, Scenario B and PJI
// from free-form clinical observations
type DiagnosticClassifier interface {
	InferDiagnosis(location, painCharacter string, ildMonths int, imagingStatus, mobility string) (BayesianInferenceResult, error)
}

// EvidenceGate rejects results that lack a citation source
type EvidenceGate interface {
	ValidateInference(result DiagnosticResult) error
}
