// Package domain contains the core clinical entities used to triage painful
// hip-prosthesis revisions: the ALICIA pain semiology profile, laboratory
// markers, the aggregated clinical input and the diagnostic result produced by
// the fusion engine.
//
// Reference: ALICIA pain semiology protocol (Aparición, Localización,
// Intensidad, Carácter, Irradiación, Agravantes/Atenuantes).
package domain

import (
	"fmt"
	"slices"
)

// Onset values of the ALICIA "Aparición" field.
const (
	OnsetSudden  = "sudden"
	OnsetGradual = "gradual"
)

// Pain locations recognised by the engines. Other values are accepted and
// fall through to the default branches.
const (
	LocationDistal   = "distal"
	LocationInguinal = "inguinal"
	LocationDiffuse  = "diffuse"
)

// Pain characters. "boring" and "taladrante" are synonyms of "terebrante"
// produced by some upstream parsers.
const (
	CharacterMechanical   = "mechanical"
	CharacterInflammatory = "inflammatory"
	CharacterNeuropathic  = "neuropathic"
	CharacterTerebrante   = "terebrante"
	CharacterBoring       = "boring"
	CharacterTaladrante   = "taladrante"
	CharacterMixed        = "mixed"
)

// Aggravating and alleviating factor tags.
const (
	FactorNight = "night"
	FactorLoad  = "load"
	FactorRest  = "rest"
)

// PainProfile is the ALICIA semiology of a single case. It is built once by a
// parser or UI and treated as read-only by every engine.
type PainProfile struct {
	Onset       string   `json:"onset" yaml:"onset" validate:"required,oneof=sudden gradual"`
	Location    string   `json:"location" yaml:"location" validate:"required"`
	Intensity   int      `json:"intensity" yaml:"intensity" validate:"min=1,max=10"`
	Character   string   `json:"character" yaml:"character" validate:"required"`
	Irradiation bool     `json:"irradiation" yaml:"irradiation"`
	Aggravating []string `json:"aggravating,omitempty" yaml:"aggravating"`
	Alleviating []string `json:"alleviating,omitempty" yaml:"alleviating"`
}

// NewPainProfile builds a PainProfile that owns copies of the factor slices, so
// later changes to the caller's slices cannot leak into an ongoing analysis.
func NewPainProfile(onset, location string, intensity int, character string, irradiation bool, aggravating, alleviating []string) PainProfile {
	return PainProfile{
		Onset:       onset,
		Location:    location,
		Intensity:   intensity,
		Character:   character,
		Irradiation: irradiation,
		Aggravating: slices.Clone(aggravating),
		Alleviating: slices.Clone(alleviating),
	}
}

// HasAggravating reports whether tag is listed as an aggravating factor.
func (p PainProfile) HasAggravating(tag string) bool {
	return slices.Contains(p.Aggravating, tag)
}

// HasAlleviating reports whether tag is listed as an alleviating factor.
func (p PainProfile) HasAlleviating(tag string) bool {
	return slices.Contains(p.Alleviating, tag)
}

// IsDeepBonePain reports whether the character describes boring, intra-osseous pain.
func (p PainProfile) IsDeepBonePain() bool {
	switch p.Character {
	case CharacterTerebrante, CharacterBoring, CharacterTaladrante:
		return true
	default:
		return false
	}
}

// LabData holds optional inflammatory and general laboratory markers.
// A nil pointer means the marker was not measured.
type LabData struct {
	PCR        *float64 `json:"pcr_level,omitempty" yaml:"pcr" validate:"omitempty,gte=0"`         // mg/L
	VSG        *float64 `json:"vsg_level,omitempty" yaml:"vsg" validate:"omitempty,gte=0"`         // mm/h
	WBC        *float64 `json:"wbc_count,omitempty" yaml:"wbc" validate:"omitempty,gte=0"`         // cells/uL
	Hemoglobin *float64 `json:"hemoglobin,omitempty" yaml:"hemoglobin" validate:"omitempty,gte=0"` // g/dL
	Platelets  *float64 `json:"platelets,omitempty" yaml:"platelets" validate:"omitempty,gte=0"`   // cells/uL
	Creatinine *float64 `json:"creatinine,omitempty" yaml:"creatinine" validate:"omitempty,gte=0"` // mg/dL
}

// Inflammatory marker thresholds.
const (
	PCRUpperNormal = 10.0    // mg/L
	VSGUpperNormal = 20.0    // mm/h
	WBCUpperNormal = 11000.0 // cells/uL
)

// HasInflammatoryMarkers reports whether any measured inflammatory marker is
// above its normal range. Unmeasured markers never count.
func (l *LabData) HasInflammatoryMarkers() bool {
	if l == nil {
		return false
	}
	return above(l.PCR, PCRUpperNormal) || above(l.VSG, VSGUpperNormal) || above(l.WBC, WBCUpperNormal)
}

func above(v *float64, limit float64) bool {
	return v != nil && *v > limit
}

// Float returns a pointer to v. Handy for building LabData literals.
func Float(v float64) *float64 {
	return &v
}

// ClinicalInput aggregates everything the engines consume for one case.
type ClinicalInput struct {
	PainProfile        PainProfile `json:"pain_profile" yaml:"pain_profile"`
	ILDMonths          int         `json:"ild_months" yaml:"ild_months" validate:"gte=0"`
	MobilityAssistance string      `json:"mobility_assistance" yaml:"mobility"`
	LabData            *LabData    `json:"lab_data,omitempty" yaml:"labs"`
}

// ConfidenceInterval is a closed probability interval.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// DiagnosticResult is the single ranked diagnosis returned to collaborators.
// A result is only valid output once CitationSource is non-empty.
type DiagnosticResult struct {
	Diagnosis          string             `json:"diagnosis"`
	Probability        float64            `json:"probability"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	CitationSource     string             `json:"citation_source,omitempty"`
}

// HasCitation reports whether the result carries an evidence citation.
func (r DiagnosticResult) HasCitation() bool {
	return r.CitationSource != ""
}

// String renders the result for logs and terminal output.
func (r DiagnosticResult) String() string {
	return fmt.Sprintf("%s (P=%.2f, CI=[%.2f, %.2f]) [%s]",
		r.Diagnosis, r.Probability, r.ConfidenceInterval.Lower, r.ConfidenceInterval.Upper, r.CitationSource)
}

// DiagnosisLabel is the argmax label of the probabilistic classifier.
type DiagnosisLabel string

const (
	LabelScenarioA DiagnosisLabel = "Scenario_A_Impact"
	LabelScenarioB DiagnosisLabel = "Scenario_B_Loosening"
	LabelInfection DiagnosisLabel = "Infection_PJI"
)

// IsValid reports whether the label is one of the three classifier states.
func (l DiagnosisLabel) IsValid() bool {
	switch l {
	case LabelScenarioA, LabelScenarioB, LabelInfection:
		return true
	default:
		return false
	}
}

// String returns the label text.
func (l DiagnosisLabel) String() string {
	return string(l)
}

// Evidence is the discretised observation set fed to the classifier.
type Evidence struct {
	Location string `json:"Location"`
	PainType string `json:"PainType"`
	ILD      string `json:"ILD"`
	Imaging  string `json:"Imaging"`
	Mobility string `json:"Mobility"`
}

// Map returns the evidence keyed by network variable name.
func (e Evidence) Map() map[string]string {
	return map[string]string{
		"Location": e.Location,
		"PainType": e.PainType,
		"ILD":      e.ILD,
		"Imaging":  e.Imaging,
		"Mobility": e.Mobility,
	}
}

// BayesianInferenceResult is the posterior over the three diagnoses for one query.
type BayesianInferenceResult struct {
	ScenarioAProb       float64        `json:"scenario_a_prob"`
	ScenarioBProb       float64        `json:"scenario_b_prob"`
	InfectionProb       float64        `json:"infection_prob"`
	MostLikelyDiagnosis DiagnosisLabel `json:"most_likely_diagnosis"`
	EvidenceUsed        Evidence       `json:"evidence_used"`
}

// MaxProbability returns the largest of the three posteriors.
func (r BayesianInferenceResult) MaxProbability() float64 {
	return max(r.ScenarioAProb, r.ScenarioBProb, r.InfectionProb)
}
