package service

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// Network variables and their states
const (
	VarLocation = "Location"
	VarPainType = "PainType"
	VarILD      = "ILD"
	VarImaging  = "Imaging"
	VarMobility = "Mobility"

	StateDistal       = "Distal"
	StateInguinal     = "Inguinal"
	StateMechanical   = "Mechanical"
	StateInflammatory = "Inflammatory"
	StateShort        = "Short"
	StateLong         = "Long"
	StateStable       = "Stable"
	StateLoose        = "Loose"
	StateIndependent  = "Independent"
	StateAssisted     = "Assisted"
)

// ShortILDMonths is the exclusive upper bound of a Short ILD
const ShortILDMonths = 3

// diagnosisStates orders the hidden variable; every factor column follows it
var diagnosisStates = []domain.DiagnosisLabel{
	domain.LabelScenarioA,
	domain.LabelScenarioB,
	domain.LabelInfection,
}

var diagnosisPrior = []float64{0.3, 0.5, 0.2}

// ConditionalTable is P(child | Diagnosis) for one binary observed variable.
// Table[s][d] is the probability of state s given diagnosisStates[d].
type ConditionalTable struct {
	Variable string
	States   []string
	Table    [][]float64
}

func binaryTable(variable, first, second string, firstGiven [3]float64) ConditionalTable {
	complement := make([]float64, len(firstGiven))
	for i, p := range firstGiven {
		complement[i] = 1 - p
	}
	return ConditionalTable{
		Variable: variable,
		States:   []string{first, second},
		Table:    [][]float64{firstGiven[:], complement},
	}
}

// diagnosticTables returns the hand-authored CPDs. Columns are [A, B, Infection].
func diagnosticTables() []ConditionalTable {
	return []ConditionalTable{
		binaryTable(VarLocation, StateDistal, StateInguinal, [3]float64{0.9, 0.2, 0.3}),
		binaryTable(VarPainType, StateMechanical, StateInflammatory, [3]float64{0.95, 0.90, 0.20}),
		binaryTable(VarILD, StateShort, StateLong, [3]float64{0.8, 0.1, 0.4}),
		binaryTable(VarImaging, StateStable, StateLoose, [3]float64{0.9, 0.2, 0.6}),
		binaryTable(VarMobility, StateIndependent, StateAssisted, [3]float64{0.9, 0.4, 0.3}),
	}
}

const cpdTolerance = 1e-9

// BayesianEngine is a fixed naive-Bayes network over the hidden Diagnosis
// variable. Tables are built once and never mutated, so one engine may serve
// concurrent queries.
type BayesianEngine struct {
	logger *logrus.Logger
	prior  []float64
	tables []ConditionalTable
}

// NewBayesianEngine builds and validates the diagnostic network
func NewBayesianEngine(logger *logrus.Logger) (*BayesianEngine, error) {
	engine := &BayesianEngine{
		logger: logger,
		prior:  slices.Clone(diagnosisPrior),
		tables: diagnosticTables(),
	}

	if err := engine.checkModel(); err != nil {
		return nil, fmt.Errorf("invalid diagnostic network: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"states":    len(diagnosisStates),
		"variables": len(engine.tables),
	}).Debug("Diagnostic network initialized")

	return engine, nil
}

func (e *BayesianEngine) checkModel() error {
	if len(e.prior) != len(diagnosisStates) {
		return fmt.Errorf("prior has %d entries, want %d", len(e.prior), len(diagnosisStates))
	}
	if s := floats.Sum(e.prior); math.Abs(s-1) > cpdTolerance {
		return fmt.Errorf("prior sums to %v", s)
	}

	for _, t := range e.tables {
		if len(t.Table) != len(t.States) {
			return fmt.Errorf("%s: %d rows for %d states", t.Variable, len(t.Table), len(t.States))
		}
		column := make([]float64, len(diagnosisStates))
		for _, row := range t.Table {
			if len(row) != len(diagnosisStates) {
				return fmt.Errorf("%s: row has %d columns, want %d", t.Variable, len(row), len(diagnosisStates))
			}
			floats.Add(column, row)
		}
		for d, s := range column {
			if math.Abs(s-1) > cpdTolerance {
				return fmt.Errorf("%s: column %s sums to %v", t.Variable, diagnosisStates[d], s)
			}
		}
	}

	return nil
}

// Prior returns P(Diagnosis = label)
func (e *BayesianEngine) Prior(label domain.DiagnosisLabel) (float64, error) {
	i := slices.Index(diagnosisStates, label)
	if i < 0 {
		return 0, domain.NewValidationError("diagnosis", "unknown diagnosis state", string(label))
	}
	return e.prior[i], nil
}

// Tables returns a copy of the conditional tables
func (e *BayesianEngine) Tables() []ConditionalTable {
	out := make([]ConditionalTable, len(e.tables))
	for i, t := range e.tables {
		rows := make([][]float64, len(t.Table))
		for j, r := range t.Table {
			rows[j] = slices.Clone(r)
		}
		out[i] = ConditionalTable{Variable: t.Variable, States: slices.Clone(t.States), Table: rows}
	}
	return out
}

// DiscretizeEvidence maps free-form clinical inputs onto network states
func DiscretizeEvidence(location, painCharacter string, ildMonths int, imagingStatus, mobility string) domain.Evidence {
	ev := domain.Evidence{
		Location: StateInguinal,
		PainType: StateMechanical,
		ILD:      StateLong,
		Imaging:  StateStable,
		Mobility: StateIndependent,
	}

	if strings.Contains(strings.ToLower(location), "distal") {
		ev.Location = StateDistal
	}

	pain := strings.ToLower(painCharacter)
	if strings.Contains(pain, "inflammatory") || strings.Contains(pain, "night") || strings.Contains(pain, "terebrante") {
		ev.PainType = StateInflammatory
	}

	if ildMonths < ShortILDMonths {
		ev.ILD = StateShort
	}

	imaging := strings.ToLower(imagingStatus)
	if strings.Contains(imaging, "loose") || strings.Contains(imaging, "radiolucent") {
		ev.Imaging = StateLoose
	}

	switch strings.ToLower(mobility) {
	case "cane", "walker", "wheelchair":
		ev.Mobility = StateAssisted
	}

	return ev
}

// InferDiagnosis discretizes the inputs and returns the posterior over diagnoses
func (e *BayesianEngine) InferDiagnosis(location, painCharacter string, ildMonths int, imagingStatus, mobility string) (domain.BayesianInferenceResult, error) {
	ev := DiscretizeEvidence(location, painCharacter, ildMonths, imagingStatus, mobility)

	result, err := e.Query(ev)
	if err != nil {
		e.logger.WithError(err).Error("Discretized evidence rejected by network")
		return domain.BayesianInferenceResult{}, fmt.Errorf("querying diagnostic network: %w", err)
	}
	return result, nil
}

// Query computes P(Diagnosis | evidence) by variable elimination. An empty
// evidence field leaves that variable unobserved and sums it out.
func (e *BayesianEngine) Query(ev domain.Evidence) (domain.BayesianInferenceResult, error) {
	observed := ev.Map()
	phi := slices.Clone(e.prior)

	for _, t := range e.tables {
		factor, err := t.reduce(observed[t.Variable])
		if err != nil {
			return domain.BayesianInferenceResult{}, err
		}
		floats.Mul(phi, factor)
	}

	z := floats.Sum(phi)
	if z <= 0 {
		return domain.BayesianInferenceResult{}, fmt.Errorf("evidence has zero likelihood under the network")
	}
	floats.Scale(1/z, phi)

	result := domain.BayesianInferenceResult{
		ScenarioAProb:       phi[0],
		ScenarioBProb:       phi[1],
		InfectionProb:       phi[2],
		MostLikelyDiagnosis: selectLabel(phi[0], phi[1], phi[2]),
		EvidenceUsed:        ev,
	}

	e.logger.WithFields(logrus.Fields{
		"evidence":    observed,
		"scenario_a":  result.ScenarioAProb,
		"scenario_b":  result.ScenarioBProb,
		"infection":   result.InfectionProb,
		"most_likely": result.MostLikelyDiagnosis,
	}).Debug("Completed Bayesian inference")

	return result, nil
}

// reduce returns the factor over Diagnosis left after fixing this variable to
// state, or after summing it out when state is empty.
func (t ConditionalTable) reduce(state string) ([]float64, error) {
	if state == "" {
		out := make([]float64, len(diagnosisStates))
		for _, row := range t.Table {
			floats.Add(out, row)
		}
		return out, nil
	}

	i := slices.Index(t.States, state)
	if i < 0 {
		return nil, domain.NewValidationError(t.Variable, fmt.Sprintf("must be one of %v", t.States), state)
	}
	return slices.Clone(t.Table[i]), nil
}

// selectLabel defaults to Scenario A; B or Infection win only by strict dominance.
func selectLabel(pa, pb, pi float64) domain.DiagnosisLabel {
	label := domain.LabelScenarioA
	if pb > pa && pb > pi {
		label = domain.LabelScenarioB
	}
	if pi > pa && pi > pb {
		label = domain.LabelInfection
	}
	return label
}
