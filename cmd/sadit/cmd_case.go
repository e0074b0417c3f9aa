package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadit-diagnostic-engine/internal/casefile"
	"github.com/sadit-diagnostic-engine/internal/domain"
	"github.com/sadit-diagnostic-engine/internal/ingest"
	"github.com/sadit-diagnostic-engine/internal/physics"
	"github.com/sadit-diagnostic-engine/internal/service"
)

func (a *app) analyzeCmd() *cobra.Command {
	var implant, imaging string

	cmd := &cobra.Command{
		Use:   "analyze <case.yaml>",
		Short: "Run the full fusion pipeline on a case file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := casefile.Load(args[0])
			if err != nil {
				return err
			}
			overrideCase(c, implant, imaging)

			report, err := a.analyze(c)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				return writeCaseReport(w, c.CaseID, report)
			})
		},
	}

	cmd.Flags().StringVar(&implant, "implant", "", "override the implant type of the case")
	cmd.Flags().StringVar(&imaging, "imaging", "", "override the imaging status of the case")
	return cmd
}

func overrideCase(c *casefile.Case, implant, imaging string) {
	if implant != "" {
		c.Implant = implant
	}
	if imaging != "" {
		c.ImagingStatus = imaging
	}
}

// analyze loads the case image and runs the detailed pipeline.
func (a *app) analyze(c *casefile.Case) (*service.CaseReport, error) {
	image, err := c.LoadImage()
	if err != nil {
		return nil, err
	}
	_, orch, err := a.engines()
	if err != nil {
		return nil, err
	}
	return orch.AnalyzeCaseDetailed(c.Input(), c.Implant, image, c.ImagingStatus)
}

func writeCaseReport(w io.Writer, caseID string, r *service.CaseReport) error {
	var b strings.Builder

	if caseID != "" {
		fmt.Fprintf(&b, "Case:        %s\n", caseID)
	}
	fmt.Fprintf(&b, "Implant:     %s (%s, mismatch %.1fx)\n", r.ImplantType, r.Material, r.MismatchRatio)
	fmt.Fprintf(&b, "Stress:      shielding %s, tip %s (%s)\n", r.Stress.StressShieldingRisk, r.Stress.TipStressRisk, r.Stress.Mechanism)
	fmt.Fprintf(&b, "Semiology:   %s\n", r.Semiology)
	fmt.Fprintf(&b, "Safety:      %.2f\n", r.SafetyScore)
	fmt.Fprintf(&b, "Bayesian:    A=%.3f B=%.3f PJI=%.3f -> %s\n",
		r.Bayesian.ScenarioAProb, r.Bayesian.ScenarioBProb, r.Bayesian.InfectionProb, r.Bayesian.MostLikelyDiagnosis)
	if !r.ImageChecked {
		b.WriteString("Image:       not supplied, safety gate skipped\n")
	}
	fmt.Fprintf(&b, "\nDIAGNOSIS:   %s\n", r.Result)
	if r.CertaintyFlagged {
		b.WriteString("WARNING:     probability outside the calibrated certainty band\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (a *app) triageCmd() *cobra.Command {
	var imaging string

	cmd := &cobra.Command{
		Use:   "triage <case.yaml>",
		Short: "Screen a case from semiology before imaging is reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := casefile.Load(args[0])
			if err != nil {
				return err
			}
			overrideCase(c, "", imaging)

			_, orch, err := a.engines()
			if err != nil {
				return err
			}
			report, err := orch.Triage(c.Input(), c.ImagingStatus)
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Diagnosis:      %s (P=%.2f)\nSafety score:   %.2f\nRecommendation: %s\nBayesian:       %s\n",
					report.Diagnosis, report.Probability, report.SafetyScore, report.Recommendation, report.Bayesian.MostLikelyDiagnosis)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&imaging, "imaging", "", "override the imaging status of the case")
	return cmd
}

func (a *app) scoreCmd() *cobra.Command {
	var character string
	var aggravating, alleviating []string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the inflammatory safety score of a pain profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile := domain.NewPainProfile("", "", 0, character, false, aggravating, alleviating)
			score := service.NewSemiologyEngine(a.logger).CalculateInflammatorySafetyScore(profile)

			out := struct {
				Score      float64 `json:"score"`
				SepticRisk bool    `json:"septic_risk"`
			}{score, score > service.SepticRiskThreshold}

			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Safety score: %.2f (septic risk: %t)\n", out.Score, out.SepticRisk)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&character, "character", "", "pain character, e.g. mechanical or inflammatory")
	cmd.Flags().StringSliceVar(&aggravating, "aggravating", nil, "aggravating factors, e.g. night,load")
	cmd.Flags().StringSliceVar(&alleviating, "alleviating", nil, "alleviating factors, e.g. rest")
	return cmd
}

func (a *app) inferCmd() *cobra.Command {
	var location, character, imaging, mobility string
	var ild int
	var evidence map[string]string

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Query the Bayesian classifier",
		Long: `Query the Bayesian classifier. Clinical flags are discretised first;
--evidence sets network states directly and leaves the rest unobserved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bayes, err := service.NewBayesianEngine(a.logger)
			if err != nil {
				return err
			}

			var result domain.BayesianInferenceResult
			if len(evidence) > 0 {
				ev, err := parseEvidence(evidence)
				if err != nil {
					return err
				}
				if result, err = bayes.Query(ev); err != nil {
					return err
				}
			} else if result, err = bayes.InferDiagnosis(location, character, ild, imaging, mobility); err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "P(Scenario A) = %.4f\nP(Scenario B) = %.4f\nP(PJI)        = %.4f\nMost likely:    %s\n",
					result.ScenarioAProb, result.ScenarioBProb, result.InfectionProb, result.MostLikelyDiagnosis)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "pain location")
	cmd.Flags().StringVar(&character, "character", "", "pain character")
	cmd.Flags().IntVar(&ild, "ild", 0, "inter-limb discrepancy duration in months")
	cmd.Flags().StringVar(&imaging, "imaging", "Stable", "imaging status")
	cmd.Flags().StringVar(&mobility, "mobility", "", "mobility assistance")
	cmd.Flags().StringToStringVar(&evidence, "evidence", nil, "network states, e.g. Location=Distal,ILD=Short")
	return cmd
}

// parseEvidence maps Variable=State pairs onto network evidence.
func parseEvidence(pairs map[string]string) (domain.Evidence, error) {
	var ev domain.Evidence
	for k, v := range pairs {
		switch k {
		case service.VarLocation:
			ev.Location = v
		case service.VarPainType:
			ev.PainType = v
		case service.VarILD:
			ev.ILD = v
		case service.VarImaging:
			ev.Imaging = v
		case service.VarMobility:
			ev.Mobility = v
		default:
			return domain.Evidence{}, domain.NewValidationError("evidence", "unknown network variable", k)
		}
	}
	return ev, nil
}

func (a *app) mismatchCmd() *cobra.Command {
	var bone string

	cmd := &cobra.Command{
		Use:   "mismatch [material]",
		Short: "Show the implant/bone stiffness mismatch, or the material catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.writeCatalog(cmd.OutOrStdout())
			}

			ratio, err := physics.CalculateStiffnessMismatch(args[0], bone)
			if err != nil {
				return err
			}
			stress := physics.AssessStressConditions(ratio, domain.LocationDistal)

			out := struct {
				Material string                   `json:"material"`
				Bone     string                   `json:"bone"`
				Ratio    float64                  `json:"ratio"`
				Distal   physics.StressAssessment `json:"distal_pain_assessment"`
			}{args[0], bone, ratio, stress}

			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s / %s = %.2f\nWith distal pain: shielding %s, tip %s\n",
					args[0], bone, ratio, stress.StressShieldingRisk, stress.TipStressRisk)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&bone, "bone", physics.CorticalBone, "bone tissue to compare against")
	return cmd
}

func (a *app) writeCatalog(w io.Writer) error {
	catalog := make(map[string]physics.MaterialProperties)
	for _, k := range physics.MaterialKeys() {
		m, err := physics.LookupMaterial(k)
		if err != nil {
			return err
		}
		catalog[k] = m
	}

	return a.render(w, catalog, func(w io.Writer) error {
		for _, k := range physics.MaterialKeys() {
			m := catalog[k]
			if _, err := fmt.Fprintf(w, "%-16s %-24s E=%6.1f GPa  [%s]\n", k, m.Name, m.YoungsModulusGPa, m.Citation); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *app) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [knowledge-base]",
		Short: "Scan the multimodal knowledge base and report classified evidence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.GetConfig().KnowledgeBase.Path
			if len(args) == 1 {
				path = args[0]
			}

			bayes, err := service.NewBayesianEngine(a.logger)
			if err != nil {
				return err
			}
			report, err := ingest.NewScanner(a.logger, bayes).Scan(path)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), report, report.WriteText)
		},
	}
}
