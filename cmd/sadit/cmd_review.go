package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadit-diagnostic-engine/internal/casefile"
	"github.com/sadit-diagnostic-engine/internal/config"
	"github.com/sadit-diagnostic-engine/internal/feedback"
)

func (a *app) reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Record and inspect clinician reviews of fused diagnoses",
	}
	cmd.AddCommand(
		a.reviewSaveCmd(),
		a.reviewShowCmd(),
		a.reviewListCmd(),
		a.reviewDeleteCmd(),
		a.reviewExportCmd(),
		a.reviewImportCmd(),
	)
	return cmd
}

// openStore opens the configured review store, creating the data directory
// for SQLite.
func (a *app) openStore() (feedback.Store, error) {
	storage := a.cfg.GetStorageConfig()
	if storage.Driver == config.DriverSQLite {
		if err := a.cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	store, err := feedback.Open(*storage)
	if err != nil {
		return nil, fmt.Errorf("opening review store: %w", err)
	}
	return store, nil
}

func (a *app) reviewSaveCmd() *cobra.Command {
	var clinician, notes string

	cmd := &cobra.Command{
		Use:   "save <case.yaml>",
		Short: "Analyse a case and record the clinician's verdict on it",
		Long: `Analyse a case and record the clinician's verdict on it. Without
--clinician the clinician is recorded as agreeing with the suggestion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := casefile.Load(args[0])
			if err != nil {
				return err
			}
			report, err := a.analyze(c)
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			review := feedback.NewReview(c.CaseID, c.Implant, report.Result, clinician, notes)
			if err := store.Save(cmd.Context(), review); err != nil {
				return err
			}

			a.logger.WithField("case_id", review.CaseID).Info("Review saved")
			return a.render(cmd.OutOrStdout(), review, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Saved review of case %s (agreed: %t)\n", review.CaseID, review.Agreed)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&clinician, "clinician", "", "the clinician's diagnosis")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	return cmd
}

func (a *app) reviewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show the review of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			review, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if review == nil {
				return fmt.Errorf("no review for case %s", args[0])
			}

			return a.render(cmd.OutOrStdout(), review, func(w io.Writer) error {
				return writeReviews(w, []*feedback.Review{review})
			})
		},
	}
}

func (a *app) reviewListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews newest first, with the clinician agreement rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			reviews, err := store.List(ctx, limit, offset)
			if err != nil {
				return err
			}
			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			rate, err := feedback.AgreementRate(ctx, store)
			if err != nil {
				return err
			}

			out := struct {
				Total         int64              `json:"total"`
				AgreementRate float64            `json:"agreement_rate"`
				Reviews       []*feedback.Review `json:"reviews"`
			}{total, rate, reviews}

			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				if err := writeReviews(w, reviews); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "\n%d reviews, clinician agreement %.0f%%\n", total, rate*100)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reviews")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of reviews to skip")
	return cmd
}

func writeReviews(w io.Writer, reviews []*feedback.Review) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCASE\tIMPLANT\tSUGGESTED\tP\tCLINICIAN\tAGREED\tUPDATED")
	for _, r := range reviews {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%s\t%t\t%s\n",
			r.ID, r.CaseID, r.ImplantType, r.SuggestedDiagnosis, r.Probability,
			r.ClinicianDiagnosis, r.Agreed, r.UpdatedAt.Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *app) reviewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a review by its numeric ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid review id %q: %w", args[0], err)
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			a.logger.WithField("id", id).Info("Review deleted")
			return nil
		},
	}
}

func (a *app) reviewExportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all reviews as JSON",
		Long: `Export all reviews as JSON. By default the export is written to the
exports directory under storage.data_dir; --file - writes to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if file == "-" {
				return store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}
			if file == "" {
				if err := a.cfg.EnsureDataDir(); err != nil {
					return err
				}
				file = filepath.Join(a.cfg.ExportDir(), fmt.Sprintf("reviews-%s.json", time.Now().Format("20060102-150405")))
			}

			f, err := os.Create(file)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			if err := store.ExportJSON(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			a.logger.WithField("file", file).Info("Reviews exported")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), file)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "export file, or - for stdout")
	return cmd
}

func (a *app) reviewImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>",
		Short: "Import reviews, skipping cases that already have one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := struct {
				Imported int `json:"imported"`
				Skipped  int `json:"skipped"`
			}{imported, skipped}

			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Imported %d reviews, skipped %d\n", imported, skipped)
				return err
			})
		},
	}
}
