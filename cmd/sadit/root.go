package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sadit-diagnostic-engine/internal/compliance"
	"github.com/sadit-diagnostic-engine/internal/config"
	"github.com/sadit-diagnostic-engine/internal/service"
)

// Output formats
const (
	formatText = "text"
	formatJSON = "json"
)

// app carries what every subcommand needs once the root pre-run has loaded
// configuration.
type app struct {
	configFile string
	envFile    string
	format     string

	cfg    *config.Manager
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sadit",
		Short: "Diagnostic fusion engine for painful hip prostheses",
		Long: `sadit fuses ALICIA pain semiology, a Bayesian classifier and implant
biomechanics into one cited diagnosis, behind an ISO 14971 image safety gate.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: sadit.yaml in ., ./config or $HOME/.sadit)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().StringVarP(&a.format, "output", "o", formatText, "output format: text or json")

	root.AddCommand(
		a.analyzeCmd(),
		a.triageCmd(),
		a.scoreCmd(),
		a.inferCmd(),
		a.mismatchCmd(),
		a.ingestCmd(),
		a.reviewCmd(),
		a.migrateCmd(),
	)

	return root
}

// setup loads the dotenv file, configuration and logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.format != formatText && a.format != formatJSON {
		return fmt.Errorf("invalid output format: %s", a.format)
	}

	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.NewManager(a.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	a.cfg = cfg

	// Results go to stdout; logs never do.
	a.logger = config.NewLogger(cfg.GetLoggingConfig())
	a.logger.SetOutput(cmd.ErrOrStderr())

	if used := cfg.ConfigFileUsed(); used != "" {
		a.logger.WithField("file", used).Debug("Configuration loaded")
	}
	return nil
}

// engines builds the Bayesian engine and an orchestrator over it.
func (a *app) engines() (*service.BayesianEngine, *service.Orchestrator, error) {
	bayes, err := service.NewBayesianEngine(a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building Bayesian network: %w", err)
	}

	checker := compliance.NewChecker(a.logger, a.cfg.GetComplianceConfig())
	semiology := service.NewSemiologyEngine(a.logger)

	return bayes, service.NewOrchestrator(a.logger, semiology, bayes, checker), nil
}

// render writes v as indented JSON or through text.
func (a *app) render(w io.Writer, v any, text func(io.Writer) error) error {
	if a.format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
