package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"planextract/internal/app"
	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/listing"
)

// setup loads config, installs the logger and wires the pipeline.
func setup(ctx context.Context) (*config.Config, *app.Components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)

	app.RegisterProviders()
	components, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, components, nil
}

func runCmd() *cobra.Command {
	var (
		file     string
		option   string
		planName string
		jobID    string
		broker   string
		employer string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline on a local document and print the result JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			job := &domain.Job{
				JobID:       jobID,
				BrokerID:    broker,
				EmployerID:  employer,
				Option:      domain.Option(option),
				PlanName:    strings.TrimSpace(planName),
				EnableCache: !noCache,
			}
			if job.JobID == "" {
				job.JobID = uuid.New().String()
			}
			if err := job.Validate(); err != nil {
				return err
			}

			_, components, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = zap.L().Sync() }()

			res, err := components.Orchestrator.Run(cmd.Context(), job, file)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path (pdf, doc, docx, xls, xlsx, xlsm)")
	cmd.Flags().StringVarP(&option, "option", "o", string(domain.OptionAutoRead), "Auto-Read, Search or All Plans")
	cmd.Flags().StringVar(&planName, "plan-name", "", "Plan name to search for (Search only)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job ID (generated when empty)")
	cmd.Flags().StringVar(&broker, "broker-id", "", "Broker ID")
	cmd.Flags().StringVar(&employer, "employer-id", "", "Employer ID")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable prompt caching of the document part")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// parseOutput is the printed form of a parsed stage output.
type parseOutput struct {
	LOCs    []string                      `json:"locs"`
	Plans   map[string][]domain.PlanEntry `json:"plans"`
	Order   []string                      `json:"plan_locs"`
	Listing string                        `json:"canonical_listing"`
}

func parseCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a saved stage output and print its LOCs and plan listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			l := listing.ParsePlanListing(text)
			out := parseOutput{
				LOCs:    listing.ParseLineOfCoverage(text),
				Plans:   make(map[string][]domain.PlanEntry),
				Order:   l.LOCs(),
				Listing: listing.FormatPlanListing(l),
			}
			for _, loc := range out.Order {
				out.Plans[loc] = l.Plans(loc)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Stage output file, - for stdin")
	return cmd
}

func tokensCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Normalize a document and count its tokens against the hard limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, components, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = zap.L().Sync() }()

			doc, err := components.Normalizer.Normalize(cmd.Context(), file)
			if err != nil {
				return err
			}
			n, err := components.Counter.CountTokens(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"characters": len(doc),
				"tokens":     n,
				"hard_limit": cfg.Tokens.HardLimit,
				"over_limit": n > cfg.Tokens.HardLimit,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Document path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
