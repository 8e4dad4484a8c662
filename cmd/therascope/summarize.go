package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/therascope/therascope/internal/reporting"
	"github.com/therascope/therascope/pkg/config"
	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/surface"
	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

type summarizeOpts struct {
	trialsPath string
	variant    string
	sortMode   string
	outputFmt  string
	archive    bool
}

func newSummarizeCmd() *cobra.Command {
	var opts summarizeOpts

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Evaluate a recorded session file",
		Long: `Loads a session file (planned stimuli and trial records), classifies every
worked stimulus and the session as a whole, and renders the report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.trialsPath, "trials", "", "Path to the session JSON file (required, - for stdin)")
	cmd.Flags().StringVar(&opts.variant, "variant", "", "Clinical variant (overrides the file): aba, occupational, physiotherapy, music")
	cmd.Flags().StringVar(&opts.sortMode, "sort", "", "Stimulus order: severity or alphabetical (default from config)")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text, json or markdown")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "Archive the JSON report in the configured storage")
	_ = cmd.MarkFlagRequired("trials")

	return cmd
}

func runSummarize(cmd *cobra.Command, opts summarizeOpts) error {
	file, err := readSessionFile(cmd.InOrStdin(), opts.trialsPath)
	if err != nil {
		return err
	}

	variant := taxonomy.Variant(opts.variant)
	if variant == "" {
		variant = file.Variant
	}
	if variant == "" {
		variant = taxonomy.Variant(cfg.Engine.Variant)
	}
	if variant == "" {
		return fmt.Errorf("no variant given: set --variant or \"variant\" in the session file")
	}

	sortName := opts.sortMode
	if sortName == "" {
		sortName = cfg.Engine.DefaultSort
	}
	mode, err := scoring.ParseSortMode(sortName)
	if err != nil {
		return err
	}

	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}

	svc, err := newReportingService(cmd, opts.archive)
	if err != nil {
		return err
	}

	report, err := svc.Evaluate(variant, scoring.Input{
		SessionID: file.SessionID,
		Trials:    file.Trials,
		Planned:   file.Planned,
		Sort:      mode,
	})
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", opts.trialsPath, err)
	}

	if opts.archive {
		archived, err := svc.Archive(cmd.Context(), report)
		if err != nil {
			return err
		}
		slog.Info("report archived", "ref", archived.StorageRef)
	}

	return renderer.Render(cmd.OutOrStdout(), report)
}

func readSessionFile(stdin io.Reader, path string) (*trial.File, error) {
	if path == "-" {
		return trial.Decode(stdin)
	}
	return trial.Load(path)
}

func newReportingService(cmd *cobra.Command, archive bool) (*reporting.Service, error) {
	locale, err := scoring.ParseLocale(cfg.Engine.Locale)
	if err != nil {
		return nil, err
	}

	var storage reporting.StorageClient
	if archive {
		storage, err = reporting.NewStorage(cmd.Context(), reporting.StorageOptions{
			Backend:   cfg.Storage.Backend,
			LocalPath: config.ExpandHome(cfg.Storage.LocalPath),
			Bucket:    cfg.Storage.Bucket,
			S3: reporting.S3Config{
				Bucket:   cfg.Storage.Bucket,
				Region:   cfg.Storage.Region,
				Endpoint: cfg.Storage.Endpoint,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("report storage: %w", err)
		}
	}

	return reporting.NewService(nil, storage,
		reporting.WithResolver(cfg.Taxonomy),
		reporting.WithLocale(locale),
		reporting.WithLogger(slog.Default()),
	), nil
}

