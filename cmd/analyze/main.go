package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"phasegrid/adapters/excel"
	"phasegrid/adapters/postgres"
	"phasegrid/adapters/report"
	"phasegrid/app"
	"phasegrid/internal/alignment"
	"phasegrid/internal/config"
	"phasegrid/internal/extraction"
	"phasegrid/internal/phenotypes"
	"phasegrid/internal/segmentation"
	"phasegrid/ports"
)

func main() {
	// Missing .env is fine; environment variables may come from elsewhere
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "phasegrid-analyze",
		Short: "Segment growth curves into phases and extract plate phenotypes",
	}
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var input string
	var outputDir string
	var skipAlignment bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline over a curve workbook",
		Long: `Run segmentation, phenotype extraction and phase alignment over every
plate in a curve workbook, then export the results as a workbook and report.

Example: phasegrid-analyze run --input curves.xlsx --output-dir results/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if input == "" {
				input = cfg.Paths.InputFile
			}
			if input == "" {
				return fmt.Errorf("no input workbook (use --input or INPUT_FILE)")
			}
			if outputDir == "" {
				outputDir = cfg.Paths.OutputDir
			}
			return runPipeline(cmd.Context(), cfg, input, outputDir, skipAlignment)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Curve workbook path (xlsx)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for result files")
	cmd.Flags().BoolVar(&skipAlignment, "skip-alignment", false, "Skip the phase alignment stage")

	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config, input, outputDir string, skipAlignment bool) error {
	var repo ports.ResultRepository
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = postgres.NewResultRepository(db)
	}

	engine, err := segmentation.NewEngine(cfg.Segmentation)
	if err != nil {
		return err
	}
	analysis := app.NewAnalysisService(engine, phenotypes.NewCalculator(), repo)
	extractor := app.NewExtractionService(extraction.NewExtractor(), repo)
	aligner := app.NewAlignmentService(alignment.DefaultOptions(), repo)

	source := excel.NewCurveReader(input)
	result, err := analysis.AnalyzeAll(ctx, source)
	if err != nil {
		return err
	}

	var exports []ports.PlateExport
	for _, pr := range result.Plates {
		filter, err := source.LoadFilter(ctx, pr.Plate)
		if err != nil {
			return err
		}

		ex, err := extractor.ExtractPlate(ctx, result.RunID, pr.Plate, extraction.Inputs{
			Grid:     pr.Grid,
			Filter:   filter,
			LowPoint: pr.LowPoint,
		})
		if err != nil {
			return err
		}

		pe := ports.PlateExport{Plate: pr.Plate, Arrays: ex.Arrays, Summaries: ex.Summaries}
		if !skipAlignment {
			plate, err := source.LoadPlate(ctx, pr.Plate)
			if err != nil {
				return err
			}
			pe.Tensor, err = aligner.AlignPlate(ctx, result.RunID, pr.Plate, pr.Grid, filter, plate.EndTime())
			if err != nil {
				return err
			}
		}
		exports = append(exports, pe)
	}

	workbook := excel.NewExporter(filepath.Join(outputDir, fmt.Sprintf("run-%s.xlsx", result.RunID)))
	if err := workbook.Export(ctx, result.RunID, exports); err != nil {
		return err
	}
	if err := report.NewWriter(outputDir).Export(ctx, result.RunID, exports); err != nil {
		return err
	}

	fmt.Printf("run %s: %d plates analyzed in %dms\n", result.RunID, len(result.Plates), result.RuntimeMs)
	return nil
}
