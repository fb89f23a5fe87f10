package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"genai-auto/internal/evaluation"
)

func (c *cli) evalCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate retrieval and answer quality",
	}
	cmd.AddCommand(c.evalRunCMD(), c.evalCompareCMD(), c.evalSampleCMD())
	return cmd
}

func (c *cli) evalRunCMD() *cobra.Command {
	var (
		name         string
		datasetPath  string
		output       string
		metricsFile  string
		opts         evaluation.RunOptions
		categories   []string
		difficulties []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a dataset through retrieval, generation and the judge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := evaluation.SampleDataset()
			if datasetPath != "" {
				var err error
				if ds, err = evaluation.LoadDataset(datasetPath); err != nil {
					return err
				}
			}
			if name == "" {
				name = "eval_" + time.Now().Format("20060102_150405")
			}
			if opts.K == 0 {
				opts.K = c.cfg.Evaluation.K
			}
			if opts.MaxConcurrent == 0 {
				opts.MaxConcurrent = c.cfg.Evaluation.MaxConcurrent
			}
			opts.Name = name
			opts.Categories = categories
			opts.Difficulties = difficulties

			return c.withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
				judge := evaluation.NewJudge(a.llm, c.cfg.Evaluation.JudgeTimeout)
				runnerOpts := append(evaluation.RunnerOptionsFromConfig(c.cfg.Evaluation), evaluation.WithTelemetry(a.metrics))
				runner := evaluation.NewRunner(a.rag, a.rag, judge, runnerOpts...)

				report := runner.RunDataset(ctx, ds, opts)
				fmt.Print(report.Summary())
				evaluation.PrintRecommendations(os.Stdout, report.Recommendations())

				if output == "" {
					output = filepath.Join(c.cfg.Evaluation.ReportDir, name+".json")
				}
				if err := report.Save(output); err != nil {
					return err
				}
				if metricsFile != "" {
					if err := a.metrics.WriteToTextfile(metricsFile); err != nil {
						return fmt.Errorf("failed to write metrics: %w", err)
					}
					log.Info().Str("path", metricsFile).Msg("Metrics written")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "run name (default eval_<timestamp>)")
	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "dataset JSON file (default the built-in sample)")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "only run these categories")
	cmd.Flags().StringSliceVar(&difficulties, "difficulties", nil, "only run these difficulties")
	cmd.Flags().IntVar(&opts.K, "k", 0, "results retrieved per query (0 uses the config)")
	cmd.Flags().IntVar(&opts.MaxConcurrent, "concurrent", 0, "test cases in flight (0 uses the config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report file (default <report_dir>/<name>.json)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics in textfile format")
	return cmd
}

func (c *cli) evalCompareCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <report> <report>...",
		Short: "Compare saved evaluation reports",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]*evaluation.EvaluationReport, 0, len(args))
			for _, path := range args {
				r, err := evaluation.LoadReport(path)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}
			cmp, err := evaluation.CompareRuns(reports)
			if err != nil {
				return err
			}
			cmp.Print(os.Stdout)
			return nil
		},
	}
}

func (c *cli) evalSampleCMD() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the built-in sample dataset to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return evaluation.SampleDataset().Save(output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "./data/eval_dataset.json", "dataset file")
	return cmd
}
