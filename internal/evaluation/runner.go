package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
	"genai-auto/internal/telemetry"
)

// Retriever returns the top k chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

// Generator answers a query from retrieved chunks.
type Generator interface {
	Generate(ctx context.Context, query string, results []models.SearchResult) (string, error)
}

type Runner struct {
	retriever Retriever
	generator Generator
	judge     *Judge
	weights   ScoreWeights
	threshold float64
	metrics   *telemetry.Metrics
}

type RunnerOption func(*Runner)

func WithWeights(w ScoreWeights) RunnerOption {
	return func(r *Runner) { r.weights = w }
}

func WithRelevanceThreshold(t float64) RunnerOption {
	return func(r *Runner) { r.threshold = t }
}

func WithTelemetry(m *telemetry.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(retriever Retriever, generator Generator, judge *Judge, opts ...RunnerOption) *Runner {
	r := &Runner{
		retriever: retriever,
		generator: generator,
		judge:     judge,
		weights:   DefaultWeights(),
		threshold: DefaultRelevanceThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunnerOptionsFromConfig maps the evaluation config onto runner options.
func RunnerOptionsFromConfig(cfg config.EvaluationConfig) []RunnerOption {
	return []RunnerOption{
		WithWeights(WeightsFromConfig(cfg.Weights)),
		WithRelevanceThreshold(cfg.RelevanceThreshold),
	}
}

// RunSingle evaluates one test case: timed retrieval, retrieval metrics,
// timed generation, then the judge.
func (r *Runner) RunSingle(ctx context.Context, tc TestCase, k int) (EvaluationResult, error) {
	log.Info().Str("id", tc.ID).Str("query", truncate(tc.Query, 50)).Msg("Evaluating test case")

	retrievalStart := time.Now()
	results, err := r.retriever.Retrieve(ctx, tc.Query, k)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("retrieval failed: %w", err)
	}
	retrievalMS := msSince(retrievalStart)

	contexts := make([]string, len(results))
	scores := make([]float64, len(results))
	for i, res := range results {
		contexts[i] = res.Content
		scores[i] = res.Score
	}
	retrieval := EvaluateRetrieval(results, tc, k, r.threshold)

	generationStart := time.Now()
	answer, err := r.generator.Generate(ctx, tc.Query, results)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("generation failed: %w", err)
	}
	generationMS := msSince(generationStart)

	generation, err := r.judge.Evaluate(ctx, tc.Query, answer, contexts, tc.ExpectedAnswer)
	if err != nil {
		return EvaluationResult{}, err
	}

	return EvaluationResult{
		TestCaseID:        tc.ID,
		Query:             tc.Query,
		Category:          tc.Category,
		ExpectedAnswer:    tc.ExpectedAnswer,
		GeneratedAnswer:   answer,
		RetrievedContexts: contexts,
		RetrievalScores:   scores,
		RetrievalMetrics:  retrieval,
		GenerationMetrics: generation,
		LatencyMetrics: LatencyMetrics{
			RetrievalMS:  retrievalMS,
			GenerationMS: generationMS,
			TotalMS:      retrievalMS + generationMS,
		},
		OverallScore: r.weights.Overall(retrieval, generation),
		Timestamp:    time.Now().UTC(),
	}, nil
}

type RunOptions struct {
	Name          string
	K             int
	MaxConcurrent int
	Categories    []string
	Difficulties  []string
}

type outcome struct {
	result *EvaluationResult
	err    error
}

// RunDataset evaluates the filtered test cases with at most MaxConcurrent
// in flight. A failing test case is recorded in the report and never stops
// the others.
func (r *Runner) RunDataset(ctx context.Context, ds *Dataset, opts RunOptions) *EvaluationReport {
	if opts.K <= 0 {
		opts.K = 5
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	cases := ds.Filter(opts.Categories, opts.Difficulties)
	log.Info().Str("name", opts.Name).Int("total_cases", len(cases)).Msg("Starting evaluation")

	outcomes := make([]outcome, len(cases))
	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrent)
	for i, tc := range cases {
		g.Go(func() error {
			outcomes[i] = r.runIsolated(ctx, tc, opts.K)
			return nil
		})
	}
	_ = g.Wait()

	var results []EvaluationResult
	var errs []ErrorRecord
	for i, o := range outcomes {
		if o.err != nil {
			log.Error().Err(o.err).Str("id", cases[i].ID).Msg("Evaluation failed")
			errs = append(errs, ErrorRecord{TestCaseID: cases[i].ID, Query: cases[i].Query, Error: o.err.Error()})
			r.metrics.EvaluationDone("failed")
			continue
		}
		results = append(results, *o.result)
		r.metrics.EvaluationDone("success")
	}

	report := Aggregate(opts.Name, ds.Name, results, errs)
	report.RelevanceThreshold = r.threshold
	for cat, score := range report.CategoryScores {
		r.metrics.SetCategoryScore(cat, score)
	}

	log.Info().
		Str("name", opts.Name).
		Int("successful", report.SuccessfulQueries).
		Int("failed", report.FailedQueries).
		Float64("overall_score", report.AvgOverallScore).
		Msg("Evaluation complete")
	return report
}

func (r *Runner) runIsolated(ctx context.Context, tc TestCase, k int) (o outcome) {
	defer func() {
		if p := recover(); p != nil {
			o = outcome{err: fmt.Errorf("panic: %v", p)}
		}
	}()
	res, err := r.RunSingle(ctx, tc, k)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{result: &res}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
