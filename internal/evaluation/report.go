package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"genai-auto/internal/helper"
)

var ErrNotEnoughReports = errors.New("need at least 2 reports to compare")

// EvaluationResult is the outcome of one successful test case.
type EvaluationResult struct {
	TestCaseID        string            `json:"test_case_id"`
	Query             string            `json:"query"`
	Category          string            `json:"category"`
	ExpectedAnswer    string            `json:"expected_answer,omitempty"`
	GeneratedAnswer   string            `json:"generated_answer"`
	RetrievedContexts []string          `json:"retrieved_contexts"`
	RetrievalScores   []float64         `json:"retrieval_scores"`
	RetrievalMetrics  RetrievalMetrics  `json:"retrieval_metrics"`
	GenerationMetrics GenerationMetrics `json:"generation_metrics"`
	LatencyMetrics    LatencyMetrics    `json:"latency_metrics"`
	OverallScore      float64           `json:"overall_score"`
	Timestamp         time.Time         `json:"timestamp"`
}

type ErrorRecord struct {
	TestCaseID string `json:"test_case_id"`
	Query      string `json:"query"`
	Error      string `json:"error"`
}

type EvaluationReport struct {
	Name              string    `json:"name"`
	Timestamp         time.Time `json:"timestamp"`
	DatasetName       string    `json:"dataset_name"`
	TotalQueries      int       `json:"total_queries"`
	SuccessfulQueries int       `json:"successful_queries"`
	FailedQueries     int       `json:"failed_queries"`

	AvgRetrievalPrecision float64 `json:"avg_retrieval_precision"`
	AvgRetrievalMRR       float64 `json:"avg_retrieval_mrr"`
	AvgRetrievalHitRate   float64 `json:"avg_retrieval_hit_rate"`
	AvgFaithfulness       float64 `json:"avg_faithfulness"`
	AvgAnswerRelevance    float64 `json:"avg_answer_relevance"`
	AvgContextRelevance   float64 `json:"avg_context_relevance"`
	AvgCompleteness       float64 `json:"avg_completeness"`
	AvgOverallScore       float64 `json:"avg_overall_score"`

	AvgRetrievalLatencyMS  float64 `json:"avg_retrieval_latency_ms"`
	AvgGenerationLatencyMS float64 `json:"avg_generation_latency_ms"`
	AvgTotalLatencyMS      float64 `json:"avg_total_latency_ms"`
	P95LatencyMS           float64 `json:"p95_latency_ms"`

	CategoryScores map[string]float64 `json:"category_scores"`
	// ApproximateQueries counts results whose retrieval metrics came from
	// the score threshold rather than labels.
	ApproximateQueries int     `json:"approximate_queries"`
	RelevanceThreshold float64 `json:"relevance_threshold"`

	Results []EvaluationResult `json:"results"`
	Errors  []ErrorRecord      `json:"errors"`
}

// Aggregate builds a report from successful results and recorded errors.
// Averages cover successful results only.
func Aggregate(name, datasetName string, results []EvaluationResult, errs []ErrorRecord) *EvaluationReport {
	r := &EvaluationReport{
		Name:              name,
		Timestamp:         time.Now().UTC(),
		DatasetName:       datasetName,
		TotalQueries:      len(results) + len(errs),
		SuccessfulQueries: len(results),
		FailedQueries:     len(errs),
		CategoryScores:    map[string]float64{},
		Results:           results,
		Errors:            errs,
	}
	if r.Results == nil {
		r.Results = []EvaluationResult{}
	}
	if r.Errors == nil {
		r.Errors = []ErrorRecord{}
	}
	if len(results) == 0 {
		return r
	}

	n := float64(len(results))
	latencies := make([]float64, 0, len(results))
	byCategory := map[string][]float64{}
	for _, res := range results {
		r.AvgRetrievalPrecision += res.RetrievalMetrics.PrecisionAtK
		r.AvgRetrievalMRR += res.RetrievalMetrics.MRR
		r.AvgRetrievalHitRate += res.RetrievalMetrics.HitRate
		r.AvgFaithfulness += res.GenerationMetrics.Faithfulness
		r.AvgAnswerRelevance += res.GenerationMetrics.AnswerRelevance
		r.AvgContextRelevance += res.GenerationMetrics.ContextRelevance
		r.AvgCompleteness += res.GenerationMetrics.Completeness
		r.AvgOverallScore += res.OverallScore
		r.AvgRetrievalLatencyMS += res.LatencyMetrics.RetrievalMS
		r.AvgGenerationLatencyMS += res.LatencyMetrics.GenerationMS
		r.AvgTotalLatencyMS += res.LatencyMetrics.TotalMS
		latencies = append(latencies, res.LatencyMetrics.TotalMS)
		byCategory[res.Category] = append(byCategory[res.Category], res.OverallScore)
		if res.RetrievalMetrics.Approximate {
			r.ApproximateQueries++
		}
	}
	r.AvgRetrievalPrecision /= n
	r.AvgRetrievalMRR /= n
	r.AvgRetrievalHitRate /= n
	r.AvgFaithfulness /= n
	r.AvgAnswerRelevance /= n
	r.AvgContextRelevance /= n
	r.AvgCompleteness /= n
	r.AvgOverallScore /= n
	r.AvgRetrievalLatencyMS /= n
	r.AvgGenerationLatencyMS /= n
	r.AvgTotalLatencyMS /= n
	r.P95LatencyMS = P95(latencies)
	for cat, scores := range byCategory {
		r.CategoryScores[cat] = MeanScore(scores)
	}
	return r
}

// P95 returns the sorted value at index ceil(0.95*n), clamped to the last one.
func P95(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(0.95 * float64(len(sorted))))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (r *EvaluationReport) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report saved")
	return nil
}

func LoadReport(path string) (*EvaluationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r EvaluationReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}

// Summary renders the report as a fixed width text box.
func (r *EvaluationReport) Summary() string {
	const width = 62
	var sb strings.Builder
	rule := func(left, right string) { sb.WriteString(left + strings.Repeat("═", width) + right + "\n") }
	line := func(format string, args ...any) {
		s := fmt.Sprintf(format, args...)
		if pad := width - 1 - len([]rune(s)); pad > 0 {
			s += strings.Repeat(" ", pad)
		}
		sb.WriteString("║ " + s + "║\n")
	}

	rule("╔", "╗")
	line("%38s", "RAG EVALUATION REPORT")
	rule("╠", "╣")
	line("Name: %s", r.Name)
	line("Dataset: %s", r.DatasetName)
	line("Timestamp: %s", r.Timestamp.Format(time.RFC3339))
	rule("╠", "╣")
	line("QUERIES")
	line("  Total: %d", r.TotalQueries)
	line("  Successful: %d", r.SuccessfulQueries)
	line("  Failed: %d", r.FailedQueries)
	rule("╠", "╣")
	line("RETRIEVAL METRICS")
	line("  Precision@K: %.4f", r.AvgRetrievalPrecision)
	line("  MRR: %.4f", r.AvgRetrievalMRR)
	line("  Hit Rate: %.4f", r.AvgRetrievalHitRate)
	if r.ApproximateQueries > 0 {
		line("  Approximate (score > %.2f): %d of %d", r.RelevanceThreshold, r.ApproximateQueries, r.SuccessfulQueries)
	}
	rule("╠", "╣")
	line("GENERATION METRICS")
	line("  Faithfulness: %.4f", r.AvgFaithfulness)
	line("  Answer Relevance: %.4f", r.AvgAnswerRelevance)
	line("  Context Relevance: %.4f", r.AvgContextRelevance)
	line("  Completeness: %.4f", r.AvgCompleteness)
	rule("╠", "╣")
	line("OVERALL SCORE: %.4f", r.AvgOverallScore)
	rule("╠", "╣")
	line("LATENCY")
	line("  Avg Retrieval: %.2f ms", r.AvgRetrievalLatencyMS)
	line("  Avg Generation: %.2f ms", r.AvgGenerationLatencyMS)
	line("  Avg Total: %.2f ms", r.AvgTotalLatencyMS)
	line("  P95: %.2f ms", r.P95LatencyMS)
	rule("╠", "╣")
	line("CATEGORY BREAKDOWN")
	if len(r.CategoryScores) == 0 {
		line("  No categories")
	}
	cats := make([]string, 0, len(r.CategoryScores))
	for c := range r.CategoryScores {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		line("  %-20s: %.4f", c, r.CategoryScores[c])
	}
	rule("╚", "╝")
	return sb.String()
}

type Recommendation struct {
	OK      bool
	Title   string
	Actions []string
}

// Recommendations flags weak areas of the run.
func (r *EvaluationReport) Recommendations() []Recommendation {
	var recs []Recommendation
	if r.AvgRetrievalPrecision < 0.6 {
		recs = append(recs, Recommendation{Title: "Low retrieval precision - consider:", Actions: []string{
			"Adding more relevant documents to knowledge base",
			"Adjusting chunking strategy",
			"Fine-tuning embedding model",
		}})
	}
	if r.AvgFaithfulness < 0.7 {
		recs = append(recs, Recommendation{Title: "Low faithfulness - consider:", Actions: []string{
			"Improving prompt to emphasize grounding in context",
			"Reducing temperature in generation",
		}})
	}
	if r.AvgAnswerRelevance < 0.7 {
		recs = append(recs, Recommendation{Title: "Low answer relevance - consider:", Actions: []string{
			"Improving query understanding",
			"Better prompt engineering",
		}})
	}
	if r.AvgTotalLatencyMS > 5000 {
		recs = append(recs, Recommendation{Title: "High latency - consider:", Actions: []string{
			"Reducing top-K value",
			"Enabling caching",
			"Using faster model",
		}})
	}
	if r.AvgOverallScore >= 0.8 {
		recs = append(recs, Recommendation{OK: true, Title: "Overall score is good!"})
	}
	return recs
}

func PrintRecommendations(w io.Writer, recs []Recommendation) {
	warn := color.New(color.FgYellow, color.Bold)
	ok := color.New(color.FgGreen, color.Bold)
	fmt.Fprintln(w, "Recommendations:")
	for _, rec := range recs {
		if rec.OK {
			ok.Fprintf(w, "   %s\n", rec.Title)
			continue
		}
		warn.Fprintf(w, "   %s\n", rec.Title)
		for _, a := range rec.Actions {
			fmt.Fprintf(w, "      - %s\n", a)
		}
	}
}

type MetricComparison struct {
	Metric      string    `json:"metric"`
	Values      []float64 `json:"values"`
	Best        float64   `json:"best"`
	Improvement float64   `json:"improvement"`
	LowerIsBest bool      `json:"lower_is_best"`
}

type Comparison struct {
	Runs    []string           `json:"runs"`
	Metrics []MetricComparison `json:"metrics"`
}

var comparedMetrics = []struct {
	name        string
	lowerIsBest bool
	get         func(*EvaluationReport) float64
}{
	{"avg_retrieval_precision", false, func(r *EvaluationReport) float64 { return r.AvgRetrievalPrecision }},
	{"avg_retrieval_mrr", false, func(r *EvaluationReport) float64 { return r.AvgRetrievalMRR }},
	{"avg_faithfulness", false, func(r *EvaluationReport) float64 { return r.AvgFaithfulness }},
	{"avg_answer_relevance", false, func(r *EvaluationReport) float64 { return r.AvgAnswerRelevance }},
	{"avg_overall_score", false, func(r *EvaluationReport) float64 { return r.AvgOverallScore }},
	{"avg_total_latency_ms", true, func(r *EvaluationReport) float64 { return r.AvgTotalLatencyMS }},
}

// CompareRuns lines up headline metrics across runs. Improvement is the
// percent change of the last run over the first.
func CompareRuns(reports []*EvaluationReport) (*Comparison, error) {
	if len(reports) < 2 {
		return nil, ErrNotEnoughReports
	}
	c := &Comparison{}
	for _, r := range reports {
		c.Runs = append(c.Runs, r.Name)
	}
	for _, m := range comparedMetrics {
		mc := MetricComparison{Metric: m.name, LowerIsBest: m.lowerIsBest}
		for _, r := range reports {
			mc.Values = append(mc.Values, m.get(r))
		}
		mc.Best = mc.Values[0]
		for _, v := range mc.Values[1:] {
			if (m.lowerIsBest && v < mc.Best) || (!m.lowerIsBest && v > mc.Best) {
				mc.Best = v
			}
		}
		first, last := mc.Values[0], mc.Values[len(mc.Values)-1]
		if first != 0 {
			mc.Improvement = (last - first) / first * 100
		}
		c.Metrics = append(c.Metrics, mc)
	}
	return c, nil
}

// Print writes the comparison marking the best run per metric.
func (c *Comparison) Print(w io.Writer) {
	up := color.New(color.FgGreen)
	down := color.New(color.FgRed)
	for _, m := range c.Metrics {
		fmt.Fprintf(w, "\n%s:\n", m.Metric)
		for i, v := range m.Values {
			marker := "  "
			if v == m.Best {
				marker = "* "
			}
			fmt.Fprintf(w, "  %s%s: %.4f\n", marker, c.Runs[i], v)
		}
		if m.Improvement == 0 {
			continue
		}
		if (m.Improvement > 0) != m.LowerIsBest {
			up.Fprintf(w, "  Improvement: %+.1f%%\n", m.Improvement)
		} else {
			down.Fprintf(w, "  Regression: %+.1f%%\n", m.Improvement)
		}
	}
}
