package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"genai-auto/internal/models"
	"genai-auto/internal/telemetry"
)

type stubRetriever struct {
	fail    map[string]error
	panicOn string
	calls   atomic.Int32
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, k int) ([]models.SearchResult, error) {
	s.calls.Add(1)
	if query == s.panicOn {
		panic("index corrupted")
	}
	if err := s.fail[query]; err != nil {
		return nil, err
	}
	res := []models.SearchResult{
		{Content: "Oil should be changed every 10,000 km.", Score: 0.9, Source: "manual.pdf"},
		{Content: "Tire pressure is 32 psi.", Score: 0.5, Source: "faq.md"},
	}
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, query string, results []models.SearchResult) (string, error) {
	return "answer to " + query, nil
}

func newTestRunner(r Retriever, opts ...RunnerOption) *Runner {
	judge := NewJudge(&rubricCompleter{replies: map[string]string{"faithful": "1"}}, 0)
	return NewRunner(r, stubGenerator{}, judge, opts...)
}

func TestRunSingle(t *testing.T) {
	runner := newTestRunner(&stubRetriever{})
	tc := TestCase{ID: "maint-001", Query: "How often should I change the oil?", Category: "maintenance"}

	res, err := runner.RunSingle(context.Background(), tc, 5)
	if err != nil {
		t.Fatalf("RunSingle: %v", err)
	}
	if res.GeneratedAnswer != "answer to "+tc.Query {
		t.Fatalf("answer = %q", res.GeneratedAnswer)
	}
	if len(res.RetrievedContexts) != 2 || res.RetrievalScores[0] != 0.9 {
		t.Fatalf("contexts = %v, scores = %v", res.RetrievedContexts, res.RetrievalScores)
	}
	if !res.RetrievalMetrics.Approximate || res.RetrievalMetrics.MRR != 1 || !approx(res.RetrievalMetrics.PrecisionAtK, 0.2) {
		t.Fatalf("retrieval metrics = %+v", res.RetrievalMetrics)
	}
	if res.GenerationMetrics.Faithfulness != 1 || res.GenerationMetrics.AnswerRelevance != 0.5 {
		t.Fatalf("generation metrics = %+v", res.GenerationMetrics)
	}
	want := DefaultWeights().Overall(res.RetrievalMetrics, res.GenerationMetrics)
	if !approx(res.OverallScore, want) {
		t.Fatalf("overall = %v, want %v", res.OverallScore, want)
	}
	l := res.LatencyMetrics
	if !approx(l.TotalMS, l.RetrievalMS+l.GenerationMS) {
		t.Fatalf("total latency %v != %v + %v", l.TotalMS, l.RetrievalMS, l.GenerationMS)
	}
}

func TestRunSingleRetrievalError(t *testing.T) {
	boom := errors.New("store offline")
	runner := newTestRunner(&stubRetriever{fail: map[string]error{"q": boom}})

	_, err := runner.RunSingle(context.Background(), TestCase{ID: "1", Query: "q"}, 5)
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "retrieval failed") {
		t.Fatalf("RunSingle error = %v", err)
	}
}

func TestRunDatasetRecordsFailures(t *testing.T) {
	d := NewDataset("mixed")
	if err := d.Add(
		TestCase{ID: "ok", Query: "oil change", Category: "maintenance"},
		TestCase{ID: "bad", Query: "broken query", Category: "faq"},
	); err != nil {
		t.Fatalf("Add: %v", err)
	}
	metrics := telemetry.New()
	runner := newTestRunner(
		&stubRetriever{fail: map[string]error{"broken query": errors.New("timeout")}},
		WithRelevanceThreshold(0.8),
		WithTelemetry(metrics),
	)

	r := runner.RunDataset(context.Background(), d, RunOptions{Name: "run", K: 5, MaxConcurrent: 2})
	if r.TotalQueries != 2 || r.SuccessfulQueries != 1 || r.FailedQueries != 1 {
		t.Fatalf("counts = %d/%d/%d", r.TotalQueries, r.SuccessfulQueries, r.FailedQueries)
	}
	if len(r.Errors) != 1 || r.Errors[0].TestCaseID != "bad" || !strings.Contains(r.Errors[0].Error, "timeout") {
		t.Fatalf("errors = %+v", r.Errors)
	}
	if r.DatasetName != "mixed" || r.RelevanceThreshold != 0.8 {
		t.Fatalf("report header = %q / %v", r.DatasetName, r.RelevanceThreshold)
	}
	if _, ok := r.CategoryScores["maintenance"]; !ok || len(r.CategoryScores) != 1 {
		t.Fatalf("category scores = %v", r.CategoryScores)
	}
}

func TestRunDatasetAllFailed(t *testing.T) {
	d := NewDataset("down")
	if err := d.Add(TestCase{ID: "1", Query: "a"}, TestCase{ID: "2", Query: "b"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	boom := errors.New("down")
	runner := newTestRunner(&stubRetriever{fail: map[string]error{"a": boom, "b": boom}})

	r := runner.RunDataset(context.Background(), d, RunOptions{Name: "run"})
	if r.SuccessfulQueries != 0 || r.FailedQueries != 2 || r.AvgOverallScore != 0 {
		t.Fatalf("report = %+v", r)
	}
}

func TestRunDatasetRecoversPanics(t *testing.T) {
	d := NewDataset("panicky")
	if err := d.Add(TestCase{ID: "1", Query: "fine"}, TestCase{ID: "2", Query: "explode"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	retriever := &stubRetriever{panicOn: "explode"}
	runner := newTestRunner(retriever)

	r := runner.RunDataset(context.Background(), d, RunOptions{Name: "run", MaxConcurrent: 1})
	if r.SuccessfulQueries != 1 || r.FailedQueries != 1 {
		t.Fatalf("counts = %d/%d", r.SuccessfulQueries, r.FailedQueries)
	}
	if !strings.Contains(r.Errors[0].Error, "index corrupted") {
		t.Fatalf("panic not recorded: %+v", r.Errors)
	}
}

func TestRunDatasetFilters(t *testing.T) {
	retriever := &stubRetriever{}
	runner := newTestRunner(retriever)

	r := runner.RunDataset(context.Background(), SampleDataset(), RunOptions{
		Name:         "safety-only",
		Categories:   []string{"safety"},
		Difficulties: []string{"easy", "medium"},
	})
	if r.TotalQueries != 2 || retriever.calls.Load() != 2 {
		t.Fatalf("ran %d cases with %d retrievals, want 2", r.TotalQueries, retriever.calls.Load())
	}
	if r.Results[0].TestCaseID != "safety-001" || r.Results[1].TestCaseID != "safety-003" {
		t.Fatalf("results out of dataset order: %s, %s", r.Results[0].TestCaseID, r.Results[1].TestCaseID)
	}
}
