package evaluation

import (
	"math"
	"testing"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRankingMetricBoundaries(t *testing.T) {
	if got := PrecisionAtK(nil, 5); got != 0 {
		t.Fatalf("precision of empty list = %v", got)
	}
	if got := MRR([]bool{false, false, false}); got != 0 {
		t.Fatalf("mrr without relevant items = %v", got)
	}
	if got := HitRate(nil); got != 0 {
		t.Fatalf("hit rate of empty list = %v", got)
	}
	if got := NDCG([]float64{0.9, 0.8, 0.5}, 3); !approx(got, 1) {
		t.Fatalf("ndcg of sorted scores = %v, want 1", got)
	}
	if got := NDCG([]float64{0, 0}, 2); got != 0 {
		t.Fatalf("ndcg of zero scores = %v", got)
	}
	if got := RecallAtK([]bool{true}, 0, 1); got != 0 {
		t.Fatalf("recall without labels = %v", got)
	}
}

func TestRankingMetrics(t *testing.T) {
	relevant := []bool{false, true, true, false}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"precision@2", PrecisionAtK(relevant, 2), 0.5},
		{"precision@4", PrecisionAtK(relevant, 4), 0.5},
		{"precision all", PrecisionAtK(relevant, 0), 0.5},
		{"recall@2", RecallAtK(relevant, 4, 2), 0.25},
		{"recall@4", RecallAtK(relevant, 2, 4), 1},
		{"mrr", MRR(relevant), 0.5},
		{"hit rate", HitRate(relevant), 1},
		{"mean", MeanScore([]float64{0.2, 0.4, 0.9}), 0.5},
	}
	for _, tt := range tests {
		if !approx(tt.got, tt.want) {
			t.Fatalf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	unsorted := NDCG([]float64{0.5, 0.9}, 2)
	if unsorted <= 0 || unsorted >= 1 {
		t.Fatalf("ndcg of unsorted scores = %v, want in (0,1)", unsorted)
	}
}

func results(scores ...float64) []models.SearchResult {
	out := make([]models.SearchResult, len(scores))
	for i, s := range scores {
		out[i] = models.SearchResult{Score: s, Content: "chunk"}
	}
	return out
}

func TestEvaluateRetrievalProxy(t *testing.T) {
	tc := TestCase{ID: "q", Query: "oil change interval"}

	m := EvaluateRetrieval(results(0.65, 0.82, 0.75, 0.4, 0.3), tc, 5, 0.7)
	if !m.Approximate {
		t.Fatalf("unlabelled metrics should be approximate")
	}
	if !approx(m.PrecisionAtK, 0.4) {
		t.Fatalf("precision = %v, want 0.4", m.PrecisionAtK)
	}
	if m.MRR != 0 {
		t.Fatalf("mrr = %v, want 0 when the top result is below the threshold", m.MRR)
	}
	if m.HitRate != 1 {
		t.Fatalf("hit rate = %v, want 1", m.HitRate)
	}
	if m.RecallAtK != 0 {
		t.Fatalf("recall = %v, want 0", m.RecallAtK)
	}
	if !approx(m.AvgScore, 0.584) {
		t.Fatalf("avg score = %v", m.AvgScore)
	}

	m = EvaluateRetrieval(results(0.9, 0.1), tc, 5, 0.7)
	if m.MRR != 1 {
		t.Fatalf("mrr = %v, want 1 when the top result clears the threshold", m.MRR)
	}
	if !approx(m.PrecisionAtK, 0.2) {
		t.Fatalf("precision = %v, want 1/k", m.PrecisionAtK)
	}

	m = EvaluateRetrieval(nil, tc, 5, 0.7)
	if m.PrecisionAtK != 0 || m.MRR != 0 || m.HitRate != 0 || m.NDCG != 0 {
		t.Fatalf("empty results should score zero, got %+v", m)
	}
}

func TestEvaluateRetrievalLabelled(t *testing.T) {
	tc := TestCase{
		ID:              "q",
		Query:           "tire pressure",
		RelevantDocIDs:  []string{"doc-tires"},
		RelevantSources: []string{"faq.md"},
	}
	res := []models.SearchResult{
		{DocumentID: "doc-brakes", Source: "manual.pdf", Score: 0.95},
		{DocumentID: "doc-tires", Source: "manual.pdf", Score: 0.9},
		{DocumentID: "doc-x", Source: "faq.md", Score: 0.2},
	}

	m := EvaluateRetrieval(res, tc, 3, 0.7)
	if m.Approximate {
		t.Fatalf("labelled metrics should not be approximate")
	}
	if !approx(m.PrecisionAtK, 2.0/3) {
		t.Fatalf("precision = %v", m.PrecisionAtK)
	}
	if !approx(m.RecallAtK, 1) {
		t.Fatalf("recall = %v", m.RecallAtK)
	}
	if !approx(m.MRR, 0.5) {
		t.Fatalf("mrr = %v", m.MRR)
	}
	if m.NDCG <= 0 || m.NDCG >= 1 {
		t.Fatalf("ndcg = %v, want in (0,1)", m.NDCG)
	}

	m = EvaluateRetrieval(res, tc, 1, 0.7)
	if m.HitRate != 0 || m.PrecisionAtK != 0 {
		t.Fatalf("top-1 holds no relevant chunk, got %+v", m)
	}
}

func TestEvaluateRetrievalRecallCountsLabelsOnce(t *testing.T) {
	res := []models.SearchResult{
		{ChunkID: "c1", DocumentID: "d1", Source: "manual.pdf", Score: 0.9},
		{ChunkID: "c2", DocumentID: "d1", Source: "manual.pdf", Score: 0.8},
		{ChunkID: "c3", DocumentID: "d1", Source: "manual.pdf", Score: 0.7},
	}
	tests := []struct {
		name       string
		tc         TestCase
		wantRecall float64
	}{
		{"by source", TestCase{ID: "s", Query: "q", RelevantSources: []string{"manual.pdf"}}, 1},
		{"by document", TestCase{ID: "d", Query: "q", RelevantDocIDs: []string{"d1"}}, 1},
		{"one of two documents", TestCase{ID: "p", Query: "q", RelevantDocIDs: []string{"d1", "d2"}}, 0.5},
		{"duplicate labels", TestCase{ID: "u", Query: "q", RelevantSources: []string{"manual.pdf", "manual.pdf"}}, 1},
	}
	for _, tt := range tests {
		m := EvaluateRetrieval(res, tt.tc, 3, 0.7)
		if !approx(m.RecallAtK, tt.wantRecall) {
			t.Fatalf("%s: recall = %v, want %v", tt.name, m.RecallAtK, tt.wantRecall)
		}
		if !approx(m.PrecisionAtK, 1) || m.HitRate != 1 || !approx(m.MRR, 1) {
			t.Fatalf("%s: per chunk metrics = %+v", tt.name, m)
		}
	}
}

func TestOverallScore(t *testing.T) {
	w := DefaultWeights()
	r := RetrievalMetrics{PrecisionAtK: 1, MRR: 1, HitRate: 1}
	g := GenerationMetrics{Faithfulness: 1, AnswerRelevance: 1, ContextRelevance: 1, Completeness: 1}
	if got := w.Overall(r, g); !approx(got, 1) {
		t.Fatalf("perfect run overall = %v, want 1", got)
	}

	r = RetrievalMetrics{PrecisionAtK: 0.5, MRR: 1, HitRate: 1}
	g = GenerationMetrics{Faithfulness: 0.8, AnswerRelevance: 0.6, ContextRelevance: 0.5}
	want := 0.25*0.8 + 0.25*0.6 + 0.20*0.5 + 0.30*(0.4*0.5+0.3+0.3)
	if got := w.Overall(r, g); !approx(got, want) {
		t.Fatalf("overall = %v, want %v", got, want)
	}
}

func TestWeightsFromConfig(t *testing.T) {
	if got := WeightsFromConfig(config.WeightsConfig{}); got != DefaultWeights() {
		t.Fatalf("empty config should give defaults, got %+v", got)
	}
	one, zero := 1.0, 0.0
	got := WeightsFromConfig(config.WeightsConfig{Faithfulness: &one, MRR: &zero})
	want := DefaultWeights()
	want.Faithfulness = 1
	want.MRR = 0
	if got != want {
		t.Fatalf("partial config: want %+v got %+v", want, got)
	}
}
