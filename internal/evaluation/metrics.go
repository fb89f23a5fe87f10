package evaluation

import (
	"math"
	"sort"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
)

// DefaultRelevanceThreshold is the score above which an unlabelled result
// counts as relevant.
const DefaultRelevanceThreshold = 0.7

type RetrievalMetrics struct {
	PrecisionAtK float64 `json:"precision_at_k"`
	RecallAtK    float64 `json:"recall_at_k"`
	MRR          float64 `json:"mrr"`
	NDCG         float64 `json:"ndcg"`
	HitRate      float64 `json:"hit_rate"`
	AvgScore     float64 `json:"avg_score"`
	// Approximate is set when relevance came from the score threshold
	// instead of labels. RecallAtK is then always 0.
	Approximate bool `json:"approximate"`
}

type GenerationMetrics struct {
	Faithfulness     float64 `json:"faithfulness"`
	AnswerRelevance  float64 `json:"answer_relevance"`
	ContextRelevance float64 `json:"context_relevance"`
	Completeness     float64 `json:"completeness"`
}

type LatencyMetrics struct {
	RetrievalMS  float64 `json:"retrieval_ms"`
	GenerationMS float64 `json:"generation_ms"`
	TotalMS      float64 `json:"total_ms"`
}

// PrecisionAtK is the share of relevant items among the first k. k <= 0
// means the whole list.
func PrecisionAtK(relevant []bool, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	if k <= 0 {
		k = len(relevant)
	}
	return float64(countTrue(relevant, k)) / float64(k)
}

func RecallAtK(relevant []bool, totalRelevant, k int) float64 {
	if totalRelevant == 0 {
		return 0
	}
	if k <= 0 {
		k = len(relevant)
	}
	return float64(countTrue(relevant, k)) / float64(totalRelevant)
}

// MRR is the reciprocal rank of the first relevant item.
func MRR(relevant []bool) float64 {
	for i, ok := range relevant {
		if ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// NDCG compares the DCG of scores in rank order with the DCG of the same
// scores sorted descending.
func NDCG(scores []float64, k int) float64 {
	if len(scores) == 0 {
		return 0
	}
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}
	top := scores[:k]
	ideal := append([]float64(nil), top...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))

	idcg := dcg(ideal)
	if idcg == 0 {
		return 0
	}
	return dcg(top) / idcg
}

func HitRate(relevant []bool) float64 {
	for _, ok := range relevant {
		if ok {
			return 1
		}
	}
	return 0
}

func MeanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func dcg(scores []float64) float64 {
	var sum float64
	for i, s := range scores {
		sum += s / math.Log2(float64(i+2))
	}
	return sum
}

func countTrue(items []bool, k int) int {
	if k > len(items) {
		k = len(items)
	}
	n := 0
	for _, ok := range items[:k] {
		if ok {
			n++
		}
	}
	return n
}

// EvaluateRetrieval scores the first k results of one query. Labelled test
// cases match results by document id, chunk id or source; recall counts the
// distinct labels found in the top k. Unlabelled ones fall back to
// score > threshold.
func EvaluateRetrieval(results []models.SearchResult, tc TestCase, k int, threshold float64) RetrievalMetrics {
	if k <= 0 {
		k = len(results)
	}
	top := results
	if len(top) > k {
		top = top[:k]
	}
	scores := make([]float64, len(top))
	for i, r := range top {
		scores[i] = r.Score
	}

	if tc.Labelled() {
		relevant := make([]bool, len(top))
		gains := make([]float64, len(top))
		matched := make(map[string]struct{})
		for i, r := range top {
			labels := tc.matchedLabels(r)
			if len(labels) == 0 {
				continue
			}
			relevant[i] = true
			gains[i] = 1
			for _, l := range labels {
				matched[l] = struct{}{}
			}
		}
		recall := 0.0
		if total := tc.labelCount(); total > 0 {
			recall = float64(len(matched)) / float64(total)
		}
		return RetrievalMetrics{
			PrecisionAtK: PrecisionAtK(relevant, k),
			RecallAtK:    recall,
			MRR:          MRR(relevant),
			NDCG:         NDCG(gains, k),
			HitRate:      HitRate(relevant),
			AvgScore:     MeanScore(scores),
		}
	}

	m := RetrievalMetrics{
		NDCG:        NDCG(scores, k),
		AvgScore:    MeanScore(scores),
		Approximate: true,
	}
	if len(scores) == 0 {
		return m
	}
	above := 0
	for _, s := range scores {
		if s > threshold {
			above++
		}
	}
	m.PrecisionAtK = float64(above) / float64(k)
	if above > 0 {
		m.HitRate = 1
	}
	if scores[0] > threshold {
		m.MRR = 1
	}
	return m
}

// ScoreWeights combines per-query metrics into the overall score.
type ScoreWeights struct {
	Faithfulness     float64
	AnswerRelevance  float64
	ContextRelevance float64
	Retrieval        float64

	Precision float64
	MRR       float64
	HitRate   float64
}

func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		Faithfulness:     0.25,
		AnswerRelevance:  0.25,
		ContextRelevance: 0.20,
		Retrieval:        0.30,
		Precision:        0.4,
		MRR:              0.3,
		HitRate:          0.3,
	}
}

// WeightsFromConfig overlays the configured weights on DefaultWeights.
func WeightsFromConfig(c config.WeightsConfig) ScoreWeights {
	w := DefaultWeights()
	for _, f := range []struct {
		src *float64
		dst *float64
	}{
		{c.Faithfulness, &w.Faithfulness},
		{c.AnswerRelevance, &w.AnswerRelevance},
		{c.ContextRelevance, &w.ContextRelevance},
		{c.Retrieval, &w.Retrieval},
		{c.Precision, &w.Precision},
		{c.MRR, &w.MRR},
		{c.HitRate, &w.HitRate},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return w
}

func (w ScoreWeights) RetrievalScore(r RetrievalMetrics) float64 {
	return w.Precision*r.PrecisionAtK + w.MRR*r.MRR + w.HitRate*r.HitRate
}

func (w ScoreWeights) Overall(r RetrievalMetrics, g GenerationMetrics) float64 {
	return w.Faithfulness*g.Faithfulness +
		w.AnswerRelevance*g.AnswerRelevance +
		w.ContextRelevance*g.ContextRelevance +
		w.Retrieval*w.RetrievalScore(r)
}
