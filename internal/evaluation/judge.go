package evaluation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"genai-auto/internal/llmservice"
	"genai-auto/internal/models"
)

// UncertainScore is used when the judge reply is not a number.
const UncertainScore = 0.5

const (
	faithfulnessSystem = `You are an evaluation judge. Your task is to evaluate if an answer is faithful to the given contexts.

Faithfulness means the answer only contains information that can be derived from the contexts.

Score from 0 to 1:
- 1.0: Completely faithful, all claims are supported by contexts
- 0.5: Partially faithful, some claims are not supported
- 0.0: Not faithful, contains hallucinated information

Respond with ONLY a number between 0 and 1.`
	faithfulnessUser = `Contexts:
%s

Answer:
%s

Faithfulness score (0-1):`

	answerRelevanceSystem = `You are an evaluation judge. Your task is to evaluate if an answer is relevant to the question.

Answer relevance means the answer directly addresses what was asked.

Score from 0 to 1:
- 1.0: Highly relevant, directly and completely answers the question
- 0.5: Partially relevant, addresses some aspects
- 0.0: Not relevant, does not answer the question

Respond with ONLY a number between 0 and 1.`
	answerRelevanceUser = `Question:
%s

Answer:
%s

Answer relevance score (0-1):`

	contextRelevanceSystem = `You are an evaluation judge. Your task is to evaluate if retrieved contexts are relevant to a query.

Context relevance means the contexts contain information useful for answering the query.

Score from 0 to 1:
- 1.0: Highly relevant, contexts contain all needed information
- 0.5: Partially relevant, some useful information
- 0.0: Not relevant, contexts don't help answer the query

Respond with ONLY a number between 0 and 1.`
	contextRelevanceUser = `Query:
%s

Retrieved Contexts:
%s

Context relevance score (0-1):`

	completenessSystem = `You are an evaluation judge. Your task is to evaluate if an answer is complete.

Completeness means the answer fully addresses all aspects of the question.

%s

Score from 0 to 1:
- 1.0: Complete, addresses all aspects of the question
- 0.5: Partial, misses some aspects
- 0.0: Incomplete, major aspects missing

Respond with ONLY a number between 0 and 1.`
	completenessUser = `Question:
%s

Answer:
%s

Completeness score (0-1):`

	expectedAnswerRef = "Expected answer for reference: %s"
)

// Judge scores generated answers with rubric prompts at temperature 0.
type Judge struct {
	completer llmservice.Completer
	timeout   time.Duration
}

// NewJudge returns a judge; timeout bounds each call when positive.
func NewJudge(completer llmservice.Completer, timeout time.Duration) *Judge {
	return &Judge{completer: completer, timeout: timeout}
}

func (j *Judge) Faithfulness(ctx context.Context, answer string, contexts []string) (float64, error) {
	return j.score(ctx, "faithfulness", faithfulnessSystem,
		fmt.Sprintf(faithfulnessUser, strings.Join(contexts, models.ContextSeparator), answer))
}

func (j *Judge) AnswerRelevance(ctx context.Context, query, answer string) (float64, error) {
	return j.score(ctx, "answer_relevance", answerRelevanceSystem,
		fmt.Sprintf(answerRelevanceUser, query, answer))
}

func (j *Judge) ContextRelevance(ctx context.Context, query string, contexts []string) (float64, error) {
	return j.score(ctx, "context_relevance", contextRelevanceSystem,
		fmt.Sprintf(contextRelevanceUser, query, strings.Join(contexts, models.ContextSeparator)))
}

// Completeness includes the reference answer in the rubric when one is given.
func (j *Judge) Completeness(ctx context.Context, query, answer, expected string) (float64, error) {
	ref := ""
	if expected != "" {
		ref = fmt.Sprintf(expectedAnswerRef, expected)
	}
	return j.score(ctx, "completeness", fmt.Sprintf(completenessSystem, ref),
		fmt.Sprintf(completenessUser, query, answer))
}

// Evaluate runs the four rubric calls concurrently. The first completer
// error cancels the others and is returned.
func (j *Judge) Evaluate(ctx context.Context, query, answer string, contexts []string, expected string) (GenerationMetrics, error) {
	var m GenerationMetrics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		m.Faithfulness, err = j.Faithfulness(gctx, answer, contexts)
		return err
	})
	g.Go(func() (err error) {
		m.AnswerRelevance, err = j.AnswerRelevance(gctx, query, answer)
		return err
	})
	g.Go(func() (err error) {
		m.ContextRelevance, err = j.ContextRelevance(gctx, query, contexts)
		return err
	})
	g.Go(func() (err error) {
		m.Completeness, err = j.Completeness(gctx, query, answer, expected)
		return err
	})
	if err := g.Wait(); err != nil {
		return GenerationMetrics{}, err
	}
	return m, nil
}

func (j *Judge) score(ctx context.Context, axis, system, user string) (float64, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	reply, err := j.completer.Complete(ctx, system, user, 0)
	if err != nil {
		return 0, fmt.Errorf("judge %s: %w", axis, err)
	}
	s, ok := parseScore(reply)
	if !ok {
		log.Warn().Str("axis", axis).Str("reply", reply).Msg("Judge reply is not a score, using 0.5")
	}
	return s, nil
}

// ParseScore reads a bare number, clamped to [0, 1]. Anything else yields
// UncertainScore.
func ParseScore(reply string) float64 {
	s, _ := parseScore(reply)
	return s
}

func parseScore(reply string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil || math.IsNaN(v) {
		return UncertainScore, false
	}
	return math.Max(0, math.Min(1, v)), true
}
