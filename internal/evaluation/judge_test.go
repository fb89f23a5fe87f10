package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// rubricCompleter answers each rubric with a fixed reply, keyed by a
// phrase of its system prompt.
type rubricCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	temps   []float64
	systems []string
}

func (c *rubricCompleter) Complete(_ context.Context, system, _ string, temperature float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.temps = append(c.temps, temperature)
	c.systems = append(c.systems, system)
	if c.err != nil {
		return "", c.err
	}
	for phrase, reply := range c.replies {
		if strings.Contains(system, phrase) {
			return reply, nil
		}
	}
	return "0.5", nil
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"0.8", 0.8},
		{"  1 \n", 1},
		{"1.7", 1},
		{"-0.3", 0},
		{"abc", UncertainScore},
		{"Score: 0.9", UncertainScore},
		{"NaN", UncertainScore},
		{"", UncertainScore},
	}
	for _, tt := range tests {
		if got := ParseScore(tt.reply); got != tt.want {
			t.Fatalf("ParseScore(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}

func TestJudgeEvaluate(t *testing.T) {
	c := &rubricCompleter{replies: map[string]string{
		"faithful to the given contexts": "0.9",
		"relevant to the question":       "abc",
		"relevant to a query":            "1.7",
		"is complete":                    "0.4",
	}}
	j := NewJudge(c, time.Second)

	m, err := j.Evaluate(context.Background(), "oil?", "Every 10,000 km.", []string{"ctx one", "ctx two"}, "10,000 km")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if m.Faithfulness != 0.9 {
		t.Fatalf("faithfulness = %v", m.Faithfulness)
	}
	if m.AnswerRelevance != UncertainScore {
		t.Fatalf("answer relevance = %v, want fallback", m.AnswerRelevance)
	}
	if m.ContextRelevance != 1 {
		t.Fatalf("context relevance = %v, want clamped to 1", m.ContextRelevance)
	}
	if m.Completeness != 0.4 {
		t.Fatalf("completeness = %v", m.Completeness)
	}

	if len(c.temps) != 4 {
		t.Fatalf("judge made %d calls, want 4", len(c.temps))
	}
	for _, temp := range c.temps {
		if temp != 0 {
			t.Fatalf("judge temperature = %v, want 0", temp)
		}
	}
}

func TestJudgeCompletenessReference(t *testing.T) {
	c := &rubricCompleter{}
	j := NewJudge(c, 0)

	if _, err := j.Completeness(context.Background(), "q", "a", "50 liters"); err != nil {
		t.Fatalf("Completeness: %v", err)
	}
	if _, err := j.Completeness(context.Background(), "q", "a", ""); err != nil {
		t.Fatalf("Completeness: %v", err)
	}
	if !strings.Contains(c.systems[0], "Expected answer for reference: 50 liters") {
		t.Fatalf("reference answer missing from rubric:\n%s", c.systems[0])
	}
	if strings.Contains(c.systems[1], "Expected answer") {
		t.Fatalf("rubric without reference mentions one:\n%s", c.systems[1])
	}
}

func TestJudgePropagatesErrors(t *testing.T) {
	boom := errors.New("model offline")
	j := NewJudge(&rubricCompleter{err: boom}, 0)

	_, err := j.Evaluate(context.Background(), "q", "a", nil, "")
	if !errors.Is(err, boom) {
		t.Fatalf("Evaluate error = %v, want %v", err, boom)
	}
}
