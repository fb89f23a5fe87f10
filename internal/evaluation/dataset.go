package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"genai-auto/internal/helper"
	"genai-auto/internal/models"
)

var (
	ErrDuplicateTestCase = errors.New("duplicate test case id")

	validate = validator.New()
)

const (
	defaultCategory   = "general"
	defaultDifficulty = "medium"
)

type TestCase struct {
	ID              string   `json:"id" validate:"required"`
	Query           string   `json:"query" validate:"required"`
	ExpectedAnswer  string   `json:"expected_answer,omitempty"`
	RelevantDocIDs  []string `json:"relevant_doc_ids"`
	RelevantSources []string `json:"relevant_sources"`
	Category        string   `json:"category"`
	Difficulty      string   `json:"difficulty" validate:"oneof=easy medium hard"`
	Tags            []string `json:"tags"`
}

// Labelled reports whether ground truth relevance exists for the query.
func (tc TestCase) Labelled() bool {
	return len(tc.RelevantDocIDs) > 0 || len(tc.RelevantSources) > 0
}

// matchedLabels returns the labels r satisfies, keyed "doc:<id>" or
// "source:<name>". Every chunk of a document matches the same labels.
func (tc TestCase) matchedLabels(r models.SearchResult) []string {
	var labels []string
	for _, id := range tc.RelevantDocIDs {
		if id != "" && (id == r.DocumentID || id == r.ChunkID) {
			labels = append(labels, "doc:"+id)
		}
	}
	if r.Source != "" && slices.Contains(tc.RelevantSources, r.Source) {
		labels = append(labels, "source:"+r.Source)
	}
	return labels
}

// labelCount is the number of distinct labels on the test case.
func (tc TestCase) labelCount() int {
	seen := make(map[string]struct{}, len(tc.RelevantDocIDs)+len(tc.RelevantSources))
	for _, id := range tc.RelevantDocIDs {
		seen["doc:"+id] = struct{}{}
	}
	for _, src := range tc.RelevantSources {
		seen["source:"+src] = struct{}{}
	}
	return len(seen)
}

func (tc *TestCase) applyDefaults() {
	if tc.Category == "" {
		tc.Category = defaultCategory
	}
	if tc.Difficulty == "" {
		tc.Difficulty = defaultDifficulty
	}
}

// Dataset is an ordered list of test cases with unique ids.
type Dataset struct {
	Name      string     `json:"name"`
	TestCases []TestCase `json:"test_cases"`
}

func NewDataset(name string) *Dataset {
	return &Dataset{Name: name}
}

// Add validates and appends test cases. Nothing is added when any of them
// is invalid or reuses an id.
func (d *Dataset) Add(cases ...TestCase) error {
	seen := make(map[string]struct{}, len(d.TestCases)+len(cases))
	for _, tc := range d.TestCases {
		seen[tc.ID] = struct{}{}
	}
	prepared := make([]TestCase, 0, len(cases))
	for _, tc := range cases {
		tc.applyDefaults()
		if err := validate.Struct(tc); err != nil {
			return fmt.Errorf("invalid test case %q: %w", tc.ID, err)
		}
		if _, dup := seen[tc.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTestCase, tc.ID)
		}
		seen[tc.ID] = struct{}{}
		prepared = append(prepared, tc)
	}
	d.TestCases = append(d.TestCases, prepared...)
	return nil
}

func (d *Dataset) Len() int { return len(d.TestCases) }

func (d *Dataset) ByCategory(category string) []TestCase {
	return d.where(func(tc TestCase) bool { return tc.Category == category })
}

func (d *Dataset) ByDifficulty(difficulty string) []TestCase {
	return d.where(func(tc TestCase) bool { return tc.Difficulty == difficulty })
}

func (d *Dataset) ByTag(tag string) []TestCase {
	return d.where(func(tc TestCase) bool { return slices.Contains(tc.Tags, tag) })
}

// Filter keeps test cases matching any of categories and any of
// difficulties. An empty list does not filter.
func (d *Dataset) Filter(categories, difficulties []string) []TestCase {
	return d.where(func(tc TestCase) bool {
		if len(categories) > 0 && !slices.Contains(categories, tc.Category) {
			return false
		}
		return len(difficulties) == 0 || slices.Contains(difficulties, tc.Difficulty)
	})
}

func (d *Dataset) where(keep func(TestCase) bool) []TestCase {
	var out []TestCase
	for _, tc := range d.TestCases {
		if keep(tc) {
			out = append(out, tc)
		}
	}
	return out
}

func (d *Dataset) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	log.Info().Str("path", path).Int("count", d.Len()).Msg("Dataset saved")
	return nil
}

func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw Dataset
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	if raw.Name == "" {
		raw.Name = "loaded"
	}
	d := NewDataset(raw.Name)
	if err := d.Add(raw.TestCases...); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("count", d.Len()).Msg("Dataset loaded")
	return d, nil
}
