package graphrag

import "sort"

// Scored wraps an item with its score.
type Scored[T any] struct {
	Item  T       `json:"item"`
	Score float64 `json:"score"`
}

// SortScored orders by score descending; ties keep their original order.
func SortScored[T any](items []Scored[T]) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
}

func Items[T any](items []Scored[T]) []T {
	out := make([]T, 0, len(items))
	for _, s := range items {
		out = append(out, s.Item)
	}
	return out
}

type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceEntity   SourceType = "entity"
	SourceRelation SourceType = "relation"
)

type ContextSegment struct {
	Content    string         `json:"content"`
	SourceType SourceType     `json:"source_type"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type FusedContext struct {
	Text             string                          `json:"text"`
	Segments         []ContextSegment                `json:"segments"`
	OverallRelevance float64                         `json:"overall_relevance"`
	ByType           map[SourceType][]ContextSegment `json:"by_type,omitempty"`
}

type StructuredAnswer struct {
	MainAnswer  string     `json:"main_answer"`
	Confidence  float64    `json:"confidence"`
	SourceCount int        `json:"source_count"`
	AnswerType  AnswerType `json:"answer_type"`
	KeyPoints   []string   `json:"key_points"`
}
