package graphrag

import "strings"

type QueryType string

const (
	QueryFactual     QueryType = "factual"
	QueryConceptual  QueryType = "conceptual"
	QueryComparative QueryType = "comparative"
	QueryReasoning   QueryType = "reasoning"
	QueryList        QueryType = "list"
	QueryOther       QueryType = "other"
)

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

type AnswerType string

const (
	AnswerShort      AnswerType = "short"
	AnswerDetailed   AnswerType = "detailed"
	AnswerList       AnswerType = "list"
	AnswerComparison AnswerType = "comparison"
	AnswerOther      AnswerType = "other"
)

// ParseQueryType maps free-text labels ("Concept Explanation", "Comparative Analysis",
// "Reasoning Q&A", ...) onto QueryType. Unknown labels become QueryOther.
func ParseQueryType(s string) QueryType {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case l == "":
		return QueryOther
	case strings.Contains(l, "factual") || strings.Contains(l, "fact"):
		return QueryFactual
	case strings.Contains(l, "concept") || strings.Contains(l, "explanation"):
		return QueryConceptual
	case strings.Contains(l, "compar"):
		return QueryComparative
	case strings.Contains(l, "reason"):
		return QueryReasoning
	case strings.Contains(l, "list"):
		return QueryList
	default:
		return QueryOther
	}
}

func ParseComplexity(s string) Complexity {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(l, "simple"):
		return ComplexitySimple
	case strings.Contains(l, "complex"):
		return ComplexityComplex
	default:
		return ComplexityMedium
	}
}

func ParseAnswerType(s string) AnswerType {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case l == "":
		return AnswerDetailed
	case strings.Contains(l, "brief") || strings.Contains(l, "short"):
		return AnswerShort
	case strings.Contains(l, "detail"):
		return AnswerDetailed
	case strings.Contains(l, "list"):
		return AnswerList
	case strings.Contains(l, "compar"):
		return AnswerComparison
	default:
		return AnswerOther
	}
}

// QueryAnalysis is the request-scoped result of query understanding.
type QueryAnalysis struct {
	OriginalQuery      string            `json:"original_query"`
	QueryType          QueryType         `json:"query_type"`
	KeyEntities        []string          `json:"key_entities"`
	Intent             string            `json:"intent"`
	RelatedConcepts    []string          `json:"related_concepts"`
	Complexity         Complexity        `json:"complexity"`
	ExpectedAnswerType AnswerType        `json:"expected_answer_type"`
	Patterns           []string          `json:"patterns"`
	Temporal           map[string]string `json:"temporal,omitempty"`
	Comparative        bool              `json:"comparative"`
	QueryVector        []float32         `json:"-"`
	ExpandedQueries    []string          `json:"expanded_queries"`
	// Degraded is set when the analysis came from the heuristic fallback.
	Degraded bool `json:"degraded,omitempty"`
}
