package query

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

type fakeCompleter struct {
	resp string
	err  error
}

func (f fakeCompleter) Complete(ctx context.Context, op, prompt string) (string, error) {
	return f.resp, f.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

const sampleResponse = `Query Type: [Concept Explanation]
Key Entities: [Machine Learning, Neural Network]
Query Intent: [Understand what machine learning is]
Related Concepts: [AI]
Query Complexity: [Simple]
Expected Answer Type: [Detailed Explanation]`

func TestAnalyzeParsesResponse(t *testing.T) {
	a := New(nil, fakeCompleter{resp: sampleResponse}, fakeEmbedder{vec: []float32{1, 0}})
	out := a.Analyze(context.Background(), "What is machine learning?")

	if out.QueryType != graphrag.QueryConceptual || out.Complexity != graphrag.ComplexitySimple {
		t.Fatalf("type=%s complexity=%s", out.QueryType, out.Complexity)
	}
	if len(out.KeyEntities) != 2 || out.KeyEntities[1] != "Neural Network" {
		t.Fatalf("entities=%v", out.KeyEntities)
	}
	if out.Intent != "Understand what machine learning is" {
		t.Fatalf("intent=%q", out.Intent)
	}
	if out.ExpectedAnswerType != graphrag.AnswerDetailed || out.Degraded {
		t.Fatalf("answer type=%s degraded=%v", out.ExpectedAnswerType, out.Degraded)
	}
	if len(out.QueryVector) != 2 {
		t.Fatalf("vector=%v", out.QueryVector)
	}
	// 2 entities * 3 + 1 concept + 2 conceptual = 9
	if len(out.ExpandedQueries) != 9 {
		t.Fatalf("expanded=%v", out.ExpandedQueries)
	}
	if out.ExpandedQueries[6] != "relationship between AI and Machine Learning, Neural Network" {
		t.Fatalf("concept expansion=%q", out.ExpandedQueries[6])
	}
	if !contains(out.Patterns, "question word") || !contains(out.Patterns, "definition") {
		t.Fatalf("patterns=%v", out.Patterns)
	}
}

func TestAnalyzeDefaultsForMissingFields(t *testing.T) {
	a := New(nil, fakeCompleter{resp: "nothing useful"}, nil)
	out := a.Analyze(context.Background(), "tell me")
	if out.QueryType != graphrag.QueryOther || out.Complexity != graphrag.ComplexityMedium {
		t.Fatalf("out=%+v", out)
	}
	if out.ExpectedAnswerType != graphrag.AnswerDetailed || out.Intent != "Unknown Intent" {
		t.Fatalf("out=%+v", out)
	}
}

func TestExpansionCapAndDistinct(t *testing.T) {
	in := graphrag.QueryAnalysis{
		OriginalQuery:   "q",
		QueryType:       graphrag.QueryComparative,
		KeyEntities:     []string{"A", "B", "C", "D", "A"},
		RelatedConcepts: []string{"x", "y", "z", "w", "v"},
	}
	out := expand(in)
	if len(out) != maxExpandedQueries {
		t.Fatalf("len=%d", len(out))
	}
	seen := map[string]bool{}
	for _, q := range out {
		if seen[q] {
			t.Fatalf("duplicate %q", q)
		}
		seen[q] = true
	}
	if out[0] != "definition of A" || out[3] != "definition of B" {
		t.Fatalf("order=%v", out)
	}
}

func TestFallbackOnGeneratorFailure(t *testing.T) {
	a := New(nil, fakeCompleter{err: errors.New("down")}, fakeEmbedder{vec: []float32{0.5}})
	out := a.Analyze(context.Background(), "How does Deep Learning relate to Alan Turing?")
	if !out.Degraded || out.Intent != "General Query" || out.QueryType != graphrag.QueryOther {
		t.Fatalf("out=%+v", out)
	}
	if len(out.KeyEntities) != 3 || out.KeyEntities[1] != "Deep Learning" || out.KeyEntities[2] != "Alan Turing" {
		t.Fatalf("entities=%v", out.KeyEntities)
	}
	if len(out.Patterns) != 1 || out.Patterns[0] != "general" {
		t.Fatalf("patterns=%v", out.Patterns)
	}
	if len(out.QueryVector) != 1 {
		t.Fatalf("fallback should still embed")
	}
}

func TestFallbackEmbeddingFailureLeavesVectorNil(t *testing.T) {
	a := New(nil, fakeCompleter{err: errors.New("down")}, fakeEmbedder{err: errors.New("down")})
	out := a.Analyze(context.Background(), "anything")
	if out.QueryVector != nil || !out.Degraded {
		t.Fatalf("out=%+v", out)
	}
}

func TestTemporalAndComparative(t *testing.T) {
	tm := extractTemporal("sales in 2023 year compared to 3 month ago and today")
	if tm["year"] != "2023" || tm["month"] != "3" || tm["relative"] != "today" {
		t.Fatalf("temporal=%v", tm)
	}
	if _, ok := tm["day"]; ok {
		t.Fatalf("today must not be read as a day count: %v", tm)
	}
	if !detectComparative("Python vs Go") {
		t.Fatalf("vs should be comparative")
	}
	if !detectComparative("bread and butter") {
		t.Fatalf("substring 'and' should be comparative")
	}
	if detectComparative("what is go") {
		t.Fatalf("plain question should not be comparative")
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
