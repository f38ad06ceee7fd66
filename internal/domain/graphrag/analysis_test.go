package graphrag

import "testing"

func TestParseLabels(t *testing.T) {
	qt := map[string]QueryType{
		"Factual Query":        QueryFactual,
		"Concept Explanation":  QueryConceptual,
		"Comparative Analysis": QueryComparative,
		"Reasoning Q&A":        QueryReasoning,
		"List Query":           QueryList,
		"Others":               QueryOther,
		"":                     QueryOther,
	}
	for in, want := range qt {
		if got := ParseQueryType(in); got != want {
			t.Fatalf("ParseQueryType(%q)=%s want %s", in, got, want)
		}
	}
	if ParseComplexity("Complex") != ComplexityComplex || ParseComplexity("Simple") != ComplexitySimple {
		t.Fatalf("complexity mapping")
	}
	if ParseComplexity("unknown") != ComplexityMedium {
		t.Fatalf("complexity default")
	}
	at := map[string]AnswerType{
		"Brief Answer":         AnswerShort,
		"Detailed Explanation": AnswerDetailed,
		"List":                 AnswerList,
		"Comparison Table":     AnswerComparison,
		"Others":               AnswerOther,
	}
	for in, want := range at {
		if got := ParseAnswerType(in); got != want {
			t.Fatalf("ParseAnswerType(%q)=%s want %s", in, got, want)
		}
	}
}

func TestSortScoredStable(t *testing.T) {
	in := []Scored[string]{{"a", 0.5}, {"b", 0.9}, {"c", 0.5}, {"d", 0.9}}
	SortScored(in)
	got := Items(in)
	want := []string{"b", "d", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order=%v", got)
		}
	}
}
