package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/graphrag-core/internal/cache"
	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
	ops     []string
}

func (s *stubCompleter) Complete(_ context.Context, op, prompt string) (string, error) {
	s.ops = append(s.ops, op)
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func fused(text string, scores ...float64) graphrag.FusedContext {
	fc := graphrag.FusedContext{Text: text}
	sum := 0.0
	for _, s := range scores {
		fc.Segments = append(fc.Segments, graphrag.ContextSegment{Content: "x", Score: s})
		sum += s
	}
	if len(scores) > 0 {
		fc.OverallRelevance = sum / float64(len(scores))
	}
	return fc
}

func TestTemplateSelection(t *testing.T) {
	cases := map[graphrag.QueryType]string{
		graphrag.QueryFactual:     "answer the user's factual question",
		graphrag.QueryConceptual:  "explain the relevant concepts in detail",
		graphrag.QueryComparative: "conduct a comparative analysis",
		graphrag.QueryReasoning:   "conduct reasoning analysis",
		graphrag.QueryList:        "provide answer in list format",
		graphrag.QueryOther:       "explain the relevant concepts in detail",
	}
	for qt, want := range cases {
		stub := &stubCompleter{reply: "ok"}
		New(nil, stub, nil, Config{}).Generate(context.Background(), "Q?", fused("CTX"), graphrag.QueryAnalysis{QueryType: qt})
		if len(stub.prompts) != 1 || !strings.Contains(stub.prompts[0], want) {
			t.Fatalf("%s: prompts=%q", qt, stub.prompts)
		}
		if !strings.Contains(stub.prompts[0], "Context:\nCTX\n\nUser Question: Q?\n") {
			t.Fatalf("%s: variables not rendered: %q", qt, stub.prompts[0])
		}
	}
}

func TestPostProcess(t *testing.T) {
	if got := postProcess("  Paris is the capital. It is large!  ", graphrag.AnswerShort); got != "Paris is the capital." {
		t.Fatalf("short=%q", got)
	}
	if got := postProcess("Is it? Yes", graphrag.AnswerShort); got != "Is it." {
		t.Fatalf("short question=%q", got)
	}
	if got := postProcess("alpha\n\nbeta\n\ngamma", graphrag.AnswerList); got != "1. alpha\n2. beta\n3. gamma\n" {
		t.Fatalf("list=%q", got)
	}
	if got := postProcess("- already\n- listed", graphrag.AnswerList); got != "- already\n- listed" {
		t.Fatalf("list kept=%q", got)
	}
	if got := postProcess("single paragraph", graphrag.AnswerList); got != "single paragraph" {
		t.Fatalf("list single=%q", got)
	}
	if got := postProcess("A beats B", graphrag.AnswerComparison); got != "Comparative Analysis:\nA beats B" {
		t.Fatalf("comparison=%q", got)
	}
	if got := postProcess("Similarities: both", graphrag.AnswerComparison); got != "Similarities: both" {
		t.Fatalf("comparison kept=%q", got)
	}
	if got := postProcess(" as is ", graphrag.AnswerDetailed); got != "as is" {
		t.Fatalf("detailed=%q", got)
	}
}

func TestEmptyContextSkipsModel(t *testing.T) {
	stub := &stubCompleter{reply: "should not be used"}
	g := New(nil, stub, nil, Config{})
	got := g.GenerateStructured(context.Background(), "q", fused("  "), graphrag.QueryAnalysis{})
	if got.MainAnswer != InsufficientInformation || len(stub.prompts) != 0 {
		t.Fatalf("answer=%q prompts=%d", got.MainAnswer, len(stub.prompts))
	}
	if got.SourceCount != 0 || got.Confidence != 0 || got.AnswerType != graphrag.AnswerDetailed {
		t.Fatalf("structured=%+v", got)
	}
}

func TestGenerationFailureFallback(t *testing.T) {
	stub := &stubCompleter{err: errors.New("upstream 503")}
	g := New(nil, stub, nil, Config{})
	ctxText := strings.Repeat("é", 600)
	got := g.Generate(context.Background(), "q", fused(ctxText, 0.9), graphrag.QueryAnalysis{})
	want := fallbackPrefix + strings.Repeat("é", 500) + fallbackSuffix
	if got != want {
		t.Fatalf("fallback mismatch: len=%d", len(got))
	}
}

func TestStructuredConfidenceAndKeyPoints(t *testing.T) {
	stub := &stubCompleter{reply: "Machine learning learns from data. It powers search! Short. Models generalise to new inputs? Extra sentence here."}
	g := New(nil, stub, nil, Config{})
	a := graphrag.QueryAnalysis{Complexity: graphrag.ComplexityMedium, ExpectedAnswerType: graphrag.AnswerDetailed}
	got := g.GenerateStructured(context.Background(), "q", fused("ctx", 0.9, 0.9), a)
	if got.SourceCount != 2 {
		t.Fatalf("sources=%d", got.SourceCount)
	}
	if d := got.Confidence - 0.72; d > 1e-9 || d < -1e-9 {
		t.Fatalf("confidence=%v", got.Confidence)
	}
	want := []string{"Machine learning learns from data", "It powers search", "Models generalise to new inputs"}
	if len(got.KeyPoints) != 3 {
		t.Fatalf("key points=%q", got.KeyPoints)
	}
	for i := range want {
		if got.KeyPoints[i] != want[i] {
			t.Fatalf("key points=%q", got.KeyPoints)
		}
	}
}

func TestConfidenceFactors(t *testing.T) {
	fc := fused("x", 1, 1)
	for c, want := range map[graphrag.Complexity]float64{
		graphrag.ComplexitySimple:  1,
		graphrag.ComplexityMedium:  0.8,
		graphrag.ComplexityComplex: 0.6,
		"":                         0.8,
	} {
		if got := Confidence(fc, graphrag.QueryAnalysis{Complexity: c}); got != want {
			t.Fatalf("%q: confidence=%v want %v", c, got, want)
		}
	}
}

func TestAnswersAreMemoised(t *testing.T) {
	stub := &stubCompleter{reply: "cached answer"}
	g := New(nil, stub, cache.NewMemory(0), Config{Model: "m"})
	a := graphrag.QueryAnalysis{QueryType: graphrag.QueryFactual}
	for i := 0; i < 3; i++ {
		if got := g.Generate(context.Background(), "q", fused("ctx"), a); got != "cached answer" {
			t.Fatalf("answer=%q", got)
		}
	}
	if len(stub.prompts) != 1 {
		t.Fatalf("model calls=%d", len(stub.prompts))
	}
	g.Generate(context.Background(), "q", fused("other ctx"), a)
	if len(stub.prompts) != 2 {
		t.Fatalf("context change should miss the cache")
	}
}

func TestConversationalAndExplanatory(t *testing.T) {
	stub := &stubCompleter{reply: " reply "}
	g := New(nil, stub, nil, Config{})
	if got := g.GenerateConversational(context.Background(), "q", fused("ctx"), graphrag.QueryAnalysis{}, ""); got != "reply" {
		t.Fatalf("conversational=%q", got)
	}
	if !strings.Contains(stub.prompts[0], "Conversation History:\nNone\n") {
		t.Fatalf("history default missing: %q", stub.prompts[0])
	}
	if got := g.GenerateExplanatory(context.Background(), "q", fused("ctx"), graphrag.QueryAnalysis{}); got != "reply" {
		t.Fatalf("explanatory=%q", got)
	}
	if stub.ops[1] != "answer.explanatory" {
		t.Fatalf("ops=%v", stub.ops)
	}

	failing := &stubCompleter{err: errors.New("down")}
	g = New(nil, failing, nil, Config{})
	got := g.GenerateExplanatory(context.Background(), "q", fused("ctx"), graphrag.QueryAnalysis{})
	if !strings.HasPrefix(got, fallbackPrefix) || len(failing.prompts) != 2 {
		t.Fatalf("explanatory fallback=%q calls=%d", got, len(failing.prompts))
	}
}
