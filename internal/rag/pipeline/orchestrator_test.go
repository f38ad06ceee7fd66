package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/engine/mock"
	"github.com/yungbote/graphrag-core/internal/platform/pool"
	"github.com/yungbote/graphrag-core/internal/platform/retry"
	"github.com/yungbote/graphrag-core/internal/rag/answer"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
	"github.com/yungbote/graphrag-core/internal/rag/fusion"
	"github.com/yungbote/graphrag-core/internal/rag/graph"
	"github.com/yungbote/graphrag-core/internal/rag/query"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
	"github.com/yungbote/graphrag-core/internal/rag/ranking"
	"github.com/yungbote/graphrag-core/internal/rag/textgen"
	"github.com/yungbote/graphrag-core/internal/rag/vector"
)

const mlQuestion = "What is machine learning?"

const analysisReply = `Query Type: Concept Explanation
Key Entities: [Machine Learning]
Query Intent: [understand machine learning]
Query Complexity: Medium
Expected Answer Type: Detailed Explanation`

type fixture struct {
	eng   *mock.Engine
	graph *graph.MemoryGraph
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng := mock.New()
	eng.SetVector(mlQuestion, []float32{1, 0})
	eng.Reply("analyze the following user query", analysisReply)

	noRetry := retry.Policy{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	gw := embedding.New(nil, eng, nil, nil, embedding.Config{Model: "m", Retry: noRetry})
	gen := textgen.New(nil, eng, textgen.Config{Model: "g", Retry: noRetry})

	interactive, err := pool.New("interactive", pool.Config{Capacity: 4, MaxBlockingTasks: 8}, nil)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	background, err := pool.New("background", pool.Config{Capacity: 1, MaxBlockingTasks: 1}, nil)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	mg := graph.NewMemoryGraph()
	defaults := fallbackDefaults
	return &fixture{
		eng:   eng,
		graph: mg,
		deps: Deps{
			Analyzer:    query.New(nil, gen, gw),
			Embedder:    gw,
			Documents:   vector.New[graphrag.Document](nil, gw),
			Graph:       graph.NewTraverser(nil, mg),
			Ranker:      ranking.New[graphrag.Document](nil),
			Fuser:       fusion.New(nil, gw),
			Answers:     answer.New(nil, gen, nil, answer.Config{Model: "g"}),
			Interactive: interactive,
			Background:  background,
			Defaults:    &defaults,
			TaskTimeout: 5 * time.Second,
			ResultTTL:   time.Minute,
		},
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(f.deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = o.Close(time.Second) })
	return o
}

func mlDocument() graphrag.Document {
	return graphrag.Document{
		ID:        "d1",
		Title:     "Intro to ML",
		Content:   "Machine learning is a branch of artificial intelligence that builds models from data.",
		Source:    "wiki",
		Embedding: []float32{0.9, 0.43589},
	}
}

func TestRetrieveEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.deps.Graph = nil
	o := f.orchestrator(t)

	ans, err := o.Retrieve(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ans.SourceCount < 1 {
		t.Fatalf("sourceCount=%d", ans.SourceCount)
	}
	if math.Abs(ans.Confidence-0.72) > 1e-3 {
		t.Fatalf("confidence=%v", ans.Confidence)
	}
	if ans.AnswerType != graphrag.AnswerDetailed || ans.MainAnswer == "" {
		t.Fatalf("answer=%+v", ans)
	}
}

func TestRetrieveIncludesGraphRelations(t *testing.T) {
	f := newFixture(t)
	for _, e := range []graphrag.Entity{{Name: "Machine Learning", Type: "Field"}, {Name: "Statistics", Type: "Field"}} {
		if err := f.graph.AddEntity(e); err != nil {
			t.Fatalf("AddEntity: %v", err)
		}
	}
	if err := f.graph.AddRelation(graphrag.Relation{Source: "Machine Learning", Target: "Statistics", Type: "BUILDS_ON"}); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}
	o := f.orchestrator(t)

	ans, err := o.Retrieve(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	// one document paragraph plus one relation
	if ans.SourceCount != 2 {
		t.Fatalf("sourceCount=%d", ans.SourceCount)
	}
	prompts := f.eng.Prompts()
	last := prompts[len(prompts)-1]
	if !strings.Contains(last, "Related Relations:") || !strings.Contains(last, "BUILDS_ON") {
		t.Fatalf("relation missing from context: %q", last)
	}
}

func TestRetrieveEmptyPools(t *testing.T) {
	f := newFixture(t)
	o := f.orchestrator(t)
	ans, err := o.Retrieve(context.Background(), mlQuestion, Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ans.MainAnswer != answer.InsufficientInformation {
		t.Fatalf("main=%q", ans.MainAnswer)
	}
	if ans.SourceCount != 0 || ans.Confidence != 0 {
		t.Fatalf("answer=%+v", ans)
	}
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.eng.FailEmbed(errors.New("embedding backend down"), -1)
	o := f.orchestrator(t)

	_, err := o.Retrieve(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if !ragerr.Is(err, ragerr.TransientDependency) {
		t.Fatalf("kind=%v err=%v", ragerr.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), StageVectorRetrieve) {
		t.Fatalf("stage missing: %v", err)
	}
}

func TestRetrieveRejectsBlankQuestion(t *testing.T) {
	o := newFixture(t).orchestrator(t)
	if _, err := o.Retrieve(context.Background(), "  ", Options{}); !ragerr.Is(err, ragerr.InvalidArgument) {
		t.Fatalf("err=%v", err)
	}
}

type staticSource struct {
	docs  []graphrag.Document
	ents  []graphrag.Entity
	calls int
}

func (s *staticSource) Documents(context.Context) ([]graphrag.Document, error) {
	s.calls++
	return s.docs, nil
}

func (s *staticSource) Entities(context.Context) ([]graphrag.Entity, error) {
	return s.ents, nil
}

func TestRetrieveLoadsCandidatesFromSource(t *testing.T) {
	f := newFixture(t)
	f.deps.Graph = nil
	src := &staticSource{docs: []graphrag.Document{mlDocument()}}
	f.deps.Source = src
	o := f.orchestrator(t)

	ans, err := o.Retrieve(context.Background(), mlQuestion, Options{})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if src.calls != 1 || ans.SourceCount != 1 {
		t.Fatalf("calls=%d sources=%d", src.calls, ans.SourceCount)
	}
}

type blockingAnswers struct {
	release chan struct{}
}

func (b *blockingAnswers) GenerateStructured(ctx context.Context, _ string, fc graphrag.FusedContext, _ graphrag.QueryAnalysis) graphrag.StructuredAnswer {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return graphrag.StructuredAnswer{MainAnswer: "done", SourceCount: len(fc.Segments), AnswerType: graphrag.AnswerDetailed}
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) PollResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, err := o.Poll(id)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if res.Status != StatusRunning {
			return res
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never finished", id)
	return PollResult{}
}

func TestSubmitPollLifecycle(t *testing.T) {
	f := newFixture(t)
	blk := &blockingAnswers{release: make(chan struct{})}
	f.deps.Answers = blk
	o := f.orchestrator(t)

	id, err := o.Submit(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	if err != nil || id == "" {
		t.Fatalf("Submit: id=%q err=%v", id, err)
	}
	res, err := o.Poll(id)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.Status != StatusRunning || res.Answer != nil || res.Error != "" {
		t.Fatalf("before release: %+v", res)
	}

	close(blk.release)
	res = waitTerminal(t, o, id)
	if res.Status != StatusDone || res.State != StateDone {
		t.Fatalf("after release: %+v", res)
	}
	if res.Answer == nil || res.Error != "" || res.FinishedAt == nil {
		t.Fatalf("result and error both/neither set: %+v", res)
	}
	if res.Answer.MainAnswer != "done" {
		t.Fatalf("answer=%+v", res.Answer)
	}
}

func TestSubmitFailedTask(t *testing.T) {
	f := newFixture(t)
	f.eng.FailEmbed(errors.New("embedding backend down"), -1)
	o := f.orchestrator(t)

	id, err := o.Submit(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res := waitTerminal(t, o, id)
	if res.Status != StatusFailed || res.Answer != nil {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Error, "embedding backend down") {
		t.Fatalf("error=%q", res.Error)
	}
}

func TestSubmitSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.deps.Graph = nil
	o := f.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := o.Submit(ctx, mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	cancel()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res := waitTerminal(t, o, id); res.Status != StatusDone {
		t.Fatalf("res=%+v", res)
	}
}

func TestPollUnknownTask(t *testing.T) {
	o := newFixture(t).orchestrator(t)
	if _, err := o.Poll("nope"); !ragerr.Is(err, ragerr.NotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	f.deps.Embedder = nil
	if _, err := New(f.deps); err == nil {
		t.Fatalf("expected error")
	}
}

type recordingMetrics struct {
	mu     sync.Mutex
	stages map[string]string
	runs   []string
	events []string
}

func (m *recordingMetrics) ObserveStage(stage, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stages == nil {
		m.stages = map[string]string{}
	}
	m.stages[stage] = status
}

func (m *recordingMetrics) ObservePipeline(mode, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, mode+"/"+status)
}

func (m *recordingMetrics) IncAsyncTask(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func TestRetrieveReportsStageMetrics(t *testing.T) {
	f := newFixture(t)
	rec := &recordingMetrics{}
	f.deps.Metrics = rec
	o := f.orchestrator(t)

	if _, err := o.Retrieve(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}, Mode: ModeHybrid}); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	f.eng.FailEmbed(errors.New("down"), 100)
	if _, err := o.Retrieve(context.Background(), "unseen question", Options{Documents: []graphrag.Document{mlDocument()}}); err == nil {
		t.Fatalf("expected error")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, stage := range []string{StageAnalyze, StageRank, StageFuse, StageGenerate, StageGraphRetrieve} {
		if rec.stages[stage] != "ok" {
			t.Fatalf("stage %s=%q", stage, rec.stages[stage])
		}
	}
	if rec.stages[StageVectorRetrieve] != "error" {
		t.Fatalf("vector stage=%q", rec.stages[StageVectorRetrieve])
	}
	if len(rec.runs) != 2 || rec.runs[0] != "hybrid/ok" || rec.runs[1] != "vector/error" {
		t.Fatalf("runs=%v", rec.runs)
	}
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, string) graphrag.QueryAnalysis { panic("boom") }

type panicRanker struct{}

func (panicRanker) Rank([]graphrag.Scored[graphrag.Document], ranking.Config) []graphrag.Scored[graphrag.Document] {
	panic("rank boom")
}

type panicGraph struct{}

func (panicGraph) MultiHop(context.Context, string, int, int) []graph.Hop { panic("graph boom") }

func (panicGraph) EntityRelations(context.Context, []string) []graphrag.Relation {
	panic("graph boom")
}

func TestRetrieveRecoversStagePanics(t *testing.T) {
	cases := map[string]func(*fixture){
		"analyzer": func(f *fixture) { f.deps.Analyzer = panicAnalyzer{} },
		"ranker":   func(f *fixture) { f.deps.Ranker = panicRanker{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			mutate(f)
			o := f.orchestrator(t)
			_, err := o.Retrieve(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
			if !ragerr.Is(err, ragerr.Internal) || !strings.Contains(err.Error(), "panic") {
				t.Fatalf("err=%v", err)
			}
		})
	}
}

func TestSubmitPanickingAnalyzerFails(t *testing.T) {
	f := newFixture(t)
	f.deps.Analyzer = panicAnalyzer{}
	o := f.orchestrator(t)

	id, err := o.Submit(context.Background(), mlQuestion, Options{Documents: []graphrag.Document{mlDocument()}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res := waitTerminal(t, o, id)
	if res.Status != StatusFailed || res.Answer != nil {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Error, "panic: boom") {
		t.Fatalf("error=%q", res.Error)
	}
}

func TestRetrieveGraphPanicDegrades(t *testing.T) {
	f := newFixture(t)
	f.deps.Graph = panicGraph{}
	o := f.orchestrator(t)

	ans, err := o.Retrieve(context.Background(), mlQuestion, Options{Mode: ModeHybrid, Documents: []graphrag.Document{mlDocument()}})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if ans.MainAnswer == "" {
		t.Fatalf("empty answer: %+v", ans)
	}
}
