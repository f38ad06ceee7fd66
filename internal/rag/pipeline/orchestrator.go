package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/ctxutil"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/platform/pool"
	"github.com/yungbote/graphrag-core/internal/rag/graph"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
	"github.com/yungbote/graphrag-core/internal/rag/ranking"
	"github.com/yungbote/graphrag-core/internal/rag/vector"
)

var tracer = otel.Tracer("graphrag/pipeline")

type Analyzer interface {
	Analyze(ctx context.Context, question string) graphrag.QueryAnalysis
}

type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type DocumentRetriever interface {
	MultiQuery(ctx context.Context, queries []string, pool []graphrag.Document, topK int) ([]graphrag.Scored[graphrag.Document], error)
}

type GraphRetriever interface {
	MultiHop(ctx context.Context, start string, maxHops, maxResults int) []graph.Hop
	EntityRelations(ctx context.Context, names []string) []graphrag.Relation
}

type DocumentRanker interface {
	Rank(results []graphrag.Scored[graphrag.Document], cfg ranking.Config) []graphrag.Scored[graphrag.Document]
}

type Fuser interface {
	FuseWithVector(qv []float32, docs []graphrag.Document, entities []graphrag.Entity, relations []graphrag.Relation, query string) graphrag.FusedContext
}

type AnswerGenerator interface {
	GenerateStructured(ctx context.Context, question string, fc graphrag.FusedContext, a graphrag.QueryAnalysis) graphrag.StructuredAnswer
}

// CandidateSource supplies the candidate pools when a request brings none.
type CandidateSource interface {
	Documents(ctx context.Context) ([]graphrag.Document, error)
	Entities(ctx context.Context) ([]graphrag.Entity, error)
}

// Metrics receives run and stage timings. *observability.Metrics satisfies it.
type Metrics interface {
	ObserveStage(stage, status string, dur time.Duration)
	ObservePipeline(mode, status string, dur time.Duration)
	IncAsyncTask(event string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, string, time.Duration)    {}
func (nopMetrics) ObservePipeline(string, string, time.Duration) {}
func (nopMetrics) IncAsyncTask(string)                           {}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type Mode string

const (
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

// Options are per-request. Zero values fall back to the pipeline defaults.
type Options struct {
	Documents []graphrag.Document
	Entities  []graphrag.Entity
	Mode      Mode
	TopK      int
	MaxHops   int
	Rank      *ranking.Config
}

type Deps struct {
	Log       *logger.Logger
	Analyzer  Analyzer
	Embedder  QueryEmbedder
	Documents DocumentRetriever
	Graph     GraphRetriever
	Ranker    DocumentRanker
	Fuser     Fuser
	Answers   AnswerGenerator
	Source    CandidateSource
	Metrics   Metrics

	// Interactive runs async pipeline tasks; Background runs registry maintenance.
	// The orchestrator owns both and releases them on Close.
	Interactive *pool.Pool
	Background  *pool.Pool

	Defaults    *Defaults
	TaskTimeout time.Duration
	ResultTTL   time.Duration
}

type Orchestrator struct {
	log      *logger.Logger
	deps     Deps
	defaults Defaults
	tasks    *registry

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	switch {
	case deps.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer required")
	case deps.Embedder == nil:
		return nil, errors.New("pipeline: embedder required")
	case deps.Documents == nil:
		return nil, errors.New("pipeline: document retriever required")
	case deps.Ranker == nil:
		return nil, errors.New("pipeline: ranker required")
	case deps.Fuser == nil:
		return nil, errors.New("pipeline: fuser required")
	case deps.Answers == nil:
		return nil, errors.New("pipeline: answer generator required")
	case deps.Interactive == nil:
		return nil, errors.New("pipeline: interactive pool required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.TaskTimeout <= 0 {
		deps.TaskTimeout = 2 * time.Minute
	}
	if deps.ResultTTL <= 0 {
		deps.ResultTTL = 30 * time.Minute
	}
	o := &Orchestrator{
		log:   deps.Log.With("component", "PipelineOrchestrator"),
		deps:  deps,
		tasks: newRegistry(deps.ResultTTL),
		stop:  make(chan struct{}),
	}
	if deps.Defaults != nil {
		o.defaults = *deps.Defaults
	} else {
		o.defaults = LoadDefaults(deps.Log)
	}
	o.startSweeper(sweepInterval(deps.ResultTTL))
	return o, nil
}

func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Second {
		iv = time.Second
	}
	if iv > time.Minute {
		iv = time.Minute
	}
	return iv
}

// Retrieve runs the pipeline synchronously.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, opts Options) (graphrag.StructuredAnswer, error) {
	return o.run(ctx, question, opts, func(State) {})
}

// Submit registers a task and runs it on the interactive pool. The task is detached from
// ctx: a caller that stops polling does not cancel it, only the task timeout does.
func (o *Orchestrator) Submit(ctx context.Context, question string, opts Options) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ragerr.Invalid("pipeline.submit", "question is required")
	}
	id := uuid.NewString()
	entry := o.tasks.add(id)

	base := ctxutil.Detached(ctx)
	td := ctxutil.GetTraceData(base)
	if td == nil {
		td = &ctxutil.TraceData{}
		base = ctxutil.WithTraceData(base, td)
	}
	td.TaskID = id
	taskCtx := trace.ContextWithSpanContext(base, trace.SpanContextFromContext(ctx))
	err := o.deps.Interactive.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				perr := panicErr("pipeline.task", r)
				entry.finish(graphrag.StructuredAnswer{}, perr, o.tasks.now())
				o.deps.Metrics.IncAsyncTask(taskEvent(perr))
				o.log.Error("async task panicked", append(ctxutil.LogFields(taskCtx), "panic", r)...)
			}
		}()
		runCtx, cancel := context.WithTimeout(taskCtx, o.deps.TaskTimeout)
		defer cancel()
		ans, err := o.run(runCtx, question, opts, entry.setState)
		entry.finish(ans, err, o.tasks.now())
		o.deps.Metrics.IncAsyncTask(taskEvent(err))
		if err != nil {
			o.log.Error("async task failed", append(ctxutil.LogFields(taskCtx), "error", err)...)
			return
		}
		o.log.Info("async task done", append(ctxutil.LogFields(taskCtx), "confidence", ans.Confidence)...)
	})
	if err != nil {
		entry.finish(graphrag.StructuredAnswer{}, fmt.Errorf("pipeline: submit: %w", err), o.tasks.now())
		return "", ragerr.New(ragerr.Internal, "pipeline.submit", err)
	}
	o.deps.Metrics.IncAsyncTask("submitted")
	o.log.Debug("task submitted", "task_id", id)
	return id, nil
}

// panicErr converts a recovered panic into an Internal error for op.
func panicErr(op string, r any) error {
	return ragerr.New(ragerr.Internal, op, fmt.Errorf("panic: %v", r))
}

// recoverStage is deferred by stage goroutines so a panicking collaborator fails the
// request instead of the process.
func recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		*err = panicErr("pipeline."+stage, r)
	}
}

func taskEvent(err error) string {
	if err != nil {
		return "failed"
	}
	return "done"
}

// Poll reports a task's progress. Unknown or expired ids are NotFound.
func (o *Orchestrator) Poll(taskID string) (PollResult, error) {
	return o.tasks.poll(strings.TrimSpace(taskID))
}

// Close stops maintenance and drains both pools.
func (o *Orchestrator) Close(timeout time.Duration) error {
	o.stopOnce.Do(func() { close(o.stop) })
	o.wg.Wait()
	var errs []error
	if err := o.deps.Interactive.Release(timeout); err != nil {
		errs = append(errs, err)
	}
	if o.deps.Background != nil {
		if err := o.deps.Background.Release(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) startSweeper(every time.Duration) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-o.stop:
				return
			case <-t.C:
				sweep := func() {
					if n := o.tasks.sweep(); n > 0 {
						o.log.Debug("expired tasks swept", "count", n)
					}
				}
				if o.deps.Background == nil || o.deps.Background.Go(sweep) != nil {
					sweep()
				}
			}
		}
	}()
}

type retrieval struct {
	queryVec  []float32
	documents []graphrag.Document
	entities  []graphrag.Entity
	relations []graphrag.Relation
}

func (o *Orchestrator) run(ctx context.Context, question string, opts Options, setState func(State)) (out graphrag.StructuredAnswer, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.retrieve", trace.WithAttributes(
		attribute.String("graphrag.mode", string(opts.Mode)),
	))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out, err = graphrag.StructuredAnswer{}, panicErr("pipeline.retrieve", r)
		}
		mode := opts.Mode
		if mode == "" {
			mode = ModeVector
		}
		o.deps.Metrics.ObservePipeline(string(mode), status(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.log.Error("pipeline failed", append(ctxutil.LogFields(ctx), "question", question, "error", err, "elapsed_ms", time.Since(start).Milliseconds())...)
		} else {
			span.SetAttributes(attribute.Float64("graphrag.confidence", out.Confidence))
		}
		span.End()
	}()

	if strings.TrimSpace(question) == "" {
		return out, ragerr.Invalid("pipeline.retrieve", "question is required")
	}

	// Analyzing. Candidate pools load alongside; they are not retrieval.
	setState(StateAnalyzing)
	var analysis graphrag.QueryAnalysis
	docs, ents := opts.Documents, opts.Entities
	{
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			defer recoverStage(StageAnalyze, &err)
			sctx, sp := tracer.Start(gctx, StageAnalyze)
			defer sp.End()
			t0 := time.Now()
			analysis = o.deps.Analyzer.Analyze(sctx, question)
			o.deps.Metrics.ObserveStage(StageAnalyze, status(nil), time.Since(t0))
			sp.SetAttributes(
				attribute.String("graphrag.query_type", string(analysis.QueryType)),
				attribute.Bool("graphrag.degraded", analysis.Degraded),
			)
			return nil
		})
		if docs == nil && ents == nil && o.deps.Source != nil {
			g.Go(func() (err error) {
				defer recoverStage("load_candidates", &err)
				docs, ents, err = o.loadCandidates(gctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return out, err
		}
	}

	setState(StateRetrieving)
	r, err := o.retrieve(ctx, question, analysis, docs, ents, opts, setState)
	if err != nil {
		return out, err
	}

	setState(StateFusing)
	_, fsp := tracer.Start(ctx, StageFuse)
	t0 := time.Now()
	fused := o.deps.Fuser.FuseWithVector(r.queryVec, r.documents, r.entities, r.relations, question)
	o.deps.Metrics.ObserveStage(StageFuse, status(nil), time.Since(t0))
	fsp.SetAttributes(attribute.Int("graphrag.segments", len(fused.Segments)))
	fsp.End()

	setState(StateGenerating)
	gctx, gsp := tracer.Start(ctx, StageGenerate)
	t0 = time.Now()
	out = o.deps.Answers.GenerateStructured(gctx, question, fused, analysis)
	gsp.End()
	if err := ctx.Err(); err != nil {
		o.deps.Metrics.ObserveStage(StageGenerate, status(err), time.Since(t0))
		return graphrag.StructuredAnswer{}, ragerr.Transient("pipeline.generate", err)
	}
	o.deps.Metrics.ObserveStage(StageGenerate, status(nil), time.Since(t0))

	o.log.Info("pipeline completed",
		"query_type", analysis.QueryType,
		"documents", len(r.documents),
		"entities", len(r.entities),
		"relations", len(r.relations),
		"sources", out.SourceCount,
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (o *Orchestrator) loadCandidates(ctx context.Context) ([]graphrag.Document, []graphrag.Entity, error) {
	docs, err := o.deps.Source.Documents(ctx)
	if err != nil {
		return nil, nil, ragerr.Transient("pipeline.load_documents", err)
	}
	ents, err := o.deps.Source.Entities(ctx)
	if err != nil {
		return nil, nil, ragerr.Transient("pipeline.load_entities", err)
	}
	return docs, ents, nil
}

// retrieve fans out the vector branch (retrieve then rank) and the graph branch, and joins.
func (o *Orchestrator) retrieve(ctx context.Context, question string, analysis graphrag.QueryAnalysis, docs []graphrag.Document, ents []graphrag.Entity, opts Options, setState func(State)) (retrieval, error) {
	var out retrieval
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		sctx, sp := tracer.Start(gctx, StageVectorRetrieve)
		defer sp.End()
		t0 := time.Now()
		defer func() { o.deps.Metrics.ObserveStage(StageVectorRetrieve, status(err), time.Since(t0)) }()
		defer recoverStage(StageVectorRetrieve, &err)

		qv := analysis.QueryVector
		if len(qv) == 0 {
			v, err := o.deps.Embedder.Embed(sctx, question)
			if err != nil {
				sp.RecordError(err)
				return fmt.Errorf("pipeline: %s: %w", StageVectorRetrieve, err)
			}
			qv = v
		}

		topK := o.defaults.TopK
		if opts.TopK > 0 {
			topK = opts.TopK
		}
		queries := append([]string{question}, analysis.ExpandedQueries...)
		scored, err := o.deps.Documents.MultiQuery(sctx, queries, docs, topK)
		if err != nil {
			sp.RecordError(err)
			return fmt.Errorf("pipeline: %s: %w", StageVectorRetrieve, err)
		}
		sp.SetAttributes(attribute.Int("graphrag.candidates", len(scored)))

		setState(StateRanking)
		_, rsp := tracer.Start(sctx, StageRank)
		cfg := o.defaults.Rank
		if opts.Rank != nil {
			cfg = *opts.Rank
		}
		rt0 := time.Now()
		ranked := o.deps.Ranker.Rank(scored, cfg)
		o.deps.Metrics.ObserveStage(StageRank, status(nil), time.Since(rt0))
		rsp.SetAttributes(attribute.Int("graphrag.ranked", len(ranked)))
		rsp.End()

		out.queryVec = qv
		out.documents = graphrag.Items(ranked)
		out.entities = o.selectEntities(qv, question, ents, opts.Mode)
		return nil
	})

	var relations []graphrag.Relation
	if o.deps.Graph != nil && len(analysis.KeyEntities) > 0 {
		g.Go(func() error {
			sctx, sp := tracer.Start(gctx, StageGraphRetrieve)
			defer sp.End()
			t0 := time.Now()
			// Graph failures, panics included, degrade to no relations.
			defer func() {
				if r := recover(); r != nil {
					relations = nil
					o.deps.Metrics.ObserveStage(StageGraphRetrieve, status(panicErr("pipeline."+StageGraphRetrieve, r)), time.Since(t0))
					o.log.Warn("graph stage panicked; continuing without relations", append(ctxutil.LogFields(sctx), "panic", r)...)
				}
			}()
			relations = o.graphRelations(sctx, analysis, opts)
			o.deps.Metrics.ObserveStage(StageGraphRetrieve, status(nil), time.Since(t0))
			sp.SetAttributes(attribute.Int("graphrag.relations", len(relations)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return retrieval{}, err
	}
	out.relations = relations
	return out, nil
}

// graphRelations never fails; traversal errors have already degraded to empty.
func (o *Orchestrator) graphRelations(ctx context.Context, analysis graphrag.QueryAnalysis, opts Options) []graphrag.Relation {
	start := analysis.KeyEntities[0]
	hops := o.defaults.MaxHops
	if opts.MaxHops > 0 {
		hops = opts.MaxHops
	}
	rels := graph.HopsToRelations(start, o.deps.Graph.MultiHop(ctx, start, hops, o.defaults.MaxGraphResults))
	if opts.Mode == ModeHybrid {
		rels = append(rels, o.deps.Graph.EntityRelations(ctx, analysis.KeyEntities)...)
	}
	return dedupeRelations(rels)
}

func (o *Orchestrator) selectEntities(qv []float32, question string, ents []graphrag.Entity, mode Mode) []graphrag.Entity {
	if mode != ModeHybrid {
		return graphrag.Items(vector.TopK(qv, ents, o.defaults.MaxEntities))
	}
	byVector := graphrag.Items(vector.TopK(qv, ents, o.defaults.HybridVectorEntities))
	byKeyword := KeywordEntities(question, ents, o.defaults.HybridKeywordEntities)
	return MergeEntities(o.defaults.HybridEntityLimit, byVector, byKeyword)
}
