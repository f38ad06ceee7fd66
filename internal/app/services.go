package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/graphrag-core/internal/config"
	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/observability"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/platform/pool"
	"github.com/yungbote/graphrag-core/internal/platform/retry"
	"github.com/yungbote/graphrag-core/internal/rag/answer"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
	"github.com/yungbote/graphrag-core/internal/rag/fusion"
	"github.com/yungbote/graphrag-core/internal/rag/graph"
	"github.com/yungbote/graphrag-core/internal/rag/pipeline"
	"github.com/yungbote/graphrag-core/internal/rag/query"
	"github.com/yungbote/graphrag-core/internal/rag/ranking"
	"github.com/yungbote/graphrag-core/internal/rag/textgen"
	"github.com/yungbote/graphrag-core/internal/rag/vector"
)

type services struct {
	embeddings   *embedding.Gateway
	analyzer     *query.Analyzer
	traverser    *graph.Traverser
	orchestrator *pipeline.Orchestrator

	embeddingPool *pool.Pool
}

func (s services) close(ctx context.Context) error {
	timeout := 10 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	var errs []error
	if s.orchestrator != nil {
		errs = append(errs, s.orchestrator.Close(timeout))
	}
	if s.embeddingPool != nil {
		errs = append(errs, s.embeddingPool.Release(timeout))
	}
	return errors.Join(errs...)
}

func poolConfig(pc config.PoolConfig, base pool.Config) pool.Config {
	base.Capacity = pc.Capacity
	base.MaxBlockingTasks = pc.MaxBlockingTasks
	base.Nonblocking = pc.Nonblocking
	return base
}

func retryPolicy(g config.GatewayConfig) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = g.MaxRetries
	p.InitialBackoff = g.InitialBackoff.Duration
	p.MaxBackoff = g.MaxBackoff.Duration
	p.CallTimeout = g.CallTimeout.Duration
	return p
}

func wireServices(log *logger.Logger, cfg *config.Config, cl clients, cands candidateStore, metrics *observability.Metrics) (out services, err error) {
	var pools []*pool.Pool
	defer func() {
		if err != nil {
			for _, p := range pools {
				_ = p.Release(time.Second)
			}
		}
	}()
	newPool := func(name string, pc config.PoolConfig, base pool.Config) (*pool.Pool, error) {
		p, err := pool.New(name, poolConfig(pc, base), log)
		if err != nil {
			return nil, fmt.Errorf("init %s pool: %w", name, err)
		}
		pools = append(pools, p)
		return p, nil
	}
	interactive, err := newPool("interactive", cfg.Pools.Interactive, pool.InteractiveConfig())
	if err != nil {
		return out, err
	}
	background, err := newPool("background", cfg.Pools.Background, pool.BackgroundConfig())
	if err != nil {
		return out, err
	}
	embedPool, err := newPool("embedding", cfg.Pools.Embedding, pool.EmbeddingConfig())
	if err != nil {
		return out, err
	}
	metrics.WatchPools(interactive, background, embedPool)

	policy := retryPolicy(cfg.Gateway)
	gw := embedding.New(log, cl.backend, cl.cache, embedPool, embedding.Config{
		Model:     cfg.Models.Embedding,
		BatchSize: cfg.Gateway.BatchSize,
		CacheTTL:  cfg.Cache.TTL.Duration,
		Retry:     policy,
	})
	gen := textgen.New(log, cl.backend, textgen.Config{
		Model:       cfg.Models.Generation,
		Temperature: cfg.Models.Temperature,
		Retry:       policy,
	})
	analyzer := query.New(log, gen, gw)

	deps := pipeline.Deps{
		Log:         log,
		Analyzer:    analyzer,
		Embedder:    gw,
		Documents:   vector.New[graphrag.Document](log, gw),
		Ranker:      ranking.New[graphrag.Document](log),
		Fuser:       fusion.New(log, gw),
		Answers:     answer.New(log, gen, cl.cache, answer.Config{Model: cfg.Models.Generation, CacheTTL: cfg.Cache.TTL.Duration}),
		Source:      cands.source,
		Interactive: interactive,
		Background:  background,
		TaskTimeout: cfg.Tasks.Timeout.Duration,
		ResultTTL:   cfg.Tasks.ResultTTL.Duration,
	}
	var traverser *graph.Traverser
	if cands.exec != nil {
		traverser = graph.NewTraverser(log, cands.exec)
		deps.Graph = traverser
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	orch, err := pipeline.New(deps)
	if err != nil {
		return out, err
	}
	return services{
		embeddings:    gw,
		analyzer:      analyzer,
		traverser:     traverser,
		orchestrator:  orch,
		embeddingPool: embedPool,
	}, nil
}
