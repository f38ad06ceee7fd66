package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/graphrag-core/internal/cache"
	"github.com/yungbote/graphrag-core/internal/engine"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/platform/pool"
	"github.com/yungbote/graphrag-core/internal/platform/retry"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

type Config struct {
	Model     string
	BatchSize int
	CacheTTL  time.Duration
	Retry     retry.Policy
}

// Gateway is the single entry point for text embeddings. It owns the timeout/retry policy,
// splits large batches across the embedding pool and memoises vectors in the cache.
type Gateway struct {
	log   *logger.Logger
	emb   engine.Embedder
	cache cache.Cache
	pool  *pool.Pool
	cfg   Config
}

// New builds a gateway. c and p are optional.
func New(log *logger.Logger, emb engine.Embedder, c cache.Cache, p *pool.Pool, cfg Config) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "default"
	}
	return &Gateway{
		log:   log.With("component", "EmbeddingGateway"),
		emb:   emb,
		cache: c,
		pool:  p,
		cfg:   cfg,
	}
}

func (g *Gateway) Model() string { return g.cfg.Model }

func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch returns one vector per input, in input order.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if g.emb == nil {
		return nil, ragerr.New(ragerr.Internal, "embedding.batch", fmt.Errorf("no embedder configured"))
	}

	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	for i, t := range texts {
		if v, ok := g.cached(ctx, t); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	chunks := chunkIndices(missIdx, g.cfg.BatchSize)
	if len(chunks) == 1 || g.pool == nil {
		for _, idx := range chunks {
			if err := g.embedChunk(ctx, texts, idx, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	for _, idx := range chunks {
		idx := idx
		eg.Go(func() error {
			done := make(chan error, 1)
			task := func() {
				defer func() {
					if r := recover(); r != nil {
						done <- ragerr.New(ragerr.Internal, "embedding.embed", fmt.Errorf("panic: %v", r))
					}
				}()
				done <- g.embedChunk(gctx, texts, idx, out)
			}
			if err := g.pool.Go(task); err != nil {
				return ragerr.New(ragerr.Internal, "embedding.batch", err)
			}
			select {
			case err := <-done:
				return err
			case <-gctx.Done():
				return ragerr.Transient("embedding.embed", gctx.Err())
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedChunk fills out[i] for every i in idx. Chunks write disjoint indices.
func (g *Gateway) embedChunk(ctx context.Context, texts []string, idx []int, out [][]float32) error {
	inputs := make([]string, len(idx))
	for j, i := range idx {
		inputs[j] = texts[i]
	}

	var vecs [][]float32
	err := retry.Do(ctx, g.cfg.Retry, g.log, "embedding.embed", func(cctx context.Context) error {
		v, err := g.emb.Embed(cctx, g.cfg.Model, inputs)
		if err != nil {
			return err
		}
		if len(v) != len(inputs) {
			return fmt.Errorf("embedder returned %d vectors for %d inputs", len(v), len(inputs))
		}
		vecs = v
		return nil
	})
	if err != nil {
		g.log.Error("embedding failed", "inputs", len(inputs), "error", err)
		return ragerr.Transient("embedding.embed", err)
	}

	for j, i := range idx {
		out[i] = vecs[j]
		g.store(ctx, texts[i], vecs[j])
	}
	return nil
}

func (g *Gateway) cacheKey(text string) string {
	return cache.Key("emb", g.cfg.Model, text)
}

func (g *Gateway) cached(ctx context.Context, text string) ([]float32, bool) {
	if g.cache == nil {
		return nil, false
	}
	v, ok, err := cache.GetJSON[[]float32](ctx, g.cache, g.cacheKey(text))
	if err != nil {
		g.log.Debug("embedding cache read failed", "error", err)
		return nil, false
	}
	return v, ok && len(v) > 0
}

func (g *Gateway) store(ctx context.Context, text string, vec []float32) {
	if g.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, g.cache, g.cacheKey(text), vec, g.cfg.CacheTTL); err != nil {
		g.log.Debug("embedding cache write failed", "error", err)
	}
}

func chunkIndices(idx []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(idx); start += size {
		end := start + size
		if end > len(idx) {
			end = len(idx)
		}
		out = append(out, idx[start:end])
	}
	return out
}
