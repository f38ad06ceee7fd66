package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/graphrag-core/internal/cache"
	redisclient "github.com/yungbote/graphrag-core/internal/clients/redis"
	"github.com/yungbote/graphrag-core/internal/config"
	"github.com/yungbote/graphrag-core/internal/engine"
	"github.com/yungbote/graphrag-core/internal/engine/mock"
	"github.com/yungbote/graphrag-core/internal/engine/oaihttp"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

// Backend is a model server that both embeds and generates.
type Backend interface {
	engine.Embedder
	engine.TextGenerator
}

type clients struct {
	backend Backend
	cache   cache.Cache
	redis   *goredis.Client
}

func (c clients) close(context.Context) error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config) (clients, error) {
	var out clients
	backend, err := newBackend(cfg.Engine)
	if err != nil {
		return out, err
	}
	out.backend = backend

	switch cfg.Cache.Type {
	case "none":
	case "redis":
		rdb, err := redisclient.NewFromEnv(log)
		if err != nil {
			return out, fmt.Errorf("init redis cache: %w", err)
		}
		out.redis = rdb
		rc, err := cache.NewRedis(log, rdb, cfg.Cache.KeyPrefix)
		if err != nil {
			return out, fmt.Errorf("init redis cache: %w", err)
		}
		out.cache = rc
	default:
		out.cache = cache.NewMemory(cfg.Cache.MaxEntries)
	}
	log.Info("clients ready", "engine", cfg.Engine.Type, "cache", cfg.Cache.Type)
	return out, nil
}

func newBackend(cfg config.EngineConfig) (Backend, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "mock":
		return mock.New(), nil
	case "oai_http":
		e, err := oaihttp.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("init engine: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine type %q", cfg.Type)
	}
}
