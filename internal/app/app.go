package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/graphrag-core/internal/config"
	httpx "github.com/yungbote/graphrag-core/internal/http"
	"github.com/yungbote/graphrag-core/internal/observability"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/pipeline"
	"github.com/yungbote/graphrag-core/internal/rag/query"
)

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Metrics  *observability.Metrics
	Pipeline *pipeline.Orchestrator
	Analyzer *query.Analyzer
	Server   *httpx.Server

	// closers run in reverse order on Close.
	closers []func(context.Context) error
	cancel  context.CancelFunc
}

// New wires every component from cfg. On error, whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if log == nil {
		log = logger.Nop()
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	a := &App{Log: log, Cfg: cfg, cancel: cancel}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{ServiceName: "graphrag", Environment: cfg.Env})
	a.closers = append(a.closers, shutdownOTel)
	a.Metrics = observability.Init(log)

	cl, err := wireClients(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cl.close)
	a.Metrics.StartRedisCollector(bgCtx, log, cl.redis)

	cands, err := wireCandidates(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cands.close)
	a.Metrics.StartDBCollector(bgCtx, log, cands.db)
	cands.watch(bgCtx)

	svc, err := wireServices(log, cfg, cl, cands, a.Metrics)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, svc.close)
	a.Pipeline = svc.orchestrator
	a.Analyzer = svc.analyzer

	a.Server = wireHTTP(log, cfg, a.Metrics, svc, healthProbes(cl, cands))
	return a, nil
}

// Serve blocks until ctx is cancelled and the HTTP server has drained.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx)
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.Log.Sync()
	return errors.Join(errs...)
}
