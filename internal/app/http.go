package app

import (
	"context"

	"github.com/yungbote/graphrag-core/internal/config"
	httpx "github.com/yungbote/graphrag-core/internal/http"
	httpH "github.com/yungbote/graphrag-core/internal/http/handlers"
	"github.com/yungbote/graphrag-core/internal/observability"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

func healthProbes(cl clients, cands candidateStore) map[string]httpH.Probe {
	out := map[string]httpH.Probe{}
	for name, p := range cands.probes() {
		out[name] = p
	}
	if cl.redis != nil {
		rdb := cl.redis
		out["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return out
}

func wireHTTP(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, svc services, probes map[string]httpH.Probe) *httpx.Server {
	rc := httpx.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		AllowOrigins:    cfg.HTTP.AllowOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		QueryHandler:    httpH.NewQueryHandler(svc.orchestrator),
		AnalyzeHandler:  httpH.NewAnalyzeHandler(svc.analyzer),
		HealthHandler:   httpH.NewHealthHandler(probes),
	}
	if svc.traverser != nil {
		rc.EntityHandler = httpH.NewEntityHandler(svc.traverser)
	}
	return httpx.NewServer(log, httpx.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout.Duration,
	}, rc)
}
