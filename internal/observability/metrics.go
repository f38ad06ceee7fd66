package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/graphrag-core/internal/platform/envutil"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/platform/pool"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	pipelineRequests *CounterVec
	pipelineLatency  *HistogramVec
	stageLatency     *HistogramVec
	asyncTasks       *CounterVec

	poolRunning *GaugeVec
	poolWaiting *GaugeVec
	poolInline  *GaugeVec
	poolPanics  *GaugeVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	poolsMu sync.RWMutex
	pools   []*pool.Pool
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled reports METRICS_ENABLED.
func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Duration("METRICS_SCRAPE_INTERVAL", 10*time.Second)
}

// Init returns the process-wide registry, or nil when metrics are disabled. All methods are
// nil-safe so callers never branch on it.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered registry; Init is the process-wide entry point.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("graphrag_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"graphrag_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("graphrag_api_inflight_requests", "In-flight API requests."),

		pipelineRequests: NewCounterVec("graphrag_pipeline_requests_total", "Pipeline runs by mode/status.", []string{"mode", "status"}),
		pipelineLatency: NewHistogramVec(
			"graphrag_pipeline_duration_seconds",
			"End-to-end pipeline latency in seconds by mode.",
			[]string{"mode"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		stageLatency: NewHistogramVec(
			"graphrag_pipeline_stage_duration_seconds",
			"Pipeline stage latency in seconds by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		asyncTasks: NewCounterVec("graphrag_async_tasks_total", "Async tasks by lifecycle event.", []string{"event"}),

		poolRunning: NewGaugeVec("graphrag_pool_running_workers", "Running workers by pool.", []string{"pool"}),
		poolWaiting: NewGaugeVec("graphrag_pool_waiting_tasks", "Submitters blocked on a full pool.", []string{"pool"}),
		poolInline:  NewGaugeVec("graphrag_pool_inline_tasks", "Tasks run on the caller after overload.", []string{"pool"}),
		poolPanics:  NewGaugeVec("graphrag_pool_panics", "Recovered task panics by pool.", []string{"pool"}),

		dbStats:   NewGaugeVec("graphrag_db_stats", "SQL connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("graphrag_redis_up", "Redis reachable (1) or not (0)."),
		redisPing: NewGauge("graphrag_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(strings.ToUpper(method), route, status)
	m.apiLatency.Observe(dur.Seconds(), strings.ToUpper(method), route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObservePipeline(mode, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "vector"
	}
	m.pipelineRequests.Inc(mode, status)
	m.pipelineLatency.Observe(dur.Seconds(), mode)
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) IncAsyncTask(event string) {
	if m == nil {
		return
	}
	m.asyncTasks.Inc(event)
}

// WatchPools samples pool stats at every scrape.
func (m *Metrics) WatchPools(pools ...*pool.Pool) {
	if m == nil {
		return
	}
	m.poolsMu.Lock()
	defer m.poolsMu.Unlock()
	for _, p := range pools {
		if p != nil {
			m.pools = append(m.pools, p)
		}
	}
}

func (m *Metrics) samplePools() {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	for _, p := range m.pools {
		s := p.Stats()
		m.poolRunning.Set(float64(s.Running), s.Name)
		m.poolWaiting.Set(float64(s.Waiting), s.Name)
		m.poolInline.Set(float64(s.Inline), s.Name)
		m.poolPanics.Set(float64(s.Panics), s.Name)
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write(buf.Bytes())
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	m.samplePools()
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.pipelineRequests, m.pipelineLatency, m.stageLatency, m.asyncTasks,
		m.poolRunning, m.poolWaiting, m.poolInline, m.poolPanics,
		m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// StartDBCollector samples the gorm connection pool until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

// StartRedisCollector pings the cache backend until ctx ends. The client is not closed here.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *goredis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
