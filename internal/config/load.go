package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/graphrag-core/internal/platform/envutil"
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got kind %d", node.Kind)
	}
	if n, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(raw string) error {
	if strings.TrimSpace(raw) == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   1 << 20,
		},
		Engine: EngineConfig{Type: "mock", EmbeddingDims: 8},
		Models: ModelsConfig{
			Embedding:   "text-embedding-3-small",
			Generation:  "gpt-4o-mini",
			Temperature: 0.2,
		},
		Gateway: GatewayConfig{
			CallTimeout:    Duration{Duration: 30 * time.Second},
			MaxRetries:     2,
			InitialBackoff: Duration{Duration: 500 * time.Millisecond},
			MaxBackoff:     Duration{Duration: 8 * time.Second},
			BatchSize:      64,
		},
		Cache: CacheConfig{
			Type:      "memory",
			TTL:       Duration{Duration: time.Hour},
			KeyPrefix: "graphrag:",
		},
		Candidates: CandidatesConfig{Source: "static"},
		Pools: PoolsConfig{
			Interactive: PoolConfig{Capacity: 20, MaxBlockingTasks: 100},
			Background:  PoolConfig{Capacity: 10, MaxBlockingTasks: 50},
			Embedding:   PoolConfig{Capacity: 8, MaxBlockingTasks: 30},
		},
		Tasks: TasksConfig{
			Timeout:   Duration{Duration: 2 * time.Minute},
			ResultTTL: Duration{Duration: 30 * time.Minute},
		},
	}
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config { return defaultConfig() }

// Load reads GRAPHRAG_CONFIG_PATH (or ./config/config.{json,yaml,yml}) over the defaults,
// then applies env overrides and validates.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("GRAPHRAG_CONFIG_PATH"))
	if cfgPath == "" {
		cfgPath = discoverConfigPath()
	}
	if cfgPath != "" {
		if err := loadFile(cfgPath, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func discoverConfigPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		p := filepath.Join(wd, "config", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_HTTP_ADDR")); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_ENGINE_TYPE")); v != "" {
		cfg.Engine.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_ENGINE_BASE_URL")); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_ENGINE_API_KEY")); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_EMBED_MODEL")); v != "" {
		cfg.Models.Embedding = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_GEN_MODEL")); v != "" {
		cfg.Models.Generation = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_CACHE_TYPE")); v != "" {
		cfg.Cache.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_CANDIDATE_SOURCE")); v != "" {
		cfg.Candidates.Source = v
	}
	if v := strings.TrimSpace(os.Getenv("GRAPHRAG_CANDIDATE_PATH")); v != "" {
		cfg.Candidates.Path = v
	}
	cfg.Candidates.Watch = envutil.Bool("GRAPHRAG_CANDIDATE_WATCH", cfg.Candidates.Watch)
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}

	e := &cfg.Engine
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	e.BaseURL = strings.TrimRight(strings.TrimSpace(e.BaseURL), "/")
	switch e.Type {
	case "", "mock":
		e.Type = "mock"
		if e.EmbeddingDims <= 0 {
			e.EmbeddingDims = 8
		}
	case "oai_http", "openai_http":
		e.Type = "oai_http"
		if e.BaseURL == "" {
			return errors.New("config: engine.base_url is required for oai_http")
		}
		if strings.TrimSpace(e.ChatCompletionsPath) == "" {
			e.ChatCompletionsPath = "/v1/chat/completions"
		}
		if strings.TrimSpace(e.EmbeddingsPath) == "" {
			e.EmbeddingsPath = "/v1/embeddings"
		}
		if e.Timeout.Duration <= 0 {
			e.Timeout = Duration{Duration: 60 * time.Second}
		}
	default:
		return fmt.Errorf("config: invalid engine.type=%q", e.Type)
	}

	if strings.TrimSpace(cfg.Models.Embedding) == "" || strings.TrimSpace(cfg.Models.Generation) == "" {
		return errors.New("config: models.embedding and models.generation are required")
	}

	g := &cfg.Gateway
	if g.MaxRetries < 0 {
		return fmt.Errorf("config: invalid gateway.max_retries=%d", g.MaxRetries)
	}
	if g.CallTimeout.Duration <= 0 {
		g.CallTimeout = Duration{Duration: 30 * time.Second}
	}
	if g.InitialBackoff.Duration <= 0 {
		g.InitialBackoff = Duration{Duration: 500 * time.Millisecond}
	}
	if g.MaxBackoff.Duration < g.InitialBackoff.Duration {
		g.MaxBackoff = g.InitialBackoff
	}
	if g.BatchSize <= 0 {
		g.BatchSize = 64
	}

	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))
	switch cfg.Cache.Type {
	case "":
		cfg.Cache.Type = "none"
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("config: invalid cache.type=%q", cfg.Cache.Type)
	}
	if cfg.Cache.TTL.Duration <= 0 {
		cfg.Cache.TTL = Duration{Duration: time.Hour}
	}

	cfg.Candidates.Source = strings.ToLower(strings.TrimSpace(cfg.Candidates.Source))
	switch cfg.Candidates.Source {
	case "":
		cfg.Candidates.Source = "static"
	case "static", "neo4j", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: invalid candidates.source=%q", cfg.Candidates.Source)
	}
	if cfg.Candidates.Watch && (cfg.Candidates.Source != "static" || strings.TrimSpace(cfg.Candidates.Path) == "") {
		return errors.New("config: candidates.watch needs the static source and a path")
	}

	for name, p := range map[string]*PoolConfig{
		"interactive": &cfg.Pools.Interactive,
		"background":  &cfg.Pools.Background,
		"embedding":   &cfg.Pools.Embedding,
	} {
		if p.Capacity <= 0 {
			return fmt.Errorf("config: pools.%s.capacity must be positive", name)
		}
		if p.MaxBlockingTasks < 0 {
			return fmt.Errorf("config: pools.%s.max_blocking_tasks must not be negative", name)
		}
	}

	if cfg.Tasks.Timeout.Duration <= 0 {
		cfg.Tasks.Timeout = Duration{Duration: 2 * time.Minute}
	}
	if cfg.Tasks.ResultTTL.Duration <= 0 {
		cfg.Tasks.ResultTTL = Duration{Duration: 30 * time.Minute}
	}
	return nil
}
