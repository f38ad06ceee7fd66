package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `json:"addr" yaml:"addr"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `json:"max_request_bytes" yaml:"max_request_bytes"`
	// AllowOrigins feeds the CORS middleware; empty means same-origin only.
	AllowOrigins []string `json:"allow_origins,omitempty" yaml:"allow_origins,omitempty"`
}

type EngineConfig struct {
	// Type is "mock" (deterministic, offline) or "oai_http" (OpenAI-compatible upstream).
	Type string `json:"type" yaml:"type"`

	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is optional; when set, requests carry `Authorization: Bearer <api_key>`.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	ChatCompletionsPath string `json:"chat_completions_path,omitempty" yaml:"chat_completions_path,omitempty"`
	EmbeddingsPath      string `json:"embeddings_path,omitempty" yaml:"embeddings_path,omitempty"`

	// Timeout bounds a single upstream HTTP call.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// EmbeddingDims is only used by the mock engine.
	EmbeddingDims int `json:"embedding_dims,omitempty" yaml:"embedding_dims,omitempty"`
}

type ModelsConfig struct {
	Embedding   string  `json:"embedding" yaml:"embedding"`
	Generation  string  `json:"generation" yaml:"generation"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// GatewayConfig is the retry/timeout policy owned by the embedding and generation gateways.
type GatewayConfig struct {
	CallTimeout    Duration `json:"call_timeout" yaml:"call_timeout"`
	MaxRetries     int      `json:"max_retries" yaml:"max_retries"`
	InitialBackoff Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     Duration `json:"max_backoff" yaml:"max_backoff"`
	BatchSize      int      `json:"batch_size" yaml:"batch_size"`
}

type CacheConfig struct {
	// Type is "memory", "redis" or "none".
	Type      string   `json:"type" yaml:"type"`
	TTL       Duration `json:"ttl" yaml:"ttl"`
	KeyPrefix string   `json:"key_prefix" yaml:"key_prefix"`
	// MaxEntries bounds the memory cache; least recently used entries go first.
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
}

type CandidatesConfig struct {
	// Source is "static", "neo4j", "postgres" or "sqlite".
	Source string `json:"source" yaml:"source"`
	// Path points at a JSON file of documents/entities for the static source.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Watch reloads the static snapshot when Path changes on disk.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`
}

type PoolConfig struct {
	Capacity         int  `json:"capacity" yaml:"capacity"`
	MaxBlockingTasks int  `json:"max_blocking_tasks" yaml:"max_blocking_tasks"`
	Nonblocking      bool `json:"nonblocking,omitempty" yaml:"nonblocking,omitempty"`
}

type PoolsConfig struct {
	Interactive PoolConfig `json:"interactive" yaml:"interactive"`
	Background  PoolConfig `json:"background" yaml:"background"`
	Embedding   PoolConfig `json:"embedding" yaml:"embedding"`
}

type TasksConfig struct {
	// Timeout bounds one async pipeline run.
	Timeout Duration `json:"timeout" yaml:"timeout"`
	// ResultTTL is how long finished task results stay pollable.
	ResultTTL Duration `json:"result_ttl" yaml:"result_ttl"`
}

type Config struct {
	Env        string           `json:"env" yaml:"env"`
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Models     ModelsConfig     `json:"models" yaml:"models"`
	Gateway    GatewayConfig    `json:"gateway" yaml:"gateway"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Candidates CandidatesConfig `json:"candidates" yaml:"candidates"`
	Pools      PoolsConfig      `json:"pools" yaml:"pools"`
	Tasks      TasksConfig      `json:"tasks" yaml:"tasks"`
}
