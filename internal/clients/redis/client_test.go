package redis

import (
	"testing"
	"time"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", " localhost:6379 ")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_DIAL_TIMEOUT", "2s")
	cfg := ConfigFromEnv()
	if cfg.Addr != "localhost:6379" || cfg.DB != 3 || cfg.DialTimeout != 2*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := New(nil, Config{Addr: "x:1"}); err == nil {
		t.Fatalf("expected logger error")
	}
}
