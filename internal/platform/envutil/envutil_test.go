package envutil

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("GRAPHRAG_TEST_INT", "7")
	t.Setenv("GRAPHRAG_TEST_BAD_INT", "x")
	t.Setenv("GRAPHRAG_TEST_FLOAT", "0.25")
	t.Setenv("GRAPHRAG_TEST_BOOL", "yes")
	t.Setenv("GRAPHRAG_TEST_DUR", "1500ms")
	t.Setenv("GRAPHRAG_TEST_DUR_SECS", "3")

	if got := Int("GRAPHRAG_TEST_INT", 1); got != 7 {
		t.Fatalf("Int=%d", got)
	}
	if got := Int("GRAPHRAG_TEST_BAD_INT", 4); got != 4 {
		t.Fatalf("Int fallback=%d", got)
	}
	if got := Float("GRAPHRAG_TEST_FLOAT", 0); got != 0.25 {
		t.Fatalf("Float=%v", got)
	}
	if !Bool("GRAPHRAG_TEST_BOOL", false) {
		t.Fatalf("Bool=false")
	}
	if got := Duration("GRAPHRAG_TEST_DUR", 0); got != 1500*time.Millisecond {
		t.Fatalf("Duration=%v", got)
	}
	if got := Duration("GRAPHRAG_TEST_DUR_SECS", 0); got != 3*time.Second {
		t.Fatalf("Duration secs=%v", got)
	}
	if got := String("GRAPHRAG_TEST_MISSING", "def"); got != "def" {
		t.Fatalf("String=%q", got)
	}
}
