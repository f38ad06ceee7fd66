package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/graphrag-core/internal/engine"
)

func TestEmbedDeterministicAndPinned(t *testing.T) {
	e := New()
	a, _ := e.Embed(context.Background(), "m", []string{"x", "x"})
	if len(a[0]) != 8 {
		t.Fatalf("dims=%d", len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != a[1][i] {
			t.Fatalf("not deterministic")
		}
	}
	e.SetVector("pinned", []float32{1, 0})
	b, _ := e.Embed(context.Background(), "m", []string{"pinned"})
	if len(b[0]) != 2 || b[0][0] != 1 {
		t.Fatalf("pinned=%v", b[0])
	}
}

func TestFailuresAreConsumed(t *testing.T) {
	e := New()
	boom := errors.New("boom")
	e.FailEmbed(boom, 1)
	if _, err := e.Embed(context.Background(), "m", []string{"a"}); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if _, err := e.Embed(context.Background(), "m", []string{"a"}); err != nil {
		t.Fatalf("second call err=%v", err)
	}
	if e.EmbedCalls() != 2 {
		t.Fatalf("calls=%d", e.EmbedCalls())
	}
}

func TestScriptedReplies(t *testing.T) {
	e := New()
	e.Reply("Query Type", "Query Type: [Factual Query]")
	out, err := e.GenerateText(context.Background(), "g", engine.UserPrompt("...Query Type..."), engine.GenerateOptions{})
	if err != nil || out != "Query Type: [Factual Query]" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	out, _ = e.GenerateText(context.Background(), "g", engine.UserPrompt("hello\nworld"), engine.GenerateOptions{})
	if out != "mock: hello" {
		t.Fatalf("default=%q", out)
	}
	if len(e.Prompts()) != 2 {
		t.Fatalf("prompts=%d", len(e.Prompts()))
	}
}
