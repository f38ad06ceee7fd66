package ragerr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Invalid("graph.centrality", "unsupported centrality type: %s", "pagerank")
	wrapped := fmt.Errorf("pipeline: %w", base)
	if got := KindOf(wrapped); got != InvalidArgument {
		t.Fatalf("kind=%v", got)
	}
	if !Is(wrapped, InvalidArgument) {
		t.Fatalf("Is=false")
	}
	if base.Error() != "graph.centrality: unsupported centrality type: pagerank" {
		t.Fatalf("msg=%q", base.Error())
	}
}

func TestKindOfContextErrors(t *testing.T) {
	if got := KindOf(context.DeadlineExceeded); got != TransientDependency {
		t.Fatalf("kind=%v", got)
	}
	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("kind=%v", got)
	}
	if Is(nil, Internal) {
		t.Fatalf("nil error has a kind")
	}
}

func TestUnwrap(t *testing.T) {
	root := errors.New("dial tcp: refused")
	err := Transient("embedding.embed", root)
	if !errors.Is(err, root) {
		t.Fatalf("errors.Is lost the root cause")
	}
	if err.Kind.String() != "transient_dependency" {
		t.Fatalf("kind string=%q", err.Kind.String())
	}
}
