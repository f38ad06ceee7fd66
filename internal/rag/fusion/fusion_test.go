package fusion

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

const longPara = "Machine learning is a field of study that gives computers the ability to learn."

func TestFuseGroupsAndOrders(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0}}
	f := New(nil, emb)
	docs := []graphrag.Document{{
		ID:        "d1",
		Title:     "ML",
		Source:    "wiki",
		Content:   "short\n\n" + longPara + "\n\nAnother paragraph that is long enough to survive the noise filter here.",
		Embedding: []float32{0.6, 0.8},
	}, {
		ID:      "d2",
		Content: longPara + " unembedded",
	}}
	ents := []graphrag.Entity{
		{ID: "e1", Name: "Machine Learning", Type: "Concept", Description: "learning from data", Embedding: []float32{1, 0}},
		{ID: "e2", Name: "Python", Type: "Language", Embedding: []float32{0, 1}},
	}
	rels := []graphrag.Relation{{Source: "Machine Learning", Type: "USES", Target: "Python"}}

	fc, err := f.Fuse(context.Background(), docs, ents, rels, "What is machine learning?")
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if emb.calls != 1 {
		t.Fatalf("embed calls=%d", emb.calls)
	}
	if len(fc.ByType[graphrag.SourceDocument]) != 2 {
		t.Fatalf("doc segments=%+v", fc.ByType[graphrag.SourceDocument])
	}
	if fc.Segments[0].Content != "Machine Learning (Concept): learning from data" || fc.Segments[0].Score != 1 {
		t.Fatalf("first=%+v", fc.Segments[0])
	}
	for i := 1; i < len(fc.Segments); i++ {
		if fc.Segments[i].Score > fc.Segments[i-1].Score {
			t.Fatalf("not sorted at %d", i)
		}
	}
	doc := fc.ByType[graphrag.SourceDocument][0]
	if doc.Content != longPara || doc.Metadata["documentId"] != "d1" {
		t.Fatalf("top paragraph=%+v", doc)
	}
	if !strings.HasPrefix(fc.Text, "Related Document Content:\n- ") ||
		!strings.Contains(fc.Text, "Related Entities:\n- Machine Learning (Concept)") ||
		!strings.Contains(fc.Text, "Related Relations:\n- Machine Learning USES Python\n") {
		t.Fatalf("text=%q", fc.Text)
	}
	// "machine" and "learning" of ["what","is","machine","learning"].
	rel := fc.ByType[graphrag.SourceRelation][0]
	if rel.Score != 0.5 {
		t.Fatalf("relation score=%v", rel.Score)
	}

	sum := 0.0
	for _, s := range fc.Segments {
		sum += s.Score
	}
	if math.Abs(fc.OverallRelevance-sum/float64(len(fc.Segments))) > 1e-12 {
		t.Fatalf("overall=%v", fc.OverallRelevance)
	}
}

func TestFuseDedupKeepsHigherScore(t *testing.T) {
	f := New(nil, &stubEmbedder{vec: []float32{1, 0}})
	segs := dedupe([]graphrag.ContextSegment{
		{Content: "Same Content ", Score: 0.3},
		{Content: "same content", Score: 0.8},
	})
	if len(segs) != 1 || segs[0].Score != 0.8 {
		t.Fatalf("segs=%+v", segs)
	}

	fc := f.FuseWithVector([]float32{1, 0}, nil, nil, []graphrag.Relation{
		{Source: "A", Type: "rel", Target: "B"},
		{Source: "a", Type: "REL", Target: "b"},
	}, "a")
	if len(fc.Segments) != 1 {
		t.Fatalf("relations not deduped: %+v", fc.Segments)
	}
}

func TestFuseEmptyPools(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("should not be called")}
	fc, err := New(nil, emb).Fuse(context.Background(), nil, nil, nil, "anything")
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if fc.Text != "" || fc.OverallRelevance != 0 || len(fc.Segments) != 0 || emb.calls != 0 {
		t.Fatalf("fc=%+v calls=%d", fc, emb.calls)
	}
}

func TestFuseEmbedFailureIsTransient(t *testing.T) {
	f := New(nil, &stubEmbedder{err: errors.New("timeout")})
	_, err := f.Fuse(context.Background(), []graphrag.Document{{Content: longPara, Embedding: []float32{1}}}, nil, nil, "q")
	if ragerr.KindOf(err) != ragerr.TransientDependency {
		t.Fatalf("err=%v", err)
	}
}

func TestRenderLimits(t *testing.T) {
	var rels []graphrag.Relation
	for i := 0; i < 20; i++ {
		rels = append(rels, graphrag.Relation{Source: "s", Type: "r", Target: strings.Repeat("x", i+1)})
	}
	fc := New(nil, nil).FuseWithVector(nil, nil, nil, rels, "s")
	if got := strings.Count(fc.Text, "\n- "); got != 15 {
		t.Fatalf("relation lines=%d", got)
	}
	if len(fc.Segments) != 20 {
		t.Fatalf("segments=%d", len(fc.Segments))
	}
}

func TestKeyParagraphsFiltersNoise(t *testing.T) {
	content := strings.Join([]string{
		"tiny",
		strings.Repeat("a", 51) + " graph",
		strings.Repeat("b", 51) + " graph graph",
		strings.Repeat("c", 51),
		strings.Repeat("d", 51) + " graph graph graph",
	}, "\n\n")
	got := keyParagraphs(content, []string{"graph"}, 3)
	if len(got) != 3 || !strings.HasPrefix(got[0], "ddd") || !strings.HasPrefix(got[1], "bbb") || !strings.HasPrefix(got[2], "aaa") {
		t.Fatalf("paragraphs=%v", got)
	}
}
