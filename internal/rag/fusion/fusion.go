package fusion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

const (
	maxParagraphsPerDoc = 3
	minParagraphLen     = 50

	maxDocLines      = 5
	maxEntityLines   = 10
	maxRelationLines = 15
)

var errNoEmbedder = errors.New("fusion: no embedder configured")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fusioner merges document, entity and relation candidates into one ranked context.
type Fusioner struct {
	log *logger.Logger
	emb Embedder
}

func New(log *logger.Logger, emb Embedder) *Fusioner {
	if log == nil {
		log = logger.Nop()
	}
	return &Fusioner{log: log.With("component", "ContextFusioner"), emb: emb}
}

// Fuse embeds query and fuses. The embedding call is skipped when there is nothing to score
// against it; a failed call is a TransientDependency error.
func (f *Fusioner) Fuse(ctx context.Context, docs []graphrag.Document, entities []graphrag.Entity, relations []graphrag.Relation, query string) (graphrag.FusedContext, error) {
	var qv []float32
	if needsVector(docs, entities) {
		if f.emb == nil {
			return graphrag.FusedContext{}, ragerr.Transient("fusion.embed_query", errNoEmbedder)
		}
		v, err := f.emb.Embed(ctx, query)
		if err != nil {
			return graphrag.FusedContext{}, ragerr.Transient("fusion.embed_query", err)
		}
		qv = v
	}
	return f.FuseWithVector(qv, docs, entities, relations, query), nil
}

// FuseWithVector is Fuse with a precomputed query vector.
func (f *Fusioner) FuseWithVector(qv []float32, docs []graphrag.Document, entities []graphrag.Entity, relations []graphrag.Relation, query string) graphrag.FusedContext {
	words := queryWords(query)

	var all []graphrag.ContextSegment
	all = append(all, documentSegments(qv, docs, words)...)
	all = append(all, entitySegments(qv, entities)...)
	all = append(all, relationSegments(relations, words)...)

	segs := dedupe(all)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Score > segs[j].Score })

	out := build(segs)
	f.log.Debug("context fused",
		"documents", len(docs),
		"entities", len(entities),
		"relations", len(relations),
		"segments", len(out.Segments),
		"overall_relevance", out.OverallRelevance,
	)
	return out
}

func needsVector(docs []graphrag.Document, entities []graphrag.Entity) bool {
	for _, d := range docs {
		if len(d.Embedding) > 0 {
			return true
		}
	}
	for _, e := range entities {
		if len(e.Embedding) > 0 {
			return true
		}
	}
	return false
}

func relevance(qv, v []float32) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	s, err := embedding.Cosine(qv, v)
	if err != nil {
		return 0, false
	}
	return s, true
}

func documentSegments(qv []float32, docs []graphrag.Document, words []string) []graphrag.ContextSegment {
	var out []graphrag.ContextSegment
	for _, d := range docs {
		score, ok := relevance(qv, d.Embedding)
		if !ok {
			continue
		}
		for _, p := range keyParagraphs(d.Content, words, maxParagraphsPerDoc) {
			out = append(out, graphrag.ContextSegment{
				Content:    p,
				SourceType: graphrag.SourceDocument,
				Score:      score,
				Metadata:   map[string]any{"documentId": d.ID, "title": d.Title, "source": d.Source},
			})
		}
	}
	return out
}

func entitySegments(qv []float32, entities []graphrag.Entity) []graphrag.ContextSegment {
	var out []graphrag.ContextSegment
	for _, e := range entities {
		score, ok := relevance(qv, e.Embedding)
		if !ok {
			continue
		}
		out = append(out, graphrag.ContextSegment{
			Content:    EntityText(e),
			SourceType: graphrag.SourceEntity,
			Score:      score,
			Metadata:   map[string]any{"entityId": e.ID, "name": e.Name, "type": e.Type},
		})
	}
	return out
}

func relationSegments(relations []graphrag.Relation, words []string) []graphrag.ContextSegment {
	var out []graphrag.ContextSegment
	for _, r := range relations {
		text := RelationText(r)
		out = append(out, graphrag.ContextSegment{
			Content:    text,
			SourceType: graphrag.SourceRelation,
			Score:      keywordCoverage(text, words),
			Metadata:   map[string]any{"entity1": r.Source, "relationship": r.Type, "entity2": r.Target},
		})
	}
	return out
}

// EntityText renders "name (type): description"; the description part is omitted when blank.
func EntityText(e graphrag.Entity) string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(" (")
	b.WriteString(e.Type)
	b.WriteString(")")
	if d := strings.TrimSpace(e.Description); d != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	return b.String()
}

// RelationText renders "e1 type e2 (description)".
func RelationText(r graphrag.Relation) string {
	var b strings.Builder
	b.WriteString(r.Source)
	b.WriteString(" ")
	b.WriteString(r.Type)
	b.WriteString(" ")
	b.WriteString(r.Target)
	if d := strings.TrimSpace(r.Description); d != "" {
		b.WriteString(" (")
		b.WriteString(r.Description)
		b.WriteString(")")
	}
	return b.String()
}

// keyParagraphs keeps paragraphs longer than minParagraphLen, ordered by keyword occurrences.
func keyParagraphs(content string, words []string, limit int) []string {
	type para struct {
		text  string
		score int
	}
	var ps []para
	for _, p := range strings.Split(content, "\n\n") {
		if len(strings.TrimSpace(p)) <= minParagraphLen {
			continue
		}
		lp := strings.ToLower(p)
		n := 0
		for _, w := range words {
			n += strings.Count(lp, w)
		}
		ps = append(ps, para{text: p, score: n})
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].score > ps[j].score })
	if len(ps) > limit {
		ps = ps[:limit]
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.text
	}
	return out
}

// keywordCoverage is the fraction of query words that occur in text.
func keywordCoverage(text string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	lt := strings.ToLower(text)
	hits := 0
	for _, w := range words {
		if strings.Contains(lt, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// queryWords lowercases and splits on whitespace, trimming surrounding punctuation.
func queryWords(query string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.TrimFunc(f, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// dedupe collapses segments with the same lowercase-trimmed content, keeping the higher score
// at the position of the first occurrence.
func dedupe(in []graphrag.ContextSegment) []graphrag.ContextSegment {
	idx := map[string]int{}
	out := make([]graphrag.ContextSegment, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s.Content))
		if i, ok := idx[key]; ok {
			if s.Score > out[i].Score {
				out[i] = s
			}
			continue
		}
		idx[key] = len(out)
		out = append(out, s)
	}
	return out
}

func build(segs []graphrag.ContextSegment) graphrag.FusedContext {
	byType := map[graphrag.SourceType][]graphrag.ContextSegment{}
	for _, s := range segs {
		byType[s.SourceType] = append(byType[s.SourceType], s)
	}

	var b strings.Builder
	section := func(header string, group []graphrag.ContextSegment, limit int, trailingBlank bool) {
		if len(group) == 0 {
			return
		}
		b.WriteString(header)
		b.WriteString("\n")
		for i, s := range group {
			if i == limit {
				break
			}
			b.WriteString("- ")
			b.WriteString(s.Content)
			b.WriteString("\n")
		}
		if trailingBlank {
			b.WriteString("\n")
		}
	}
	section("Related Document Content:", byType[graphrag.SourceDocument], maxDocLines, true)
	section("Related Entities:", byType[graphrag.SourceEntity], maxEntityLines, true)
	section("Related Relations:", byType[graphrag.SourceRelation], maxRelationLines, false)

	overall := 0.0
	if len(segs) > 0 {
		sum := 0.0
		for _, s := range segs {
			sum += s.Score
		}
		overall = sum / float64(len(segs))
	}
	if segs == nil {
		segs = []graphrag.ContextSegment{}
	}
	return graphrag.FusedContext{
		Text:             b.String(),
		Segments:         segs,
		OverallRelevance: overall,
		ByType:           byType,
	}
}
