package ranking

import (
	"strings"
	"time"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/embedding"
)

// Item is what the ranker needs to know about a result. Document and Entity both qualify.
type Item interface {
	Vector() []float32
	Label() string
	Origin() string
	Timestamp() *time.Time
}

type Factor string

const (
	FactorRecency      Factor = "recency"
	FactorAuthority    Factor = "authority"
	FactorCompleteness Factor = "completeness"
	FactorPopularity   Factor = "popularity"
)

// Config enumerates the ranking stages. Zero values disable a stage.
type Config struct {
	MinRelevance float64 `json:"min_relevance" yaml:"min_relevance"`

	// Start and End bound the item timestamp, inclusive. Items without a timestamp always pass.
	Start *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`

	AllowedSources []string `json:"allowed_sources,omitempty" yaml:"allowed_sources,omitempty"`
	BlockedSources []string `json:"blocked_sources,omitempty" yaml:"blocked_sources,omitempty"`

	FactorWeights map[Factor]float64 `json:"factor_weights,omitempty" yaml:"factor_weights,omitempty"`

	DiversityThreshold float64 `json:"diversity_threshold" yaml:"diversity_threshold"`
	MaxResults         int     `json:"max_results" yaml:"max_results"`
}

type Ranker[T Item] struct {
	log *logger.Logger
	now func() time.Time
}

func New[T Item](log *logger.Logger) *Ranker[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &Ranker[T]{log: log.With("component", "ResultRanker"), now: time.Now}
}

// Rank applies, in order: relevance filter, time window, source lists, factor re-score,
// then diversity selection (or plain truncation). The input slice is not modified.
func (r *Ranker[T]) Rank(results []graphrag.Scored[T], cfg Config) []graphrag.Scored[T] {
	out := append([]graphrag.Scored[T](nil), results...)

	if cfg.MinRelevance > 0 {
		out = FilterByRelevance(out, cfg.MinRelevance)
	}
	if cfg.Start != nil || cfg.End != nil {
		out = FilterByTime(out, cfg.Start, cfg.End)
	}
	if len(cfg.AllowedSources) > 0 || len(cfg.BlockedSources) > 0 {
		out = FilterBySource(out, cfg.AllowedSources, cfg.BlockedSources)
	}
	if len(cfg.FactorWeights) > 0 {
		out = r.MultiFactor(out, cfg.FactorWeights)
	}
	switch {
	case cfg.DiversityThreshold > 0:
		out = Diversify(out, cfg.DiversityThreshold, cfg.MaxResults)
	case cfg.MaxResults > 0 && len(out) > cfg.MaxResults:
		out = out[:cfg.MaxResults]
	}

	r.log.Debug("ranking completed", "in", len(results), "out", len(out))
	return out
}

func FilterByRelevance[T any](in []graphrag.Scored[T], min float64) []graphrag.Scored[T] {
	out := make([]graphrag.Scored[T], 0, len(in))
	for _, s := range in {
		if s.Score >= min {
			out = append(out, s)
		}
	}
	return out
}

func FilterByTime[T Item](in []graphrag.Scored[T], start, end *time.Time) []graphrag.Scored[T] {
	out := make([]graphrag.Scored[T], 0, len(in))
	for _, s := range in {
		ts := s.Item.Timestamp()
		if ts != nil {
			if start != nil && ts.Before(*start) {
				continue
			}
			if end != nil && ts.After(*end) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// FilterBySource drops blocked sources and, when allowed is non-empty, everything not in it.
// Items without a source pass only when allowed is empty.
func FilterBySource[T Item](in []graphrag.Scored[T], allowed, blocked []string) []graphrag.Scored[T] {
	allow := toSet(allowed)
	block := toSet(blocked)
	out := make([]graphrag.Scored[T], 0, len(in))
	for _, s := range in {
		src := s.Item.Origin()
		if src == "" {
			if len(allow) == 0 {
				out = append(out, s)
			}
			continue
		}
		if _, ok := block[src]; ok {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[src]; !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// MultiFactor adds Σ weight·factor to each score, clamps to [0,1] and re-sorts.
// Unknown factor names contribute nothing.
func (r *Ranker[T]) MultiFactor(in []graphrag.Scored[T], weights map[Factor]float64) []graphrag.Scored[T] {
	now := r.now()
	out := make([]graphrag.Scored[T], 0, len(in))
	for _, s := range in {
		score := s.Score
		for f, w := range weights {
			score += w * factorScore(f, s.Item, now)
		}
		out = append(out, graphrag.Scored[T]{Item: s.Item, Score: clamp01(score)})
	}
	graphrag.SortScored(out)
	return out
}

func factorScore(f Factor, item Item, now time.Time) float64 {
	switch f {
	case FactorRecency:
		return Recency(item, now)
	case FactorAuthority:
		return Authority(item)
	case FactorCompleteness:
		return Completeness(item)
	case FactorPopularity:
		return Popularity(item)
	default:
		return 0
	}
}

// Recency decays linearly to 0 over a year. Items without a timestamp score 0.5.
func Recency(item Item, now time.Time) float64 {
	ts := item.Timestamp()
	if ts == nil {
		return 0.5
	}
	days := float64(int(now.Sub(*ts).Hours() / 24))
	v := 1 - days/365
	if v < 0 {
		return 0
	}
	return v
}

func Authority(item Item) float64 {
	src := item.Origin()
	switch {
	case strings.Contains(src, "official"), strings.Contains(src, "authoritative"):
		return 0.9
	case strings.Contains(src, "academic"), strings.Contains(src, "research"):
		return 0.8
	case strings.Contains(src, "news"), strings.Contains(src, "media"):
		return 0.6
	default:
		return 0.5
	}
}

func Completeness(item Item) float64 {
	switch v := any(item).(type) {
	case graphrag.Document:
		return min(1, float64(len(v.Content))/5000)
	case *graphrag.Document:
		return min(1, float64(len(v.Content))/5000)
	case graphrag.Entity:
		return entityCompleteness(v)
	case *graphrag.Entity:
		return entityCompleteness(*v)
	default:
		return 0.5
	}
}

func entityCompleteness(e graphrag.Entity) float64 {
	s := 0.0
	if strings.TrimSpace(e.Description) != "" {
		s += 0.5
	}
	if e.Embedding != nil {
		s += 0.5
	}
	return s
}

// Popularity has no real signal behind it yet.
func Popularity(Item) float64 { return 0.5 }

// Diversify walks results in order and keeps an item only if its similarity to every kept
// item is at most threshold. maxResults ≤ 0 means no cap.
func Diversify[T Item](in []graphrag.Scored[T], threshold float64, maxResults int) []graphrag.Scored[T] {
	var out []graphrag.Scored[T]
	for _, cand := range in {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		diverse := true
		for _, kept := range out {
			if Similarity(cand.Item, kept.Item) > threshold {
				diverse = false
				break
			}
		}
		if diverse {
			out = append(out, cand)
		}
	}
	if out == nil {
		out = []graphrag.Scored[T]{}
	}
	return out
}

// Similarity is embedding cosine when both items have vectors, else 0.7·title word overlap
// plus 0.3 when the sources match.
func Similarity(a, b Item) float64 {
	va, vb := a.Vector(), b.Vector()
	if va != nil && vb != nil {
		return embedding.Similarity(va, vb)
	}
	title := jaccard(strings.ToLower(a.Label()), strings.ToLower(b.Label()))
	source := 0.0
	if strings.EqualFold(a.Origin(), b.Origin()) {
		source = 1
	}
	return 0.7*title + 0.3*source
}

func jaccard(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	wa := toSet(strings.Fields(a))
	wb := toSet(strings.Fields(b))
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
