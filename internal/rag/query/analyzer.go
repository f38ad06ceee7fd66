package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

const maxExpandedQueries = 10

// Completer is the slice of the generation gateway the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, op string, prompt string) (string, error)
}

// Embedder is the slice of the embedding gateway the analyzer needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Analyzer struct {
	log *logger.Logger
	gen Completer
	emb Embedder
}

func New(log *logger.Logger, gen Completer, emb Embedder) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{log: log.With("component", "QueryAnalyzer"), gen: gen, emb: emb}
}

// Analyze never fails. When the model call fails the heuristic fallback is returned with
// Degraded set; the query embedding is attempted either way.
func (a *Analyzer) Analyze(ctx context.Context, question string) graphrag.QueryAnalysis {
	var resp string
	var err error
	if a.gen != nil {
		resp, err = a.gen.Complete(ctx, "query.analyze", analysisPrompt(question))
	}
	if a.gen == nil || err != nil {
		a.log.Debug("query analysis degraded to fallback", "question", question, "error", err)
		out := fallback(question)
		out.QueryVector = a.embedQuery(ctx, question)
		return out
	}

	out := parse(resp, question)
	out.Patterns = detectPatterns(question)
	out.Temporal = extractTemporal(question)
	out.Comparative = detectComparative(question)
	out.QueryVector = a.embedQuery(ctx, question)
	out.ExpandedQueries = expand(out)

	a.log.Info("query analyzed",
		"query_type", out.QueryType,
		"complexity", out.Complexity,
		"entities", len(out.KeyEntities),
		"expanded", len(out.ExpandedQueries),
	)
	return out
}

func (a *Analyzer) embedQuery(ctx context.Context, question string) []float32 {
	if a.emb == nil {
		return nil
	}
	v, err := a.emb.Embed(ctx, question)
	if err != nil {
		a.log.Debug("query embedding failed", "error", err)
		return nil
	}
	return v
}

var fieldPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, f := range []string{"Query Type", "Key Entities", "Query Intent", "Related Concepts", "Query Complexity", "Expected Answer Type"} {
		fieldPatterns[f] = regexp.MustCompile(regexp.QuoteMeta(f) + `:\s*\[?([^\]\n]+)\]?`)
	}
}

func extractField(text, field string) (string, bool) {
	m := fieldPatterns[field].FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func parseList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parse(resp, question string) graphrag.QueryAnalysis {
	out := graphrag.QueryAnalysis{
		OriginalQuery:      question,
		QueryType:          graphrag.QueryOther,
		KeyEntities:        []string{},
		Intent:             "Unknown Intent",
		RelatedConcepts:    []string{},
		Complexity:         graphrag.ComplexityMedium,
		ExpectedAnswerType: graphrag.AnswerDetailed,
	}
	if v, ok := extractField(resp, "Query Type"); ok {
		out.QueryType = graphrag.ParseQueryType(v)
	}
	if v, ok := extractField(resp, "Key Entities"); ok {
		out.KeyEntities = parseList(v)
	}
	if v, ok := extractField(resp, "Query Intent"); ok && v != "" {
		out.Intent = v
	}
	if v, ok := extractField(resp, "Related Concepts"); ok {
		out.RelatedConcepts = parseList(v)
	}
	if v, ok := extractField(resp, "Query Complexity"); ok {
		out.Complexity = graphrag.ParseComplexity(v)
	}
	if v, ok := extractField(resp, "Expected Answer Type"); ok {
		out.ExpectedAnswerType = graphrag.ParseAnswerType(v)
	}
	return out
}

var queryPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"question word", regexp.MustCompile(`\b(what|what is|how|why|which|who|when|where)\b`)},
	{"definition", regexp.MustCompile(`\b(is|define|meaning|concept)\b`)},
	{"comparison", regexp.MustCompile(`\b(compare|contrast|difference|similarity|different|same)\b`)},
	{"list", regexp.MustCompile(`\b(list|enumerate|what are|include|types)\b`)},
	{"causal", regexp.MustCompile(`\b(cause|lead to|impact|result|effect)\b`)},
	{"process", regexp.MustCompile(`\b(steps|process|procedure|method|how to)\b`)},
}

func detectPatterns(question string) []string {
	l := strings.ToLower(question)
	out := []string{}
	for _, p := range queryPatterns {
		if p.re.MatchString(l) {
			out = append(out, p.name)
		}
	}
	return out
}

var temporalPattern = regexp.MustCompile(`\b(\d{4})\s*year|\b(\d{1,2})\s*month|\b(\d{1,2})\s*day|\b(today|yesterday|tomorrow|recent|now|current|past|future)\b`)

// extractTemporal keys each match by the alternative that produced it; later matches
// overwrite earlier ones of the same kind.
func extractTemporal(question string) map[string]string {
	out := map[string]string{}
	for _, m := range temporalPattern.FindAllStringSubmatch(question, -1) {
		switch {
		case m[1] != "":
			out["year"] = m[1]
		case m[2] != "":
			out["month"] = m[2]
		case m[3] != "":
			out["day"] = m[3]
		case m[4] != "":
			out["relative"] = m[4]
		}
	}
	return out
}

// Substring match, so "and"/"with" make most multi-clause questions comparative.
var comparativeWords = []string{"compare", "contrast", "difference", "similarity", "same", "different", "pros and cons", "vs", "and", "with"}

func detectComparative(question string) bool {
	l := strings.ToLower(question)
	for _, w := range comparativeWords {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}

func expand(a graphrag.QueryAnalysis) []string {
	var cand []string
	for _, e := range a.KeyEntities {
		cand = append(cand,
			"definition of "+e,
			"characteristics of "+e,
			"applications of "+e,
		)
	}
	joined := strings.Join(a.KeyEntities, ", ")
	for _, c := range a.RelatedConcepts {
		cand = append(cand, "relationship between "+c+" and "+joined)
	}
	q := a.OriginalQuery
	switch a.QueryType {
	case graphrag.QueryConceptual:
		cand = append(cand, "detailed explanation of "+q, "examples of "+q)
	case graphrag.QueryComparative:
		cand = append(cand, "advantages and disadvantages of "+q, "similarities in "+q)
	case graphrag.QueryReasoning:
		cand = append(cand, "reasons for "+q, "impacts of "+q)
	}

	seen := make(map[string]struct{}, len(cand))
	out := make([]string, 0, maxExpandedQueries)
	for _, c := range cand {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == maxExpandedQueries {
			break
		}
	}
	return out
}

var capitalizedPhrase = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

func fallback(question string) graphrag.QueryAnalysis {
	entities := capitalizedPhrase.FindAllString(question, -1)
	if entities == nil {
		entities = []string{}
	}
	return graphrag.QueryAnalysis{
		OriginalQuery:      question,
		QueryType:          graphrag.QueryOther,
		KeyEntities:        entities,
		Intent:             "General Query",
		RelatedConcepts:    []string{},
		Complexity:         graphrag.ComplexityMedium,
		ExpectedAnswerType: graphrag.AnswerDetailed,
		Patterns:           []string{"general"},
		Temporal:           map[string]string{},
		ExpandedQueries:    []string{},
		Degraded:           true,
	}
}
