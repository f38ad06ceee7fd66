package answer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yungbote/graphrag-core/internal/cache"
	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

const (
	InsufficientInformation = "Sorry, I couldn't find enough relevant information to answer your question. Please try rephrasing your question or provide more context."

	fallbackPrefix     = "Based on available information, I'll try to answer your question:\n\n"
	fallbackSuffix     = "\n\nPlease note that this answer may be incomplete. It's recommended to consult additional sources."
	fallbackContextLen = 500
)

var errNoGenerator = errors.New("answer: no text generator configured")

// Completer is the slice of the generation gateway the generator needs.
type Completer interface {
	Complete(ctx context.Context, op string, prompt string) (string, error)
}

type Config struct {
	// Model only namespaces cache entries.
	Model    string
	CacheTTL time.Duration
}

type Generator struct {
	log   *logger.Logger
	gen   Completer
	cache cache.Cache
	cfg   Config
}

func New(log *logger.Logger, gen Completer, c cache.Cache, cfg Config) *Generator {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Generator{log: log.With("component", "AnswerGenerator"), gen: gen, cache: c, cfg: cfg}
}

// Generate never fails: an empty context short-circuits to InsufficientInformation, and a
// generation failure yields the context-wrapping fallback.
func (g *Generator) Generate(ctx context.Context, question string, fc graphrag.FusedContext, a graphrag.QueryAnalysis) string {
	if strings.TrimSpace(fc.Text) == "" {
		g.log.Debug("empty context, skipping generation")
		return InsufficientInformation
	}
	kind := selectTemplate(a.QueryType)
	text, err := g.complete(ctx, kind, map[string]string{"question": question, "context": fc.Text})
	if err != nil {
		g.log.Warn("answer generation failed, using fallback", "query_type", a.QueryType, "error", err)
		return Fallback(fc)
	}
	out := postProcess(text, a.ExpectedAnswerType)
	g.log.Info("answer generated", "query_type", a.QueryType, "template", kind, "length", len(out))
	return out
}

// GenerateStructured wraps Generate with confidence, source count and key points.
func (g *Generator) GenerateStructured(ctx context.Context, question string, fc graphrag.FusedContext, a graphrag.QueryAnalysis) graphrag.StructuredAnswer {
	main := g.Generate(ctx, question, fc, a)
	at := a.ExpectedAnswerType
	if at == "" {
		at = graphrag.AnswerDetailed
	}
	return graphrag.StructuredAnswer{
		MainAnswer:  main,
		Confidence:  Confidence(fc, a),
		SourceCount: len(fc.Segments),
		AnswerType:  at,
		KeyPoints:   keyPoints(main),
	}
}

// GenerateConversational answers with prior turns in the prompt. The output is not
// post-processed; on failure it falls back to Generate.
func (g *Generator) GenerateConversational(ctx context.Context, question string, fc graphrag.FusedContext, a graphrag.QueryAnalysis, history string) string {
	if strings.TrimSpace(history) == "" {
		history = "None"
	}
	text, err := g.complete(ctx, tmplConversational, map[string]string{"question": question, "context": fc.Text, "history": history})
	if err != nil {
		g.log.Warn("conversational answer failed", "error", err)
		return g.Generate(ctx, question, fc, a)
	}
	return strings.TrimSpace(text)
}

// GenerateExplanatory asks for a long-form explanation; on failure it falls back to Generate.
func (g *Generator) GenerateExplanatory(ctx context.Context, question string, fc graphrag.FusedContext, a graphrag.QueryAnalysis) string {
	text, err := g.complete(ctx, tmplExplanatory, map[string]string{"question": question, "context": fc.Text})
	if err != nil {
		g.log.Warn("explanatory answer failed", "error", err)
		return g.Generate(ctx, question, fc, a)
	}
	return strings.TrimSpace(text)
}

// Fallback is the answer used when generation fails.
func Fallback(fc graphrag.FusedContext) string {
	if strings.TrimSpace(fc.Text) == "" {
		return InsufficientInformation
	}
	text := fc.Text
	if r := []rune(text); len(r) > fallbackContextLen {
		text = string(r[:fallbackContextLen])
	}
	return fallbackPrefix + text + fallbackSuffix
}

func (g *Generator) complete(ctx context.Context, kind templateKind, vars map[string]string) (string, error) {
	key := cache.Key("answer", g.cfg.Model, string(kind), vars["question"], vars["context"], vars["history"])
	if g.cache != nil {
		if raw, ok, err := g.cache.Get(ctx, key); err == nil && ok {
			return string(raw), nil
		} else if err != nil {
			g.log.Debug("answer cache read failed", "error", err)
		}
	}
	if g.gen == nil {
		return "", errNoGenerator
	}
	text, err := g.gen.Complete(ctx, "answer."+string(kind), render(kind, vars))
	if err != nil {
		return "", err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, []byte(text), g.cfg.CacheTTL); err != nil {
			g.log.Debug("answer cache write failed", "error", err)
		}
	}
	return text, nil
}
