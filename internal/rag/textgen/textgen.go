package textgen

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/graphrag-core/internal/engine"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/platform/retry"
	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Retry       retry.Policy
}

// Client is the generation gateway: one prompt in, one completion out, with the
// shared timeout/retry policy applied.
type Client struct {
	log *logger.Logger
	gen engine.TextGenerator
	cfg Config
}

func New(log *logger.Logger, gen engine.TextGenerator, cfg Config) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "default"
	}
	return &Client{log: log.With("component", "TextGenerator"), gen: gen, cfg: cfg}
}

func (c *Client) Model() string { return c.cfg.Model }

// Complete sends prompt as a single user message. Empty completions count as failures.
func (c *Client) Complete(ctx context.Context, op string, prompt string) (string, error) {
	if c == nil || c.gen == nil {
		return "", ragerr.New(ragerr.Internal, op, errors.New("no text generator configured"))
	}
	opts := engine.GenerateOptions{Temperature: c.cfg.Temperature, MaxTokens: c.cfg.MaxTokens}

	var out string
	err := retry.Do(ctx, c.cfg.Retry, c.log, op, func(cctx context.Context) error {
		text, err := c.gen.GenerateText(cctx, c.cfg.Model, engine.UserPrompt(prompt), opts)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return errors.New("empty completion")
		}
		out = text
		return nil
	})
	if err != nil {
		return "", ragerr.Transient(op, err)
	}
	return out, nil
}
