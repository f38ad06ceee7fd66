package engine

import "context"

type Message struct {
	Role    string
	Content string
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Embedder turns texts into vectors. One vector per input, same order.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// TextGenerator produces a completion for a chat-style prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
}

type Engine interface {
	Embedder
	TextGenerator
}

// UserPrompt wraps a single prompt as a one-message conversation.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: "user", Content: prompt}}
}
