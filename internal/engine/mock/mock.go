package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yungbote/graphrag-core/internal/engine"
)

// Engine is a deterministic offline engine. Unknown texts embed to a sha256-derived
// vector; Vectors pins exact vectors for texts so callers can control similarity.
type Engine struct {
	EmbeddingDims int

	mu      sync.Mutex
	vectors map[string][]float32
	replies []reply

	embedErr    error
	embedFails  int
	genErr      error
	genFails    int
	embedCalls  atomic.Int64
	genCalls    atomic.Int64
	lastPrompts []string
}

type reply struct {
	contains string
	text     string
}

func New() *Engine {
	return &Engine{EmbeddingDims: 8, vectors: map[string][]float32{}}
}

// SetVector pins the embedding returned for text.
func (e *Engine) SetVector(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vectors == nil {
		e.vectors = map[string][]float32{}
	}
	e.vectors[text] = append([]float32(nil), vec...)
}

// Reply makes GenerateText return text for prompts containing substr.
// Earlier registrations win.
func (e *Engine) Reply(substr, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, reply{contains: substr, text: text})
}

// FailEmbed makes the next n Embed calls return err. n < 0 fails forever.
func (e *Engine) FailEmbed(err error, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedErr, e.embedFails = err, n
}

// FailGenerate makes the next n GenerateText calls return err. n < 0 fails forever.
func (e *Engine) FailGenerate(err error, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.genErr, e.genFails = err, n
}

func (e *Engine) EmbedCalls() int    { return int(e.embedCalls.Load()) }
func (e *Engine) GenerateCalls() int { return int(e.genCalls.Load()) }

// Prompts returns every prompt GenerateText has seen.
func (e *Engine) Prompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lastPrompts...)
}

func takeFailure(err *error, n *int) error {
	if *err == nil || *n == 0 {
		return nil
	}
	out := *err
	if *n > 0 {
		*n--
		if *n == 0 {
			*err = nil
		}
	}
	return out
}

func (e *Engine) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	e.embedCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if err := takeFailure(&e.embedErr, &e.embedFails); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	dims := e.EmbeddingDims
	if dims <= 0 {
		dims = 8
	}
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		if v, ok := e.vectors[s]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		h := sha256.Sum256([]byte(model + "\n" + s))
		vec := make([]float32, dims)
		for j := 0; j < dims; j++ {
			u := binary.LittleEndian.Uint32(h[(j*4)%len(h):])
			vec[j] = float32(u%10_000)/10_000.0 - 0.5
		}
		out[i] = vec
	}
	e.mu.Unlock()
	return out, nil
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	_ = model
	_ = opts
	e.genCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPrompts = append(e.lastPrompts, user)
	if err := takeFailure(&e.genErr, &e.genFails); err != nil {
		return "", err
	}
	for _, r := range e.replies {
		if strings.Contains(user, r.contains) {
			return r.text, nil
		}
	}
	if strings.TrimSpace(user) == "" {
		return "mock: ok", nil
	}
	return fmt.Sprintf("mock: %s", firstLine(user)), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
