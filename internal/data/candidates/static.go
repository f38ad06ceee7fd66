package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

// Static serves an in-memory snapshot. Replace swaps it atomically; readers see either
// the old or the new snapshot, never a mix.
type Static struct {
	snap atomic.Pointer[Snapshot]
}

func NewStatic(snap Snapshot) *Static {
	s := &Static{}
	s.snap.Store(&snap)
	return s
}

func (s *Static) Replace(snap Snapshot) {
	s.snap.Store(&snap)
}

// LoadFile reads a JSON or YAML snapshot. An empty path yields an empty source.
func LoadFile(path string) (*Static, error) {
	if strings.TrimSpace(path) == "" {
		return NewStatic(Snapshot{}), nil
	}
	snap, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(snap), nil
}

func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	b, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("candidates: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &snap)
	default:
		err = json.Unmarshal(b, &snap)
	}
	if err != nil {
		return snap, fmt.Errorf("candidates: parse %s: %w", path, err)
	}
	return snap, nil
}

func (s *Static) Documents(context.Context) ([]graphrag.Document, error) {
	return append([]graphrag.Document(nil), s.snap.Load().Documents...), nil
}

func (s *Static) Entities(context.Context) ([]graphrag.Entity, error) {
	return append([]graphrag.Entity(nil), s.snap.Load().Entities...), nil
}

// Relations exposes the snapshot edges so callers can load them into an in-memory graph.
func (s *Static) Relations() []graphrag.Relation {
	return append([]graphrag.Relation(nil), s.snap.Load().Relations...)
}
