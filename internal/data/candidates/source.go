// Package candidates supplies the document and entity pools the pipeline scores against.
package candidates

import (
	"context"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

// Source returns read-only snapshots; callers must not mutate the returned slices.
type Source interface {
	Documents(ctx context.Context) ([]graphrag.Document, error)
	Entities(ctx context.Context) ([]graphrag.Entity, error)
}

// Snapshot is the on-disk and seed format of a candidate set.
type Snapshot struct {
	Documents []graphrag.Document `json:"documents" yaml:"documents"`
	Entities  []graphrag.Entity   `json:"entities" yaml:"entities"`
	Relations []graphrag.Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
}
