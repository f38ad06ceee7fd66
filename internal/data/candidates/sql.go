package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

type DocumentRecord struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Content   string         `gorm:"column:content;type:text" json:"content"`
	Source    string         `gorm:"column:source;index" json:"source"`
	Embedding datatypes.JSON `gorm:"column:embedding" json:"embedding"`
	CreatedAt *time.Time     `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt *time.Time     `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (DocumentRecord) TableName() string { return "graphrag_document" }

type EntityRecord struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	Name        string         `gorm:"column:name;not null;uniqueIndex:idx_entity_name_type" json:"name"`
	Type        string         `gorm:"column:type;uniqueIndex:idx_entity_name_type" json:"type"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Embedding   datatypes.JSON `gorm:"column:embedding" json:"embedding"`
	Properties  datatypes.JSON `gorm:"column:properties" json:"properties"`
}

func (EntityRecord) TableName() string { return "graphrag_entity" }

// SQL reads candidates from postgres or sqlite through gorm.
type SQL struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQL(db *gorm.DB, log *logger.Logger) *SQL {
	if log == nil {
		log = logger.Nop()
	}
	return &SQL{db: db, log: log.With("component", "SQLCandidates")}
}

func (s *SQL) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DocumentRecord{}, &EntityRecord{}); err != nil {
		return fmt.Errorf("candidates: migrate: %w", err)
	}
	return nil
}

// Upsert writes a snapshot, replacing rows with the same id. Relations are ignored.
func (s *SQL) Upsert(ctx context.Context, snap Snapshot) error {
	docs := make([]DocumentRecord, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		rec, err := documentRecord(d)
		if err != nil {
			return err
		}
		docs = append(docs, rec)
	}
	ents := make([]EntityRecord, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		rec, err := entityRecord(e)
		if err != nil {
			return err
		}
		ents = append(ents, rec)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(docs) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&docs).Error; err != nil {
				return fmt.Errorf("candidates: upsert documents: %w", err)
			}
		}
		if len(ents) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&ents).Error; err != nil {
				return fmt.Errorf("candidates: upsert entities: %w", err)
			}
		}
		return nil
	})
}

func (s *SQL) Documents(ctx context.Context) ([]graphrag.Document, error) {
	var recs []DocumentRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("candidates: load documents: %w", err)
	}
	out := make([]graphrag.Document, 0, len(recs))
	for _, r := range recs {
		d := graphrag.Document{ID: r.ID, Title: r.Title, Content: r.Content, Source: r.Source}
		d.Embedding = decodeVector(r.Embedding)
		d.CreatedAt, d.UpdatedAt = r.CreatedAt, r.UpdatedAt
		out = append(out, d)
	}
	s.log.Debug("documents loaded", "count", len(out))
	return out, nil
}

func (s *SQL) Entities(ctx context.Context) ([]graphrag.Entity, error) {
	var recs []EntityRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("candidates: load entities: %w", err)
	}
	out := make([]graphrag.Entity, 0, len(recs))
	for _, r := range recs {
		e := graphrag.Entity{ID: r.ID, Name: r.Name, Type: r.Type, Description: r.Description}
		e.Embedding = decodeVector(r.Embedding)
		if len(r.Properties) > 0 {
			_ = json.Unmarshal(r.Properties, &e.Properties)
		}
		out = append(out, e)
	}
	s.log.Debug("entities loaded", "count", len(out))
	return out, nil
}

func documentRecord(d graphrag.Document) (DocumentRecord, error) {
	emb, err := encodeJSON(d.Embedding)
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("candidates: document %s: %w", d.ID, err)
	}
	rec := DocumentRecord{ID: d.ID, Title: d.Title, Content: d.Content, Source: d.Source, Embedding: emb}
	if d.CreatedAt != nil {
		c := d.CreatedAt.UTC()
		rec.CreatedAt = &c
	}
	if d.UpdatedAt != nil {
		u := d.UpdatedAt.UTC()
		rec.UpdatedAt = &u
	}
	return rec, nil
}

func entityRecord(e graphrag.Entity) (EntityRecord, error) {
	emb, err := encodeJSON(e.Embedding)
	if err != nil {
		return EntityRecord{}, fmt.Errorf("candidates: entity %s: %w", e.ID, err)
	}
	props, err := encodeJSON(e.Properties)
	if err != nil {
		return EntityRecord{}, fmt.Errorf("candidates: entity %s: %w", e.ID, err)
	}
	return EntityRecord{ID: e.ID, Name: e.Name, Type: e.Type, Description: e.Description, Embedding: emb, Properties: props}, nil
}

func encodeJSON[T any](v T) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return datatypes.JSON(b), nil
}

func decodeVector(raw datatypes.JSON) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
