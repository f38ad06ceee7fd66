package graphrag

import "time"

// Document is a read-only snapshot of an ingested document.
type Document struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Source    string     `json:"source,omitempty"`
	Embedding []float32  `json:"embedding,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Entity is a node of the knowledge graph. (Name, Type) is its natural key.
type Entity struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Embedding   []float32      `json:"embedding,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// Relation is an edge tuple. The core never persists it.
type Relation struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Directed    bool    `json:"directed,omitempty"`
}

func (d Document) Vector() []float32 { return d.Embedding }
func (d Document) Label() string     { return d.Title }
func (d Document) Origin() string    { return d.Source }
func (d Document) Key() string       { return d.ID }

// Timestamp prefers the last update over creation time.
func (d Document) Timestamp() *time.Time {
	if d.UpdatedAt != nil {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

func (e Entity) Vector() []float32     { return e.Embedding }
func (e Entity) Label() string         { return e.Name }
func (e Entity) Origin() string        { return "" }
func (e Entity) Key() string           { return e.ID }
func (e Entity) Timestamp() *time.Time { return nil }
func (e Entity) NaturalKey() [2]string { return [2]string{e.Name, e.Type} }
