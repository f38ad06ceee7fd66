package graph

// Hop is one endpoint reached from a start entity, with the shortest path that reached it.
type Hop struct {
	EntityName        string   `json:"entity_name"`
	EntityType        string   `json:"entity_type"`
	Description       string   `json:"description,omitempty"`
	PathLength        int      `json:"path_length"`
	PathNodes         []string `json:"path_nodes"`
	RelationshipTypes []string `json:"relationship_types,omitempty"`
}

type PathNode struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type PathRel struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type Path struct {
	Nodes         []PathNode `json:"nodes"`
	Relationships []PathRel  `json:"relationships"`
	Length        int        `json:"path_length"`
}

// Edge is a weighted undirected edge between two entities; Entity1 < Entity2.
type Edge struct {
	Entity1 string  `json:"entity1"`
	Entity2 string  `json:"entity2"`
	Weight  float64 `json:"weight"`
}

type CentralityKind string

const (
	CentralityDegree      CentralityKind = "degree"
	CentralityBetweenness CentralityKind = "betweenness"
	CentralityCloseness   CentralityKind = "closeness"
)

type CentralityScore struct {
	EntityName string         `json:"entity_name"`
	EntityType string         `json:"entity_type"`
	Kind       CentralityKind `json:"kind"`
	Score      float64        `json:"score"`
}

type SubgraphNode struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type SubgraphRel struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"relationship_type"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}

type Subgraph struct {
	Nodes             []SubgraphNode `json:"nodes"`
	Relationships     []SubgraphRel  `json:"relationships"`
	NodeCount         int            `json:"node_count"`
	RelationshipCount int            `json:"relationship_count"`
}
