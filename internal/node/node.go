// Package node defines the atomic unit of indexed content shared by the
// transformation pipeline, the vector store, and the search engine.
package node

import "time"

// Kind identifies what a node contains.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindTable Kind = "table"
)

// RelationshipType identifies a typed link between two nodes.
type RelationshipType string

const (
	RelContains   RelationshipType = "contains"
	RelReferences RelationshipType = "references"
	RelFollows    RelationshipType = "follows"
	RelCaption    RelationshipType = "caption"
	RelSimilar    RelationshipType = "similar"
	RelProximity  RelationshipType = "proximity"
)

// Relationship links a node to another node id with a weight in [0, 1].
type Relationship struct {
	Type     RelationshipType `json:"type"`
	TargetID string           `json:"target_id"`
	Weight   float64          `json:"weight"`
}

// Position locates content on a page. X and Y are the top-left corner of
// the content's bounding box in page coordinates.
type Position struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Node is a single indexed unit of content. Nodes are immutable once
// stored; reprocessing a document supersedes its nodes by id.
type Node struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	Kind          Kind           `json:"kind"`
	Content       string         `json:"content"`
	Language      string         `json:"language,omitempty"`
	Confidence    float64        `json:"confidence"`
	Position      Position       `json:"position"`
	SourcePath    string         `json:"source_path"`
	Embedding     []float32      `json:"-"`
	Relationships []Relationship `json:"relationships,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HasEmbedding reports whether the node carries a vector.
func (n *Node) HasEmbedding() bool {
	return len(n.Embedding) > 0
}
