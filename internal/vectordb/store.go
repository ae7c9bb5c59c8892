// Package vectordb stores embedded document nodes and answers
// nearest-neighbour queries over them. Text and image nodes live in
// separate logical collections so cross-modal search can target either.
package vectordb

import (
	"context"

	"github.com/tessera-search/tessera/internal/node"
)

// Filter restricts a vector search by exact-match metadata.
type Filter struct {
	DocumentID *string
	Language   *string
	Page       *int
}

// Scored is a stored node with its query similarity.
type Scored struct {
	Node       node.Node
	Similarity float32
}

// Store persists embedded nodes and searches them by vector.
type Store interface {
	// Upsert writes nodes into the collection matching their kind.
	// Nodes without embeddings are skipped. Writing an existing id
	// replaces the stored node.
	Upsert(ctx context.Context, nodes []node.Node) error

	// Search returns up to topK nodes of the given kind nearest to
	// vector, dropping results below minSimilarity.
	Search(ctx context.Context, kind node.Kind, vector []float32, topK int, filter *Filter, minSimilarity float32) ([]Scored, error)

	// DeleteByDocument removes every node of the given document id.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Persist writes the store to dir; Load restores it.
	Persist(ctx context.Context, dir string) error
	Load(ctx context.Context, dir string) error

	// Count returns the number of stored nodes of the given kind.
	Count(kind node.Kind) int
}
