package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tessera-search/tessera/internal/node"
)

const (
	textCollection  = "text_nodes"
	imageCollection = "image_nodes"
)

// queryByVectorOnly is installed as the collections' embedding func.
// All writes carry precomputed vectors and all queries go through
// QueryEmbedding, so this should never run.
func queryByVectorOnly(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("vectordb: collection is queried by vector only")
}

// ChromemStore implements Store using chromem-go with one collection
// per node kind.
type ChromemStore struct {
	db          *chromem.DB
	collections map[node.Kind]*chromem.Collection
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore() (*ChromemStore, error) {
	db := chromem.NewDB()

	s := &ChromemStore{
		db:          db,
		collections: make(map[node.Kind]*chromem.Collection),
	}
	for kind, name := range collectionNames() {
		col, err := db.GetOrCreateCollection(name, nil, queryByVectorOnly)
		if err != nil {
			return nil, fmt.Errorf("create collection %s: %w", name, err)
		}
		s.collections[kind] = col
	}
	return s, nil
}

// collectionNames maps node kinds to their collection. Tables are
// indexed alongside text; their content is linearized rows.
func collectionNames() map[node.Kind]string {
	return map[node.Kind]string{
		node.KindText:  textCollection,
		node.KindImage: imageCollection,
		node.KindTable: textCollection,
	}
}

func (s *ChromemStore) collection(kind node.Kind) (*chromem.Collection, error) {
	col, ok := s.collections[kind]
	if !ok {
		return nil, fmt.Errorf("no collection for node kind %q", kind)
	}
	return col, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, nodes []node.Node) error {
	byKind := make(map[node.Kind][]chromem.Document)
	for _, n := range nodes {
		if !n.HasEmbedding() {
			continue
		}
		byKind[n.Kind] = append(byKind[n.Kind], chromem.Document{
			ID:        n.ID,
			Content:   n.Content,
			Embedding: n.Embedding,
			Metadata:  nodeMetadata(n),
		})
	}

	for kind, docs := range byKind {
		col, err := s.collection(kind)
		if err != nil {
			return err
		}
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("upsert %d %s nodes: %w", len(docs), kind, err)
		}
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, kind node.Kind, vector []float32, topK int, filter *Filter, minSimilarity float32) ([]Scored, error) {
	col, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, buildWhere(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("query %s collection: %w", kind, err)
	}

	var scored []Scored
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		n := metadataToNode(r.Metadata)
		n.ID = r.ID
		n.Content = r.Content
		n.Embedding = r.Embedding
		scored = append(scored, Scored{Node: n, Similarity: r.Similarity})
	}
	return scored, nil
}

func (s *ChromemStore) DeleteByDocument(ctx context.Context, documentID string) error {
	where := map[string]string{"document_id": documentID}
	for kind := range s.collections {
		col := s.collections[kind]
		if col.Count() == 0 {
			continue
		}
		if err := col.Delete(ctx, where, nil); err != nil {
			return fmt.Errorf("delete document %s from %s: %w", documentID, kind, err)
		}
	}
	return nil
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/vectors.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(dir+"/vectors.gob.gz", ""); err != nil {
		return fmt.Errorf("import vector store: %w", err)
	}

	// Re-acquire collection references after import.
	for kind, name := range collectionNames() {
		col := s.db.GetCollection(name, queryByVectorOnly)
		if col == nil {
			return fmt.Errorf("collection %q not found after import", name)
		}
		s.collections[kind] = col
	}
	return nil
}

func (s *ChromemStore) Count(kind node.Kind) int {
	col, ok := s.collections[kind]
	if !ok {
		return 0
	}
	return col.Count()
}

// nodeMetadata flattens a node into chromem's map[string]string metadata.
func nodeMetadata(n node.Node) map[string]string {
	return map[string]string{
		"document_id": n.DocumentID,
		"kind":        string(n.Kind),
		"language":    n.Language,
		"confidence":  strconv.FormatFloat(n.Confidence, 'f', 4, 64),
		"page":        strconv.Itoa(n.Position.Page),
		"x":           strconv.FormatFloat(n.Position.X, 'f', 2, 64),
		"y":           strconv.FormatFloat(n.Position.Y, 'f', 2, 64),
		"source_path": n.SourcePath,
		"created_at":  n.CreatedAt.Format(time.RFC3339),
	}
}

// metadataToNode rebuilds node fields from flat metadata.
func metadataToNode(m map[string]string) node.Node {
	confidence, _ := strconv.ParseFloat(m["confidence"], 64)
	page, _ := strconv.Atoi(m["page"])
	x, _ := strconv.ParseFloat(m["x"], 64)
	y, _ := strconv.ParseFloat(m["y"], 64)
	createdAt, _ := time.Parse(time.RFC3339, m["created_at"])

	return node.Node{
		DocumentID: m["document_id"],
		Kind:       node.Kind(m["kind"]),
		Language:   m["language"],
		Confidence: confidence,
		Position:   node.Position{Page: page, X: x, Y: y},
		SourcePath: m["source_path"],
		CreatedAt:  createdAt,
	}
}

// buildWhere converts a Filter to a chromem where clause.
func buildWhere(filter *Filter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.DocumentID != nil {
		where["document_id"] = *filter.DocumentID
	}
	if filter.Language != nil {
		where["language"] = *filter.Language
	}
	if filter.Page != nil {
		where["page"] = strconv.Itoa(*filter.Page)
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
