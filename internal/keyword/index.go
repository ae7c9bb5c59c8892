// Package keyword provides the in-process inverted index half of hybrid
// search, backed by SQLite FTS5.
package keyword

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tessera-search/tessera/internal/node"
)

// Hit is one keyword match with its BM25 relevance.
type Hit struct {
	NodeID     string
	DocumentID string
	Kind       node.Kind
	Language   string
	Page       int
	Content    string
	Score      float64
}

// Index is a full-text index over node content.
type Index struct {
	db   *sql.DB
	path string
}

// Open creates or opens the keyword index at the given path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging keyword index: %w", err)
	}

	idx := &Index{db: db, path: path}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running index migrations: %w", err)
	}
	return idx, nil
}

// OpenMemory creates an in-memory keyword index (useful for testing).
func OpenMemory() (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory index: %w", err)
	}
	idx := &Index{db: db, path: ":memory:"}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running index migrations: %w", err)
	}
	return idx, nil
}

func (i *Index) migrate() error {
	_, err := i.db.Exec(schema)
	return err
}

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
    node_id UNINDEXED,
    document_id UNINDEXED,
    kind UNINDEXED,
    language UNINDEXED,
    page UNINDEXED,
    content
);
`

// Add indexes the given nodes, replacing prior entries with the same id.
func (i *Index) Add(ctx context.Context, nodes []node.Node) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, `DELETE FROM nodes_fts WHERE node_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes_fts (node_id, document_id, kind, language, page, content) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for _, n := range nodes {
		if strings.TrimSpace(n.Content) == "" {
			continue
		}
		if _, err := del.ExecContext(ctx, n.ID); err != nil {
			return fmt.Errorf("deleting node %s: %w", n.ID, err)
		}
		if _, err := ins.ExecContext(ctx, n.ID, n.DocumentID, string(n.Kind), n.Language, n.Position.Page, n.Content); err != nil {
			return fmt.Errorf("indexing node %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// Search returns nodes matching the query ordered by BM25 relevance.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := buildMatch(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := i.db.QueryContext(ctx,
		`SELECT node_id, document_id, kind, language, page, content, bm25(nodes_fts)
		 FROM nodes_fts WHERE nodes_fts MATCH ? ORDER BY rank LIMIT ?`,
		match, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var kind string
		var rank float64
		if err := rows.Scan(&h.NodeID, &h.DocumentID, &kind, &h.Language, &h.Page, &h.Content, &rank); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		h.Kind = node.Kind(kind)
		// bm25() returns lower-is-better negative ranks; flip so callers
		// see higher-is-better scores.
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// DeleteByDocument removes all indexed nodes of the given document.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := i.db.ExecContext(ctx, `DELETE FROM nodes_fts WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("deleting document %s from index: %w", documentID, err)
	}
	return nil
}

// Count returns the number of indexed nodes.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT count(*) FROM nodes_fts`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (i *Index) Close() error { return i.db.Close() }

// buildMatch quotes each query term so user input cannot break FTS5
// syntax, then ORs the terms for recall; BM25 ranking rewards documents
// matching more of them.
func buildMatch(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}
