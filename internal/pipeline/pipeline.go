// Package pipeline turns externally-extracted document content into an
// embedded, relationship-linked set of indexed nodes.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/embeddings"
	"github.com/tessera-search/tessera/internal/extractor"
	"github.com/tessera-search/tessera/internal/keyword"
	"github.com/tessera-search/tessera/internal/node"
	"github.com/tessera-search/tessera/internal/vectordb"
)

// Pipeline orchestrates the transformation workflow:
// extract -> chunk -> nodes -> embed -> relate -> store.
type Pipeline struct {
	extract  extractor.Extractor
	embedder *embeddings.Service
	store    vectordb.Store
	index    *keyword.Index
	cfg      config.PipelineConfig
}

// New creates a Pipeline with its collaborators injected.
func New(ex extractor.Extractor, embedder *embeddings.Service, store vectordb.Store, index *keyword.Index, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		extract:  ex,
		embedder: embedder,
		store:    store,
		index:    index,
		cfg:      cfg,
	}
}

// DocumentID derives the stable document id for a source path. Using a
// name-based UUID keeps node ids stable across reprocessing, which is
// what makes vector-store writes idempotent.
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tessera:"+abs)).String()
}

// Run transforms the document at path into an IndexedDocument,
// reporting progress through onStage (which may be nil). Extraction
// failures abort the document; embedding failures degrade per node;
// storage failures are logged and do not fail the run.
func (p *Pipeline) Run(ctx context.Context, path string, onStage StageFunc) (*IndexedDocument, error) {
	start := time.Now()
	docID := DocumentID(path)

	progress := func(stage string, percent float64) {
		if onStage != nil {
			onStage(stage, percent)
		}
	}

	// Stage 1: extraction (remote call, hard failure).
	progress(StageExtracting, 0)
	extracted, err := p.extract.Process(ctx, path, extractor.Options{
		ExtractImages: true,
		ExtractTables: true,
		RunOCR:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	progress(StageExtracting, 15)

	// Stage 2: chunking.
	chunks := BuildChunks(extracted.Spans, p.cfg)
	progress(StageChunking, 30)

	// Stage 3: node creation.
	nodes := p.buildNodes(docID, path, extracted, chunks)
	progress(StageBuildingNodes, 45)

	// Stage 4: embedding through the resilience layer.
	if err := p.embedNodes(ctx, nodes); err != nil {
		return nil, err
	}
	progress(StageEmbedding, 70)

	// Stage 5: relationship inference.
	relationships := InferRelationships(nodes, p.cfg)
	progress(StageRelating, 85)

	// Stage 6: storage. Failures here are logged, not fatal; the nodes
	// simply stay unsearchable until the document is reprocessed.
	if err := p.store.Upsert(ctx, nodes); err != nil {
		log.Printf("pipeline: vector store upsert for %s: %v", filepath.Base(path), err)
	}
	if err := p.index.Add(ctx, nodes); err != nil {
		log.Printf("pipeline: keyword index add for %s: %v", filepath.Base(path), err)
	}
	progress(StageStoring, 100)

	doc := &IndexedDocument{
		DocumentID:   docID,
		SourcePath:   path,
		Nodes:        nodes,
		Stats:        buildStats(nodes, relationships),
		QualityScore: extracted.QualityScore,
		Duration:     time.Since(start),
	}
	return doc, nil
}

// buildNodes creates one text node per chunk, one image node per
// extracted image, and one table node per extracted table.
func (p *Pipeline) buildNodes(docID, path string, extracted *extractor.Result, chunks []Chunk) []node.Node {
	now := time.Now()
	var nodes []node.Node

	for i, c := range chunks {
		nodes = append(nodes, node.Node{
			ID:         fmt.Sprintf("%s:text:%d", docID, i),
			DocumentID: docID,
			Kind:       node.KindText,
			Content:    c.Text,
			Language:   extracted.Language,
			Confidence: extracted.QualityScore,
			Position:   node.Position{Page: c.Page, X: c.X, Y: c.Y},
			SourcePath: path,
			CreatedAt:  now,
		})
	}

	for i, img := range extracted.Images {
		nodes = append(nodes, node.Node{
			ID:         fmt.Sprintf("%s:image:%d", docID, i),
			DocumentID: docID,
			Kind:       node.KindImage,
			Content:    imageContent(img),
			Language:   extracted.Language,
			Confidence: extracted.QualityScore,
			Position:   node.Position{Page: img.Page, X: img.X, Y: img.Y},
			SourcePath: img.Path,
			CreatedAt:  now,
		})
	}

	for i, tbl := range extracted.Tables {
		nodes = append(nodes, node.Node{
			ID:         fmt.Sprintf("%s:table:%d", docID, i),
			DocumentID: docID,
			Kind:       node.KindTable,
			Content:    tableContent(tbl),
			Language:   extracted.Language,
			Confidence: extracted.QualityScore,
			Position:   node.Position{Page: tbl.Page, X: tbl.X, Y: tbl.Y},
			SourcePath: path,
			CreatedAt:  now,
		})
	}

	return nodes
}

// imageContent picks the best textual stand-in for an image: OCR text,
// then caption, then a generic label.
func imageContent(img extractor.Image) string {
	if strings.TrimSpace(img.OCRText) != "" {
		return img.OCRText
	}
	if strings.TrimSpace(img.Caption) != "" {
		return img.Caption
	}
	return fmt.Sprintf("Image on page %d", img.Page)
}

// tableContent linearizes table rows into searchable text.
func tableContent(tbl extractor.Table) string {
	var parts []string
	if tbl.Caption != "" {
		parts = append(parts, tbl.Caption)
	}
	for _, row := range tbl.Rows {
		parts = append(parts, strings.Join(row, " | "))
	}
	return strings.Join(parts, "\n")
}

// embedNodes batches nodes through the resilience layer. A node whose
// embedding still fails after all fallbacks keeps no vector; that is a
// degraded node, not a failed document.
func (p *Pipeline) embedNodes(ctx context.Context, nodes []node.Node) error {
	batchSize := p.cfg.EmbedBatchSize
	if batchSize < 1 {
		batchSize = 16
	}

	for start := 0; start < len(nodes); start += batchSize {
		end := start + batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[start:end]

		inputs := make([]embeddings.Input, len(batch))
		for i, n := range batch {
			if n.Kind == node.KindImage && n.SourcePath != "" {
				inputs[i] = embeddings.Input{ImagePath: n.SourcePath}
			} else {
				inputs[i] = embeddings.Input{Text: n.Content}
			}
		}

		results, err := p.embedder.EmbedBatch(ctx, inputs, p.cfg.EmbedConcurrency)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// EmbedBatch isolates per-item failures; an error here means
			// the inputs themselves were unusable. Leave the batch
			// unembedded and continue.
			log.Printf("pipeline: embed batch: %v", err)
			continue
		}
		for i := range batch {
			if results[i].Quality > degradedEmbeddingCutoff {
				batch[i].Embedding = results[i].Vector
			}
		}
	}
	return nil
}

// degradedEmbeddingCutoff filters placeholder vectors out of the
// stored index; a random vector in the store is worse than no vector.
const degradedEmbeddingCutoff = 0.2

func buildStats(nodes []node.Node, relationships int) DocStats {
	stats := DocStats{
		TotalNodes:    len(nodes),
		Relationships: relationships,
	}

	embedded := 0
	chunkChars := 0
	for _, n := range nodes {
		switch n.Kind {
		case node.KindText:
			stats.TextNodes++
			chunkChars += len(n.Content)
		case node.KindImage:
			stats.ImageNodes++
		case node.KindTable:
			stats.TableNodes++
		}
		if n.HasEmbedding() {
			embedded++
		}
	}

	if stats.TextNodes > 0 {
		stats.AvgChunkSize = float64(chunkChars) / float64(stats.TextNodes)
	}
	if stats.TotalNodes > 0 {
		stats.EmbeddingCoverage = float64(embedded) / float64(stats.TotalNodes)
	}
	return stats
}
