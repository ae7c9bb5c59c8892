package pipeline

import (
	"time"

	"github.com/tessera-search/tessera/internal/node"
)

// Stage names identify pipeline progress checkpoints.
const (
	StageExtracting    = "extracting"
	StageChunking      = "chunking"
	StageBuildingNodes = "building_nodes"
	StageEmbedding     = "embedding"
	StageRelating      = "relating"
	StageStoring       = "storing"
)

// StageFunc receives progress updates as the pipeline moves through
// its stages. percent is in [0, 100] across the whole document.
type StageFunc func(stage string, percent float64)

// DocStats aggregates what a pipeline run produced.
type DocStats struct {
	TotalNodes        int     `json:"total_nodes"`
	TextNodes         int     `json:"text_nodes"`
	ImageNodes        int     `json:"image_nodes"`
	TableNodes        int     `json:"table_nodes"`
	Relationships     int     `json:"relationships"`
	AvgChunkSize      float64 `json:"avg_chunk_size"`
	EmbeddingCoverage float64 `json:"embedding_coverage"`
}

// IndexedDocument is the result of transforming one source document.
type IndexedDocument struct {
	DocumentID   string        `json:"document_id"`
	SourcePath   string        `json:"source_path"`
	Nodes        []node.Node   `json:"nodes"`
	Stats        DocStats      `json:"stats"`
	QualityScore float64       `json:"quality_score"`
	Duration     time.Duration `json:"duration"`
}
