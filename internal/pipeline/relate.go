package pipeline

import (
	"math"
	"regexp"
	"strings"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/node"
)

// captionMaxLength bounds how long a text node can be and still count
// as a caption candidate.
const captionMaxLength = 200

// figureRefPattern matches textual references to figures and tables
// ("Figure 3", "fig. 2", "Table 1").
var figureRefPattern = regexp.MustCompile(`(?i)\b(?:fig(?:ure)?\.?|table)\s*\d+`)

// captionVocabulary marks short text nodes that look like captions.
var captionVocabulary = []string{"figure", "fig.", "fig ", "table", "caption", "source:", "image:"}

// InferRelationships links nodes in place: positional proximity,
// figure/table references, captions next to images, and high vector
// similarity. Returns the number of relationships added.
func InferRelationships(nodes []node.Node, cfg config.PipelineConfig) int {
	added := 0

	for i := range nodes {
		for j := range nodes {
			if i == j {
				continue
			}
			a, b := &nodes[i], &nodes[j]

			// Same-page positional proximity, weighted by inverse distance.
			if a.Position.Page == b.Position.Page {
				if d := distance(a.Position, b.Position); d < cfg.ProximityThreshold {
					a.Relationships = append(a.Relationships, node.Relationship{
						Type:     node.RelProximity,
						TargetID: b.ID,
						Weight:   1.0 / (1.0 + d),
					})
					added++
				}
			}

			// Text mentioning "Figure N"/"Table N" references nearby images.
			if a.Kind == node.KindText && b.Kind == node.KindImage && figureRefPattern.MatchString(a.Content) {
				a.Relationships = append(a.Relationships, node.Relationship{
					Type:     node.RelReferences,
					TargetID: b.ID,
					Weight:   0.8,
				})
				added++
			}

			// Short caption-like text adjacent to an image on the same page.
			if a.Kind == node.KindText && b.Kind == node.KindImage &&
				a.Position.Page == b.Position.Page &&
				len(a.Content) <= captionMaxLength &&
				hasCaptionVocabulary(a.Content) &&
				distance(a.Position, b.Position) < cfg.ProximityThreshold {
				a.Relationships = append(a.Relationships, node.Relationship{
					Type:     node.RelCaption,
					TargetID: b.ID,
					Weight:   0.9,
				})
				added++
			}

			// Cross-modal semantic similarity above the configured threshold.
			if a.HasEmbedding() && b.HasEmbedding() {
				if sim := Cosine(a.Embedding, b.Embedding); sim > cfg.SimilarityThreshold {
					a.Relationships = append(a.Relationships, node.Relationship{
						Type:     node.RelSimilar,
						TargetID: b.ID,
						Weight:   sim,
					})
					added++
				}
			}
		}
	}

	// Reading order between consecutive text nodes on the same page.
	var prevText *node.Node
	for i := range nodes {
		if nodes[i].Kind != node.KindText {
			continue
		}
		if prevText != nil && prevText.Position.Page == nodes[i].Position.Page {
			nodes[i].Relationships = append(nodes[i].Relationships, node.Relationship{
				Type:     node.RelFollows,
				TargetID: prevText.ID,
				Weight:   1.0,
			})
			added++
		}
		prevText = &nodes[i]
	}

	return added
}

func hasCaptionVocabulary(content string) bool {
	lower := strings.ToLower(content)
	for _, v := range captionVocabulary {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

func distance(a, b node.Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Cosine returns the cosine similarity of two vectors, or 0 when the
// lengths differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
