package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const maxOpenAIBatch = 100

// OpenAIModel represents a supported OpenAI embedding model.
type OpenAIModel string

const (
	ModelTextEmbedding3Small OpenAIModel = "text-embedding-3-small"
	ModelTextEmbedding3Large OpenAIModel = "text-embedding-3-large"
)

func (m OpenAIModel) dimensions() int {
	switch m {
	case ModelTextEmbedding3Small:
		return 1536
	case ModelTextEmbedding3Large:
		return 3072
	default:
		return 1536
	}
}

// OpenAIProvider generates text embeddings using OpenAI's API. It cannot
// embed images and is typically configured as the alternate provider
// behind the CLIP service.
type OpenAIProvider struct {
	client *openai.Client
	model  OpenAIModel
}

// NewOpenAIProvider creates a new OpenAI provider with the given API key and model.
func NewOpenAIProvider(apiKey string, model OpenAIModel) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return string(p.model)
}

func (p *OpenAIProvider) Dimensions() int {
	return p.model.dimensions()
}

func (p *OpenAIProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedImage always fails: the OpenAI embedding endpoint is text-only.
func (p *OpenAIProvider) EmbedImage(_ context.Context, path string) ([]float32, error) {
	return nil, fmt.Errorf("embed image %s: %w", path, ErrUnsupportedInput)
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, inputs []Input) ([][]float32, error) {
	texts := make([]string, len(inputs))
	for i, in := range inputs {
		if in.IsImage() {
			return nil, fmt.Errorf("batch item %d: %w", i, ErrUnsupportedInput)
		}
		texts[i] = in.Text
	}
	return p.embed(ctx, texts)
}

func (p *OpenAIProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allEmbeddings := make([][]float32, 0, len(texts))

	// Batch up to maxOpenAIBatch texts per API call.
	for i := 0; i < len(texts); i += maxOpenAIBatch {
		end := i + maxOpenAIBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}

		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
		}

		for _, emb := range resp.Data {
			allEmbeddings = append(allEmbeddings, emb.Embedding)
		}
	}

	return allEmbeddings, nil
}

// Healthy probes the API with a minimal model list request.
func (p *OpenAIProvider) Healthy(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}
