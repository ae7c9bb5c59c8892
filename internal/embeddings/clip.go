package embeddings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// clipDimensions is the vector width of the CLIP ViT-B/32 service.
const clipDimensions = 512

// CLIPProvider calls the CLIP embedding service over HTTP. Text and
// images land in the same vector space, which is what makes cross-modal
// search work.
type CLIPProvider struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewCLIPProvider creates a provider for the CLIP service at endpoint.
func NewCLIPProvider(endpoint, model string, timeout time.Duration) *CLIPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CLIPProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *CLIPProvider) Name() string    { return p.model }
func (p *CLIPProvider) Dimensions() int { return clipDimensions }

type clipTextRequest struct {
	Texts []string `json:"texts"`
}

type clipImageRequest struct {
	ImagesBase64 []string `json:"images_base64"`
}

type clipResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimension  int         `json:"dimension"`
	ModelType  string      `json:"model_type"`
}

func (p *CLIPProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.post(ctx, "/embed/text", clipTextRequest{Texts: []string{text}}, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *CLIPProvider) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", filepath.Base(path), err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	vecs, err := p.post(ctx, "/embed/image", clipImageRequest{ImagesBase64: []string{encoded}}, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all inputs in as few requests as possible: one call
// for the text items and one for the image items, stitched back into
// input order.
func (p *CLIPProvider) EmbedBatch(ctx context.Context, inputs []Input) ([][]float32, error) {
	var texts []string
	var images []string
	textIdx := make([]int, 0, len(inputs))
	imageIdx := make([]int, 0, len(inputs))

	for i, in := range inputs {
		if in.IsImage() {
			data, err := os.ReadFile(in.ImagePath)
			if err != nil {
				return nil, fmt.Errorf("reading image %s: %w", filepath.Base(in.ImagePath), err)
			}
			images = append(images, base64.StdEncoding.EncodeToString(data))
			imageIdx = append(imageIdx, i)
		} else {
			texts = append(texts, in.Text)
			textIdx = append(textIdx, i)
		}
	}

	out := make([][]float32, len(inputs))

	if len(texts) > 0 {
		vecs, err := p.post(ctx, "/embed/text", clipTextRequest{Texts: texts}, len(texts))
		if err != nil {
			return nil, err
		}
		for i, idx := range textIdx {
			out[idx] = vecs[i]
		}
	}
	if len(images) > 0 {
		vecs, err := p.post(ctx, "/embed/image", clipImageRequest{ImagesBase64: images}, len(images))
		if err != nil {
			return nil, err
		}
		for i, idx := range imageIdx {
			out[idx] = vecs[i]
		}
	}

	return out, nil
}

func (p *CLIPProvider) post(ctx context.Context, route string, body any, want int) ([][]float32, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding clip request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+route, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating clip request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("clip %s returned status %d: %s", route, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding clip response: %w", err)
	}
	if len(decoded.Embeddings) != want {
		return nil, fmt.Errorf("clip returned %d embeddings, expected %d", len(decoded.Embeddings), want)
	}

	return decoded.Embeddings, nil
}

// Healthy checks the CLIP service health endpoint.
func (p *CLIPProvider) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
