// Package embeddings produces vectors for text and image content. The
// Service type wraps a remote provider with a circuit breaker, a local
// response cache, and degraded-mode fallbacks so callers never see raw
// provider flakiness.
package embeddings

import (
	"context"
	"errors"
)

// ErrCircuitOpen is returned when the circuit breaker is suppressing
// calls to the provider. Callers can distinguish "provider down" from
// "bad input" with errors.Is.
var ErrCircuitOpen = errors.New("embedding circuit open")

// ErrUnsupportedInput is returned when a provider cannot embed the
// requested modality (e.g. images on a text-only provider).
var ErrUnsupportedInput = errors.New("unsupported embedding input")

// Input is one item of a batch embedding request. Exactly one of Text
// or ImagePath is set.
type Input struct {
	Text      string
	ImagePath string
}

// IsImage reports whether the input refers to an image file.
func (in Input) IsImage() bool { return in.ImagePath != "" }

// Provider generates embeddings remotely.
type Provider interface {
	// EmbedText returns a vector for the given text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage returns a vector for the image at the given path.
	EmbedImage(ctx context.Context, path string) ([]float32, error)

	// EmbedBatch returns one vector per input in order.
	EmbedBatch(ctx context.Context, inputs []Input) ([][]float32, error)

	// Dimensions returns the width of produced vectors.
	Dimensions() int

	// Name returns the provider/model identifier.
	Name() string

	// Healthy reports whether the provider is reachable.
	Healthy(ctx context.Context) bool
}

// Embedding is a produced vector together with how it was obtained.
type Embedding struct {
	Vector  []float32 `json:"vector"`
	Source  string    `json:"source"`
	Quality float64   `json:"quality"`
	Cached  bool      `json:"cached"`
}
