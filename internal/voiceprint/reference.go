package voiceprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"voiceclip/internal/fileutil"
	"voiceclip/internal/services"
)

// Reference is the enrolled fingerprint of the target speaker.
type Reference struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
	Sources   []string  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Similarity scores an embedding against the reference vector.
func (r Reference) Similarity(embedding []float32) float64 {
	return CosineSimilarity(r.Vector, embedding)
}

// Validate checks that the vector is usable for scoring.
func (r Reference) Validate() error {
	if len(r.Vector) == 0 {
		return services.Wrap(services.ErrMissingReference, "reference", "validate", "empty vector", nil)
	}
	if r.Dimension != 0 && r.Dimension != len(r.Vector) {
		return services.Wrap(services.ErrMissingReference, "reference", "validate",
			fmt.Sprintf("dimension %d does not match vector length %d", r.Dimension, len(r.Vector)), nil)
	}
	var norm float64
	for _, v := range r.Vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return services.Wrap(services.ErrMissingReference, "reference", "validate", "all-zero vector", nil)
	}
	return nil
}

// LoadReference reads a fingerprint file. A missing, empty, or unreadable file
// yields ErrMissingReference.
func LoadReference(path string) (Reference, error) {
	if strings.TrimSpace(path) == "" {
		return Reference{}, services.Wrap(services.ErrMissingReference, "reference", "load", "no reference path configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Reference{}, services.Wrap(services.ErrMissingReference, "reference", "load", path, err)
		}
		return Reference{}, fmt.Errorf("read reference: %w", err)
	}
	var ref Reference
	if err := json.Unmarshal(data, &ref); err != nil {
		return Reference{}, services.Wrap(services.ErrMissingReference, "reference", "decode", path, err)
	}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	if ref.Dimension == 0 {
		ref.Dimension = len(ref.Vector)
	}
	return ref, nil
}

// SaveReference writes the fingerprint atomically as indented JSON.
func SaveReference(path string, ref Reference) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	ref.Dimension = len(ref.Vector)
	data, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reference: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

// Sample is one enrollment recording.
type Sample struct {
	Name       string
	Samples    []float32
	SampleRate int
}

// BuildReference embeds every sample and averages the embeddings into a new
// reference. Samples that fail to embed are skipped; at least one must succeed.
func BuildReference(ctx context.Context, embedder Embedder, model string, samples []Sample) (Reference, []error, error) {
	var (
		vectors [][]float32
		sources []string
		skipped []error
	)
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return Reference{}, skipped, err
		}
		vec, err := embedder.Embed(ctx, sample.Samples, sample.SampleRate)
		if err != nil {
			if ctx.Err() != nil {
				return Reference{}, skipped, ctx.Err()
			}
			skipped = append(skipped, fmt.Errorf("%s: %w", sample.Name, err))
			continue
		}
		vectors = append(vectors, vec)
		sources = append(sources, sample.Name)
	}
	if len(vectors) == 0 {
		return Reference{}, skipped, services.Wrap(services.ErrMissingReference, "enroll", "embed samples", "no sample produced an embedding", nil)
	}
	mean, err := Average(vectors)
	if err != nil {
		return Reference{}, skipped, err
	}
	ref := Reference{
		Model:     model,
		Dimension: len(mean),
		Vector:    mean,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	}
	return ref, skipped, nil
}

// Average returns the element-wise mean of equally sized vectors.
func Average(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("average: no vectors")
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("average: vector %d has dimension %d, want %d", i, len(vec), dim)
		}
		for j, v := range vec {
			sum[j] += float64(v)
		}
	}
	mean := make([]float32, dim)
	for j, total := range sum {
		mean[j] = float32(total / float64(len(vectors)))
	}
	return mean, nil
}
