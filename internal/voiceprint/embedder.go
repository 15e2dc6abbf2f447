package voiceprint

import (
	"context"
	"errors"
	"math"
	"sync"
)

// ErrUnavailable marks an embedder handle that can no longer produce
// embeddings, such as a closed handle or a helper process that died. Scans
// stop on it; every other embedding error only costs the current window.
var ErrUnavailable = errors.New("embedder unavailable")

// Embedder maps a mono waveform to a fixed-length speaker embedding.
// Implementations are not required to be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
	Close() error
}

// Factory opens a fresh embedder handle. Callers own the returned handle and
// must close it.
type Factory func(ctx context.Context) (Embedder, error)

// CosineSimilarity returns dot(a,b)/(|a||b|). Mismatched lengths, empty
// vectors, and all-zero vectors score -1.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Serialized guards an Embedder with a mutex so a single handle can be shared
// between goroutines.
type Serialized struct {
	mu    sync.Mutex
	inner Embedder
}

// NewSerialized wraps inner. Wrapping an already serialized embedder returns it
// unchanged.
func NewSerialized(inner Embedder) *Serialized {
	if s, ok := inner.(*Serialized); ok {
		return s
	}
	return &Serialized{inner: inner}
}

// Embed forwards to the wrapped embedder while holding the lock.
func (s *Serialized) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Embed(ctx, samples, sampleRate)
}

// Close closes the wrapped embedder.
func (s *Serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
