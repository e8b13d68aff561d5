package embedding

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hivemindhq/hivemind/internal/logging"
)

var log = logging.WithComponent("EMBEDDING")

// Hit is one (memory id, similarity) result from a vector search.
type Hit struct {
	ID         int64
	Similarity float64
}

// Index is the concurrent memory_id -> vector mapping from spec.md
// §4.4, plus an atomically maintained "dimensions" reading (length of
// the most recently observed vector) for status reporting. It never
// fails a write on the main mutation path: if the provider is
// unreachable, indexing is skipped with a warning and the caller's
// mutation still succeeds.
type Index struct {
	mu       sync.RWMutex
	vectors  map[int64][]float32
	provider Provider
	dims     atomic.Int64
}

// New creates an index backed by provider. provider may be nil, in
// which case the index is permanently unavailable.
func New(provider Provider) *Index {
	return &Index{
		vectors:  make(map[int64][]float32),
		provider: provider,
	}
}

// Available mirrors the configured provider's availability rule; an
// index with no provider is never available.
func (idx *Index) Available() bool {
	return idx.provider != nil && idx.provider.Available()
}

// Len reports how many memories currently have a vector.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Dimensions returns the length of the most recently observed vector.
func (idx *Index) Dimensions() int {
	return int(idx.dims.Load())
}

// IndexOne computes a vector for content and stores it, overwriting
// any existing entry. Failures are logged and swallowed: the store
// remains consistent even when the provider is unreachable.
func (idx *Index) IndexOne(ctx context.Context, id int64, content string) {
	if !idx.Available() {
		return
	}
	vec, err := idx.provider.Embed(ctx, content)
	if err != nil {
		log.Warnf("failed to index memory %d: %v", id, err)
		return
	}
	idx.put(id, vec)
}

// BatchIndex computes vectors for every (id, content) pair with a
// single EmbedBatch call to the provider.
func (idx *Index) BatchIndex(ctx context.Context, ids []int64, contents []string) {
	if !idx.Available() || len(ids) == 0 {
		return
	}
	vecs, err := idx.provider.EmbedBatch(ctx, contents)
	if err != nil {
		log.Warnf("failed to batch-index %d memories: %v", len(ids), err)
		return
	}
	for i, id := range ids {
		if i >= len(vecs) {
			break
		}
		idx.put(id, vecs[i])
	}
}

func (idx *Index) put(id int64, vec []float32) {
	idx.mu.Lock()
	idx.vectors[id] = vec
	idx.mu.Unlock()
	idx.dims.Store(int64(len(vec)))
}

// Remove deletes a memory's vector, used synchronously on
// invalidation.
func (idx *Index) Remove(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, id)
}

// SearchByVector iterates every indexed vector, computes cosine
// similarity against q, sorts descending, and truncates to k.
func (idx *Index) SearchByVector(q []float32, k int) []Hit {
	idx.mu.RLock()
	hits := make([]Hit, 0, len(idx.vectors))
	for id, vec := range idx.vectors {
		hits = append(hits, Hit{ID: id, Similarity: Cosine(q, vec)})
	}
	idx.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// TopK backs the engine's search.VectorScorer adapter: embed the query
// text with the configured provider, then search the index.
func (idx *Index) TopK(query string, k int) []Hit {
	if !idx.Available() || idx.Len() == 0 {
		return nil
	}
	vec, err := idx.provider.Embed(context.Background(), query)
	if err != nil {
		log.Warnf("failed to embed search query: %v", err)
		return nil
	}
	return idx.SearchByVector(vec, k)
}

// Cosine returns 0 when either vector is empty, the two have
// different lengths, or either has zero norm; otherwise dot / (|a|*|b|).
// Symmetric and bounded in [-1, 1].
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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
