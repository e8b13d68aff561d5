package embedding

import (
	"context"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1},
		{"empty vector", nil, []float32{1, 0}, 0},
		{"mismatched length", []float32{1, 0, 0}, []float32{1, 0}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Cosine(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

type fakeProvider struct {
	vectors   map[string][]float32
	available bool
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.vectors[text], nil
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectors[t]
	}
	return out, nil
}

func (p *fakeProvider) Dimensions() int { return 2 }
func (p *fakeProvider) Available() bool { return p.available }

func TestIndexPutSearchRemove(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		vectors: map[string][]float32{
			"likes espresso": {1, 0},
			"enjoys tea":     {0, 1},
			"loves coffee":   {0.9, 0.1},
		},
	}
	idx := New(provider)

	idx.IndexOne(context.Background(), 1, "likes espresso")
	idx.IndexOne(context.Background(), 2, "enjoys tea")
	idx.IndexOne(context.Background(), 3, "loves coffee")

	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed vectors, got %d", idx.Len())
	}

	hits := idx.SearchByVector([]float32{1, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != 1 {
		t.Fatalf("expected closest match to be id 1, got %d", hits[0].ID)
	}

	idx.Remove(1)
	if idx.Len() != 2 {
		t.Fatalf("expected 2 indexed vectors after remove, got %d", idx.Len())
	}
}

func TestIndexUnavailableWithNilProvider(t *testing.T) {
	idx := New(nil)
	if idx.Available() {
		t.Fatalf("expected index with nil provider to be unavailable")
	}

	idx.IndexOne(context.Background(), 1, "anything")
	if idx.Len() != 0 {
		t.Fatalf("expected no vectors indexed when provider is unavailable")
	}
}

func TestIndexTopKReturnsNilWhenEmpty(t *testing.T) {
	provider := &fakeProvider{available: true, vectors: map[string][]float32{}}
	idx := New(provider)

	if hits := idx.TopK("anything", 5); hits != nil {
		t.Fatalf("expected nil hits for empty index, got %+v", hits)
	}
}
