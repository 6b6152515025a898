package pipeline

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/relieflaunch/campaignkit/models"
	"github.com/relieflaunch/campaignkit/tools/embedding"
)

// scriptedVectors maps texts to fixed embeddings so similarity order is
// known in advance. The query embeds to the x axis.
func scriptedVectors(vecs map[string][]float32) func([]string) ([][]float32, error) {
	return func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			vec, ok := vecs[text]
			if !ok {
				return nil, fmt.Errorf("unexpected text %q", text)
			}
			out[i] = vec
		}
		return out, nil
	}
}

func chunksOf(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:        fmt.Sprintf("c_chunk_%d", i),
			Text:      text,
			SourceURL: fmt.Sprintf("https://example.com/%d", i),
		}
	}
	return chunks
}

func TestRetrieveOrdersByScore(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{embedFunc: scriptedVectors(map[string][]float32{
		"query": {1, 0},
		"far":   {0, 1},
		"near":  {1, 0.1},
		"exact": {1, 0},
	})}
	r := NewRetriever(embedding.NewEmbedding(fp))

	chunks, err := r.EmbedChunks(context.Background(), chunksOf("far", "near", "exact"))
	if err != nil {
		t.Fatalf("EmbedChunks() error: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "query", chunks, 10)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Retrieve() returned %d chunks, want 3", len(got))
	}

	wantOrder := []string{"exact", "near", "far"}
	for i, rc := range got {
		if rc.Chunk.Text != wantOrder[i] {
			t.Errorf("position %d: got %q, want %q", i, rc.Chunk.Text, wantOrder[i])
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending: %v then %v", got[i-1].Score, got[i].Score)
		}
	}
	if math.Abs(got[0].Score-1) > 1e-6 {
		t.Errorf("identical vectors scored %v, want 1", got[0].Score)
	}
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	t.Parallel()

	r := NewRetriever(embedding.NewEmbedding(&fakeProvider{}))
	chunks, err := r.EmbedChunks(context.Background(), chunksOf("a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("EmbedChunks() error: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "query", chunks, 2)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Retrieve() returned %d chunks, want 2", len(got))
	}
}

func TestRetrieveTiesKeepChunkOrder(t *testing.T) {
	t.Parallel()

	// Default fake embeds everything identically, so every score ties and
	// the stable sort must preserve input order.
	r := NewRetriever(embedding.NewEmbedding(&fakeProvider{}))
	chunks, err := r.EmbedChunks(context.Background(), chunksOf("first", "second", "third"))
	if err != nil {
		t.Fatalf("EmbedChunks() error: %v", err)
	}

	got, err := r.Retrieve(context.Background(), "query", chunks, 10)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	wantOrder := []string{"first", "second", "third"}
	for i, rc := range got {
		if rc.Chunk.Text != wantOrder[i] {
			t.Errorf("position %d: got %q, want %q", i, rc.Chunk.Text, wantOrder[i])
		}
	}
}

func TestRetrieveSkipsUnembeddedChunks(t *testing.T) {
	t.Parallel()

	r := NewRetriever(embedding.NewEmbedding(&fakeProvider{}))
	chunks := []models.Chunk{
		{ID: "a", Text: "embedded", Embedding: []float32{1, 0, 0}},
		{ID: "b", Text: "missing"},
	}

	got, err := r.Retrieve(context.Background(), "query", chunks, 10)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "a" {
		t.Fatalf("Retrieve() = %+v, want only chunk a", got)
	}
}

func TestEmbedChunksCountMismatch(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{embedFunc: func(texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}
	r := NewRetriever(embedding.NewEmbedding(fp))

	if _, err := r.EmbedChunks(context.Background(), chunksOf("a", "b")); err == nil {
		t.Fatal("EmbedChunks() succeeded on a short vector batch, want error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("cosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
