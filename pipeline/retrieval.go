package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/relieflaunch/campaignkit/models"
	"github.com/relieflaunch/campaignkit/tools/embedding"
)

// Retriever attaches embeddings to chunks and ranks them against a query by
// cosine similarity.
type Retriever struct {
	Embedder *embedding.Embedding
}

func NewRetriever(embedder *embedding.Embedding) *Retriever {
	return &Retriever{Embedder: embedder}
}

// EmbedChunks computes a vector for every chunk text in one batch. A chunk
// without an embedding cannot be ranked, so either the whole batch succeeds
// or the run reports an error.
func (r *Retriever) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vecs, err := r.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	out := make([]models.Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.Embedding = vecs[i]
		out[i] = chunk
	}
	return out, nil
}

// Retrieve embeds the query once and returns the topK most similar chunks,
// scores descending. The sort is stable: ties preserve original chunk order,
// so retrieval is deterministic for a fixed chunk set. Chunks lacking an
// embedding are excluded, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, chunks []models.Chunk, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 || len(chunks) == 0 {
		return nil, nil
	}

	qvecs, err := r.Embedder.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("embedding returned %d vectors for query", len(qvecs))
	}
	qvec := qvecs[0]

	var scored []models.RetrievedChunk
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			continue
		}
		scored = append(scored, models.RetrievedChunk{
			Chunk: chunk,
			Score: cosineSimilarity(qvec, chunk.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// cosineSimilarity is dot(a,b) / (|a|*|b|). Undefined when either norm is
// zero; those pairs rank lowest with score 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
