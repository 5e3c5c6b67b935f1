package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docqa/internal/providers"
	"docqa/internal/vectorstore"
)

const rerankOperation = "ask.rerank"

// rerank re-scores hits by embedding similarity to the query and stable-sorts
// them descending, so ties keep the vector-search order. Any failure falls
// back to the original order and scores.
func (s *Service) rerank(ctx context.Context, query string, hits []vectorstore.ScoredPoint) []vectorstore.ScoredPoint {
	embedder := s.providers.RerankEmbedder()
	if embedder == nil || len(hits) == 0 {
		return hits
	}

	inputs := make([]string, 0, len(hits)+1)
	inputs = append(inputs, query)
	for _, h := range hits {
		inputs = append(inputs, h.Payload.Text)
	}
	vectors, _, err := embedder.Embed(ctx, providers.EmbedRequest{Operation: rerankOperation, Inputs: inputs})
	if err != nil || len(vectors) != len(inputs) {
		if err == nil {
			err = fmt.Errorf("expected %d vectors, got %d", len(inputs), len(vectors))
		}
		s.log.Warn().Err(err).Msg("rerank embedding failed, keeping vector-search order")
		return hits
	}

	queryVec := vectors[0]
	ranked := make([]vectorstore.ScoredPoint, len(hits))
	copy(ranked, hits)
	for i := range ranked {
		ranked[i].Score = cosine(queryVec, vectors[i+1])
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
