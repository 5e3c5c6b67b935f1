package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"docqa/internal/models"
	"docqa/internal/providers"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

// singleOnlyEmbedder embeds single inputs but fails on batches, which makes
// query embedding succeed while reranking fails.
type singleOnlyEmbedder struct {
	dim int
}

func (e singleOnlyEmbedder) Embed(_ context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	if len(req.Inputs) > 1 {
		return nil, providers.ProviderInfo{}, errors.New("batch too large")
	}
	out := make([][]float32, len(req.Inputs))
	for i := range out {
		out[i] = make([]float32, e.dim)
		out[i][0] = 1
	}
	return out, providers.ProviderInfo{Name: "single"}, nil
}

// constantEmbedder returns the same vector for every input, forcing rerank
// score ties.
type constantEmbedder struct {
	dim int
}

func (e constantEmbedder) Embed(_ context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	out := make([][]float32, len(req.Inputs))
	for i := range out {
		out[i] = make([]float32, e.dim)
		out[i][0] = 1
	}
	return out, providers.ProviderInfo{Name: "constant"}, nil
}

func managerWith(dim int, embed providers.EmbeddingProvider) *providers.Manager {
	return providers.NewManagerFromProviders(dim,
		[]providers.NamedLLM{{Ref: providers.ProviderRef{Raw: "mock", Name: "mock"}, Provider: providers.NewMockProvider(dim)}},
		[]providers.NamedEmbed{{Ref: providers.ProviderRef{Raw: "test", Name: "test"}, Provider: embed}})
}

func seedCollection(t *testing.T, store vectorstore.Store, session string, n int) {
	t.Helper()
	ctx := context.Background()
	name := vectorstore.CollectionName(session)
	require.NoError(t, store.EnsureCollection(ctx, name, 8))
	points := make([]vectorstore.Point, n)
	for i := range points {
		vec := make([]float32, 8)
		vec[i%8] = 1
		points[i] = vectorstore.Point{
			ID:     fmt.Sprintf("p%d", i),
			Vector: vec,
			Payload: vectorstore.Payload{
				DocID: "paper.pdf",
				Para:  i + 1,
				Text:  fmt.Sprintf("Excerpt number %d about distributed consensus.", i),
				Theme: "Theme-1",
			},
		}
	}
	require.NoError(t, store.Upsert(ctx, name, points))
}

func TestAskWithoutIngestedDocuments(t *testing.T) {
	s := New(managerWith(8, providers.NewMockProvider(8)), memory.New())
	res, err := s.Ask(context.Background(), "what is raft?", "empty-session", 0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, "Please ingest documents before asking questions.", res.Answer)
	require.Empty(t, res.SupportingChunks)
}

func TestAskReturnsRankedSubsetOfStoredChunks(t *testing.T) {
	store := memory.New()
	seedCollection(t, store, "sess", 12)
	s := New(managerWith(8, providers.NewMockProvider(8)), store)

	res, err := s.Ask(context.Background(), "tell me about consensus", "sess", 10, 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Answer)
	require.NotEqual(t, "Sorry, an error occurred while generating the final answer.", res.Answer)
	require.LessOrEqual(t, len(res.SupportingChunks), 5)
	require.NotEmpty(t, res.SupportingChunks)
	for i, c := range res.SupportingChunks {
		require.Equal(t, i+1, c.Rank)
		require.Equal(t, "paper.pdf", c.DocID)
		require.True(t, strings.Contains(c.Text, "consensus"))
	}
}

func TestAskRerankFailureFallsBackToVectorOrder(t *testing.T) {
	store := memory.New()
	seedCollection(t, store, "sess", 6)
	s := New(managerWith(8, singleOnlyEmbedder{dim: 8}), store)

	res, err := s.Ask(context.Background(), "consensus", "sess", 6, 3, nil)
	require.NoError(t, err)
	require.Len(t, res.SupportingChunks, 3)
	// Vector-search order is preserved when reranking fails; scores stay the
	// search scores, descending.
	for i := 1; i < len(res.SupportingChunks); i++ {
		require.GreaterOrEqual(t, res.SupportingChunks[i-1].RerankScore, res.SupportingChunks[i].RerankScore)
	}
}

func TestRerankTieStability(t *testing.T) {
	store := memory.New()
	seedCollection(t, store, "sess", 4)
	s := New(managerWith(8, constantEmbedder{dim: 8}), store)

	hits, err := store.Search(context.Background(), vectorstore.CollectionName("sess"), []float32{1, 0, 0, 0, 0, 0, 0, 0}, 4)
	require.NoError(t, err)
	ranked := s.rerank(context.Background(), "q", hits)
	require.Len(t, ranked, 4)
	for i := range hits {
		require.Equal(t, hits[i].ID, ranked[i].ID, "ties must keep the incoming order")
	}
}

func TestAskZeroHits(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.EnsureCollection(context.Background(), vectorstore.CollectionName("sess"), 8))
	s := New(managerWith(8, providers.NewMockProvider(8)), store)

	res, err := s.Ask(context.Background(), "anything", "sess", 0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, "I couldn't find anything relevant in your documents.", res.Answer)
}

func TestBuildContextRespectsBudget(t *testing.T) {
	big := strings.Repeat("x", 3000)
	hits := []vectorstore.ScoredPoint{
		{Point: vectorstore.Point{Payload: vectorstore.Payload{DocID: "a.txt", Text: big}}},
		{Point: vectorstore.Point{Payload: vectorstore.Payload{DocID: "b.txt", Text: big}}},
		{Point: vectorstore.Point{Payload: vectorstore.Payload{DocID: "c.txt", Text: big}}},
	}
	ctxBlock := buildContext(hits)
	require.Equal(t, contextCharBudget, utf8.RuneCountInString(ctxBlock))
	require.Contains(t, ctxBlock, "[C1] From 'a.txt':")
	require.Contains(t, ctxBlock, "[C2] From 'b.txt':")
	// The trailing entry is cut mid-text, not dropped.
	require.Contains(t, ctxBlock, "[C3] From 'c.txt':")
	require.Less(t, strings.Count(ctxBlock, "x"), 9000)

	history := []models.ChatMessage{{Role: "user", Content: "hi"}}
	require.Contains(t, renderHistory(history), "user: hi")
}
