package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/providers"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

type noOCR struct{}

func (noOCR) ImageToText(context.Context, string) (string, error) {
	return "", errors.New("ocr not available in tests")
}

func (noOCR) RenderPDFPages(context.Context, string, string) ([]string, error) {
	return nil, errors.New("ocr not available in tests")
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func newTestService(store vectorstore.Store) *Service {
	cfg := config.Config{EmbedDim: 16, ThemeClusters: 5, ChunkSize: 1024, ChunkOverlap: 200}
	pm := providers.NewManagerFromProviders(16,
		[]providers.NamedLLM{{Ref: providers.ProviderRef{Raw: "mock", Name: "mock"}, Provider: providers.NewMockProvider(16)}},
		[]providers.NamedEmbed{{Ref: providers.ProviderRef{Raw: "mock", Name: "mock"}, Provider: providers.NewMockProvider(16)}})
	return New(extract.New(noOCR{}, 150), pm, store, cfg)
}

func TestIngestBatchEndToEnd(t *testing.T) {
	store := memory.New()
	s := newTestService(store)

	body := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	uploads := []Upload{
		{Filename: "notes.txt", Content: strings.NewReader(body)},
		{Filename: "report.txt", Content: strings.NewReader(body + "\n\n" + body)},
	}
	res := s.IngestBatch(context.Background(), "sess1", uploads, 200, 20)

	require.Len(t, res.Results, 2)
	require.Equal(t, "notes.txt", res.Results[0].Filename)
	require.Greater(t, res.Results[0].ChunksExtracted, 0)
	require.Equal(t, res.TotalChunksExtracted, res.Results[0].ChunksExtracted+res.Results[1].ChunksExtracted)
	require.Equal(t, res.TotalChunksExtracted, res.TotalChunksUpserted)

	pts, err := store.Scroll(context.Background(), vectorstore.CollectionName("sess1"), vectorstore.ScrollOptions{Limit: 10000})
	require.NoError(t, err)
	require.Len(t, pts, res.TotalChunksUpserted)
	docIDs := map[string]bool{}
	for _, p := range pts {
		require.NotEmpty(t, p.Payload.Theme)
		require.NotEmpty(t, p.Payload.Text)
		docIDs[p.Payload.DocID] = true
	}
	require.True(t, docIDs["notes.txt"])
	require.True(t, docIDs["report.txt"])
}

func TestIngestBatchIsolatesFileFailures(t *testing.T) {
	store := memory.New()
	s := newTestService(store)

	body := strings.Repeat("Relevant sentences about storage engines and indexes. ", 8)
	uploads := []Upload{
		{Filename: "broken.txt", Content: errReader{}},
		{Filename: "good.txt", Content: strings.NewReader(body)},
	}
	res := s.IngestBatch(context.Background(), "sess2", uploads, 0, 0)

	require.Len(t, res.Results, 2)
	require.Equal(t, 0, res.Results[0].ChunksExtracted)
	require.Greater(t, res.Results[1].ChunksExtracted, 0)
	require.Equal(t, res.Results[1].ChunksExtracted, res.TotalChunksUpserted)
}

func TestIngestBatchUnsupportedExtensionYieldsZeroChunks(t *testing.T) {
	store := memory.New()
	s := newTestService(store)

	res := s.IngestBatch(context.Background(), "sess3", []Upload{
		{Filename: "archive.zip", Content: strings.NewReader("not really a zip")},
	}, 0, 0)

	require.Len(t, res.Results, 1)
	require.Equal(t, 0, res.Results[0].ChunksExtracted)
	require.Equal(t, 0, res.TotalChunksUpserted)

	_, err := store.Search(context.Background(), vectorstore.CollectionName("sess3"), []float32{1}, 1)
	require.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}
