// Package ingest drives the upload pipeline: save, extract, chunk, embed,
// cluster into themes and upsert into the session collection.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docqa/internal/apperr"
	"docqa/internal/chunker"
	"docqa/internal/cluster"
	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/logging"
	"docqa/internal/models"
	"docqa/internal/providers"
	"docqa/internal/vectorstore"
)

const embedOperation = "ingest.embed_chunks"

// Upload is one file from a batch request. Filename is the client's original
// name and becomes the doc_id on every chunk extracted from it.
type Upload struct {
	Filename string
	Content  io.Reader
}

type Service struct {
	extractor *extract.Service
	providers *providers.Manager
	store     vectorstore.Store
	cfg       config.Config
	log       zerolog.Logger
}

func New(extractor *extract.Service, pm *providers.Manager, store vectorstore.Store, cfg config.Config) *Service {
	return &Service{
		extractor: extractor,
		providers: pm,
		store:     store,
		cfg:       cfg,
		log:       logging.Component("ingest"),
	}
}

// IngestBatch processes a batch of uploads for one session. File-level
// failures are isolated: a file that cannot be extracted or chunked reports
// zero chunks while the rest of the batch proceeds. An upsert failure is
// logged and reflected in TotalChunksUpserted, never as a request error.
func (s *Service) IngestBatch(ctx context.Context, sessionID string, uploads []Upload, chunkSize, overlap int) models.BatchIngestResult {
	chunkSize, overlap = chunker.Clamp(chunkSize, overlap)

	result := models.BatchIngestResult{Results: []models.IngestFileResult{}}
	var all []models.Chunk
	for _, up := range uploads {
		chunks, err := s.ingestFile(ctx, up, chunkSize, overlap)
		if err != nil {
			s.log.Error().Err(err).Str("session", sessionID).Str("file", up.Filename).Msg("file ingestion failed")
			result.Results = append(result.Results, models.IngestFileResult{Filename: up.Filename, ChunksExtracted: 0})
			continue
		}
		result.Results = append(result.Results, models.IngestFileResult{Filename: up.Filename, ChunksExtracted: len(chunks)})
		result.TotalChunksExtracted += len(chunks)
		all = append(all, chunks...)
	}

	if len(all) == 0 {
		return result
	}
	upserted, err := s.upsertChunks(ctx, sessionID, all)
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Int("chunks", len(all)).Msg("chunk upsert failed")
		return result
	}
	result.TotalChunksUpserted = upserted
	return result
}

// ingestFile spools the upload to a temp file (extension preserved so the
// extractor can dispatch on it) and runs extraction and chunking.
func (s *Service) ingestFile(ctx context.Context, up Upload, chunkSize, overlap int) ([]models.Chunk, error) {
	ext := filepath.Ext(up.Filename)
	tmp, err := os.CreateTemp("", "docqa-upload-*"+ext)
	if err != nil {
		return nil, apperr.Extraction(up.Filename, fmt.Errorf("create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, up.Content); err != nil {
		tmp.Close()
		return nil, apperr.Extraction(up.Filename, fmt.Errorf("save upload: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return nil, apperr.Extraction(up.Filename, fmt.Errorf("save upload: %w", err))
	}

	docs, err := s.extractor.Extract(ctx, tmp.Name(), up.Filename)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.Chunk(docs, chunkSize, overlap)
	if err != nil {
		return nil, apperr.Chunking(err)
	}
	return chunks, nil
}

func (s *Service) upsertChunks(ctx context.Context, sessionID string, chunks []models.Chunk) (int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.providers.Embed(ctx, embedOperation, texts)
	if err != nil {
		return 0, apperr.Embedding(err)
	}

	dim := s.cfg.EmbedDim
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		dim = len(vectors[0])
	}
	name := vectorstore.CollectionName(sessionID)
	if err := s.store.EnsureCollection(ctx, name, dim); err != nil {
		return 0, apperr.Upsert(sessionID, err)
	}

	themes := cluster.AssignThemes(vectors, s.cfg.ThemeClusters)
	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		theme := ""
		if i < len(themes) {
			theme = themes[i]
		}
		points[i] = vectorstore.Point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				DocID: c.DocID,
				Page:  c.Page,
				Para:  c.Para,
				Text:  c.Text,
				Theme: theme,
			},
		}
	}
	if err := s.store.Upsert(ctx, name, points); err != nil {
		return 0, apperr.Upsert(sessionID, err)
	}
	s.log.Info().Str("session", sessionID).Int("chunks", len(points)).Int("dim", dim).Msg("chunks upserted")
	return len(points), nil
}
