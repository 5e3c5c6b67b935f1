// Package extract converts uploaded files (PDF, DOCX, TXT, PNG/JPEG) into
// cleaned text documents with page metadata, with an OCR fallback for scanned
// PDFs and images.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"docqa/internal/apperr"
	"docqa/internal/logging"
	"docqa/internal/models"
	"docqa/internal/util"
)

type Service struct {
	ocr          OCREngine
	ocrThreshold int
	log          zerolog.Logger
}

func New(ocr OCREngine, ocrThreshold int) *Service {
	if ocrThreshold <= 0 {
		ocrThreshold = 150
	}
	return &Service{
		ocr:          ocr,
		ocrThreshold: ocrThreshold,
		log:          logging.Component("extract"),
	}
}

// Extract dispatches on the extension of sourceID (the original upload name;
// path may be a temp file). Unsupported extensions yield an empty slice, not
// an error. All parser and I/O failures come back as ExtractionFailed.
func (s *Service) Extract(ctx context.Context, path, sourceID string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(sourceID))
	s.log.Info().Str("file", sourceID).Str("ext", ext).Msg("extracting")

	var (
		docs []models.Document
		err  error
	)
	switch ext {
	case ".pdf":
		docs, err = s.handlePDF(ctx, path, sourceID)
	case ".docx":
		docs, err = s.handleDOCX(path, sourceID)
	case ".txt":
		docs, err = s.handleTXT(path, sourceID)
	case ".png", ".jpg", ".jpeg":
		docs, err = s.handleImage(ctx, path, sourceID)
	default:
		s.log.Warn().Str("file", sourceID).Msg("unsupported file type")
		return []models.Document{}, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("file", sourceID).Msg("extraction failed")
		return nil, apperr.Extraction(sourceID, err)
	}
	return docs, nil
}

func (s *Service) handleDOCX(path, sourceID string) ([]models.Document, error) {
	raw, err := extractDOCX(path)
	if err != nil {
		return nil, err
	}
	text := util.CleanText(raw)
	if text == "" {
		return []models.Document{}, nil
	}
	return []models.Document{{SourceID: sourceID, Text: text}}, nil
}

func (s *Service) handleTXT(path, sourceID string) ([]models.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Decode permissively: invalid sequences are dropped, never fatal.
	text := util.CleanText(strings.ToValidUTF8(string(b), ""))
	if text == "" {
		return []models.Document{}, nil
	}
	return []models.Document{{SourceID: sourceID, Text: text}}, nil
}

func (s *Service) handleImage(ctx context.Context, path, sourceID string) ([]models.Document, error) {
	raw, err := s.ocr.ImageToText(ctx, path)
	if err != nil {
		return nil, err
	}
	text := util.CleanText(raw)
	if text == "" {
		return []models.Document{}, nil
	}
	return []models.Document{{SourceID: sourceID, Text: text}}, nil
}
