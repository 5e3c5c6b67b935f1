package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"docqa/internal/models"
	"docqa/internal/util"
)

// readPDFPages extracts the embedded text of every page, 1-based order.
// Overridable in tests; crafting real PDF fixtures is not worth the bytes.
var readPDFPages = func(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// handlePDF returns one Document per page. When the embedded text across all
// pages is below the OCR threshold the file is treated as scanned: each page
// is rendered to an image and recognized instead.
func (s *Service) handlePDF(ctx context.Context, path, sourceID string) ([]models.Document, error) {
	pages, err := readPDFPages(path)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, p := range pages {
		total += len(p)
	}
	if total < s.ocrThreshold {
		s.log.Info().Str("file", sourceID).Int("chars", total).Msg("pdf below ocr threshold, running ocr")
		return s.ocrPDF(ctx, path, sourceID)
	}

	docs := make([]models.Document, 0, len(pages))
	for i, p := range pages {
		text := util.CleanText(p)
		if text == "" {
			continue
		}
		page := i + 1
		docs = append(docs, models.Document{SourceID: sourceID, Page: &page, Text: text})
	}
	return docs, nil
}

func (s *Service) ocrPDF(ctx context.Context, path, sourceID string) ([]models.Document, error) {
	workDir, err := os.MkdirTemp("", "docqa-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create ocr workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	images, err := s.ocr.RenderPDFPages(ctx, path, workDir)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, 0, len(images))
	for i, img := range images {
		raw, err := s.ocr.ImageToText(ctx, img)
		if err != nil {
			return nil, err
		}
		text := util.CleanText(raw)
		if text == "" {
			continue
		}
		page := i + 1
		docs = append(docs, models.Document{SourceID: sourceID, Page: &page, Text: text})
	}
	return docs, nil
}
