package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"docqa/internal/apperr"
)

type fakeOCR struct {
	pages     []string
	imageText string
	calls     int
	renderErr error
}

func (f *fakeOCR) ImageToText(_ context.Context, imagePath string) (string, error) {
	f.calls++
	if f.imageText != "" {
		return f.imageText, nil
	}
	// One canned text per rendered page, selected by the page suffix.
	for i := range f.pages {
		if strings.Contains(imagePath, "page-"+itoa(i+1)) {
			return f.pages[i], nil
		}
	}
	return "", nil
}

func (f *fakeOCR) RenderPDFPages(_ context.Context, _, workDir string) ([]string, error) {
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	out := make([]string, len(f.pages))
	for i := range f.pages {
		out[i] = filepath.Join(workDir, "page-"+itoa(i+1)+".png")
	}
	return out, nil
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestExtractTXT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello   world\r\n\r\nsecond  line\xff"), 0o644))

	s := New(&fakeOCR{}, 150)
	docs, err := s.Extract(context.Background(), path, "notes.txt")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "notes.txt", docs[0].SourceID)
	require.Nil(t, docs[0].Page)
	require.Equal(t, "hello world\nsecond line", docs[0].Text)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	s := New(&fakeOCR{}, 150)
	docs, err := s.Extract(context.Background(), "/nonexistent/x.zip", "x.zip")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestExtractMissingTXTWrapsError(t *testing.T) {
	s := New(&fakeOCR{}, 150)
	_, err := s.Extract(context.Background(), "/nonexistent/a.txt", "a.txt")
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, apperr.KindExtraction, ae.Kind)
	require.Equal(t, "a.txt", ae.Filename)
}

func TestExtractDOCXParagraphsAndTables(t *testing.T) {
	const documentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>cell a</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>cell b</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	s := New(&fakeOCR{}, 150)
	docs, err := s.Extract(context.Background(), path, "doc.docx")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Nil(t, docs[0].Page)
	require.Equal(t, "First paragraph.\nSecond paragraph.\ncell a cell b", docs[0].Text)
}

func TestExtractImageOCR(t *testing.T) {
	ocr := &fakeOCR{imageText: "scanned   words\n\n"}
	s := New(ocr, 150)
	docs, err := s.Extract(context.Background(), "/tmp/pic.png", "pic.png")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "scanned words", docs[0].Text)
	require.Equal(t, 1, ocr.calls)
}

func TestExtractPDFNativeText(t *testing.T) {
	orig := readPDFPages
	defer func() { readPDFPages = orig }()
	readPDFPages = func(string) ([]string, error) {
		return []string{
			strings.Repeat("page one text. ", 10),
			strings.Repeat("page two text. ", 10),
			strings.Repeat("page three text. ", 10),
		}, nil
	}

	ocr := &fakeOCR{}
	s := New(ocr, 150)
	docs, err := s.Extract(context.Background(), "/tmp/real.pdf", "real.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		require.NotNil(t, d.Page)
		require.Equal(t, i+1, *d.Page)
	}
	require.Zero(t, ocr.calls, "OCR must not run for text PDFs")
}

func TestExtractPDFScannedFallsBackToOCR(t *testing.T) {
	orig := readPDFPages
	defer func() { readPDFPages = orig }()
	readPDFPages = func(string) ([]string, error) {
		return []string{"", ""}, nil
	}

	ocr := &fakeOCR{pages: []string{"ocr page one", "ocr page two"}}
	s := New(ocr, 150)
	docs, err := s.Extract(context.Background(), "/tmp/scan.pdf", "scan.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, 2, ocr.calls, "expected one OCR call per rendered page")
	require.Equal(t, "ocr page one", docs[0].Text)
	require.Equal(t, 1, *docs[0].Page)
	require.Equal(t, 2, *docs[1].Page)
}
