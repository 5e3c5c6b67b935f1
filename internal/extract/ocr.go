package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// OCREngine recognizes text in images and renders PDF pages to images for the
// scanned-document fallback. Implementations must be safe for concurrent use.
type OCREngine interface {
	ImageToText(ctx context.Context, imagePath string) (string, error)
	RenderPDFPages(ctx context.Context, pdfPath, workDir string) ([]string, error)
}

// TesseractEngine shells out to the tesseract and pdftoppm binaries, the same
// engines the usual Python OCR stack wraps.
type TesseractEngine struct {
	Lang string
	DPI  int
}

func NewTesseractEngine(lang string, dpi int) *TesseractEngine {
	if lang == "" {
		lang = "eng"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &TesseractEngine{Lang: lang, DPI: dpi}
}

// tesseractArgs builds the recognition invocation. psm 1 runs automatic page
// segmentation with orientation and script detection, so EXIF-rotated photos
// and sideways scans are righted before recognition instead of producing
// garbage text.
func tesseractArgs(imagePath, lang string) []string {
	return []string{imagePath, "stdout", "-l", lang, "--oem", "3", "--psm", "1"}
}

func (t *TesseractEngine) ImageToText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", tesseractArgs(imagePath, t.Lang)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", filepath.Base(imagePath), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// RenderPDFPages rasterizes every page into workDir and returns the image
// paths in page order.
func (t *TesseractEngine) RenderPDFPages(ctx context.Context, pdfPath, workDir string) ([]string, error) {
	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", strconv.Itoa(t.DPI), "-png", pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm %s: %w: %s", filepath.Base(pdfPath), err, strings.TrimSpace(stderr.String()))
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("glob rendered pages: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

// pdftoppm zero-pads page numbers based on page count, so a plain string sort
// is wrong for mixed widths.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
