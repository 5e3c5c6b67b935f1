package extract

import (
	"testing"
)

func TestTesseractArgsEnableOrientationDetection(t *testing.T) {
	args := tesseractArgs("/tmp/scan.jpg", "deu")

	psm := ""
	for i, a := range args {
		if a == "--psm" && i+1 < len(args) {
			psm = args[i+1]
		}
	}
	// psm 1 is the only mode here that performs orientation and script
	// detection; rotated camera shots depend on it.
	if psm != "1" {
		t.Fatalf("expected --psm 1, got %q in %v", psm, args)
	}

	if args[0] != "/tmp/scan.jpg" || args[1] != "stdout" {
		t.Fatalf("unexpected input/output args: %v", args)
	}
	lang := ""
	for i, a := range args {
		if a == "-l" && i+1 < len(args) {
			lang = args[i+1]
		}
	}
	if lang != "deu" {
		t.Fatalf("language not propagated: %v", args)
	}
}

func TestPageNumberSortsMixedWidths(t *testing.T) {
	// pdftoppm pads page numbers to the widest page, so renders restarted
	// with different counts can mix widths in one directory.
	paths := []string{"/tmp/page-10.png", "/tmp/page-2.png", "/tmp/page-1.png"}
	if pageNumber(paths[0]) != 10 || pageNumber(paths[1]) != 2 || pageNumber(paths[2]) != 1 {
		t.Fatalf("unexpected page numbers: %d %d %d",
			pageNumber(paths[0]), pageNumber(paths[1]), pageNumber(paths[2]))
	}
	if pageNumber("/tmp/nosuffix.png") != 0 {
		t.Fatalf("missing suffix should parse as 0")
	}
}
