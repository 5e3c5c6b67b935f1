package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// extractDOCX pulls paragraph text and table cell text out of the OOXML body:
// body paragraphs first, then table rows with cells tab-joined, all blocks
// separated by blank lines. No page metadata exists for DOCX.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	paras, rows, err := walkDocumentXML(rc)
	if err != nil {
		return "", err
	}
	return strings.Join(append(paras, rows...), "\n\n"), nil
}

func walkDocumentXML(r io.Reader) (paras, rows []string, err error) {
	dec := xml.NewDecoder(r)

	var (
		tableDepth int
		inPara     bool
		inCell     bool
		paraBuf    strings.Builder
		cellBuf    strings.Builder
		rowCells   []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "p":
				if tableDepth == 0 {
					inPara = true
					paraBuf.Reset()
				}
			case "tc":
				if tableDepth > 0 {
					inCell = true
					cellBuf.Reset()
				}
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return nil, nil, fmt.Errorf("parse text run: %w", err)
				}
				switch {
				case inCell:
					cellBuf.WriteString(s)
				case inPara:
					paraBuf.WriteString(s)
				}
			case "tab":
				if inPara && !inCell {
					paraBuf.WriteString("\t")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "p":
				if tableDepth == 0 && inPara {
					inPara = false
					if s := strings.TrimSpace(paraBuf.String()); s != "" {
						paras = append(paras, s)
					}
				}
			case "tc":
				if inCell {
					inCell = false
					rowCells = append(rowCells, strings.TrimSpace(cellBuf.String()))
				}
			case "tr":
				if tableDepth > 0 {
					rows = append(rows, strings.Join(rowCells, "\t"))
					rowCells = nil
				}
			}
		}
	}
	return paras, rows, nil
}
