// Package chunker splits extracted documents into overlapping retrieval
// chunks, preferring natural boundaries over hard character cuts.
package chunker

import (
	"strings"
	"unicode/utf8"

	"docqa/internal/models"
)

const (
	minChunkSize  = 50
	maxChunkSize  = 2000
	minChunkChars = 50
)

// separators are tried in order: paragraph break, line break, sentence end,
// word boundary, then raw character windows as the last resort.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Clamp forces size into [50, 2000] and overlap into [0, size/2].
func Clamp(size, overlap int) (int, int) {
	if size < minChunkSize {
		size = minChunkSize
	}
	if size > maxChunkSize {
		size = maxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}
	return size, overlap
}

// Chunk splits each document into chunks of at most size characters with the
// given overlap. Para indexes are 1-based and per-document; fragments shorter
// than 50 characters after trimming are dropped.
func Chunk(docs []models.Document, size, overlap int) ([]models.Chunk, error) {
	size, overlap = Clamp(size, overlap)

	out := make([]models.Chunk, 0, len(docs))
	for _, doc := range docs {
		parts := splitRecursive(doc.Text, separators, size, overlap)
		for i, part := range parts {
			text := strings.TrimSpace(part)
			if utf8.RuneCountInString(text) < minChunkChars {
				continue
			}
			out = append(out, models.Chunk{
				DocID: doc.SourceID,
				Page:  doc.Page,
				Para:  i + 1,
				Text:  text,
			})
		}
	}
	if out == nil {
		return []models.Chunk{}, nil
	}
	return out, nil
}

func splitRecursive(text string, seps []string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			sep, rest = "", nil
			break
		}
		if strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = windowRunes(text, size)
	} else {
		splits = strings.Split(text, sep)
	}

	var final []string
	var good []string
	for _, s := range splits {
		if utf8.RuneCountInString(s) < size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, mergeSplits(good, sep, size, overlap)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, s)
		} else {
			final = append(final, splitRecursive(s, rest, size, overlap)...)
		}
	}
	if len(good) > 0 {
		final = append(final, mergeSplits(good, sep, size, overlap)...)
	}
	return final
}

// mergeSplits packs adjacent splits back together (re-joined with sep) into
// chunks of at most size characters, carrying overlap characters of trailing
// splits into the next chunk.
func mergeSplits(splits []string, sep string, size, overlap int) []string {
	sepLen := utf8.RuneCountInString(sep)

	var out []string
	var current []string
	total := 0
	for _, s := range splits {
		l := utf8.RuneCountInString(s)
		if len(current) > 0 && total+l+sepLen > size {
			joined := strings.TrimSpace(strings.Join(current, sep))
			if joined != "" {
				out = append(out, joined)
			}
			// Shed leading splits until the carried tail fits the overlap
			// budget and leaves room for the incoming split.
			for len(current) > 0 && (total > overlap || (total+l+sepLen > size && total > 0)) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, s)
		total += l
	}
	if len(current) > 0 {
		joined := strings.TrimSpace(strings.Join(current, sep))
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}

func windowRunes(text string, size int) []string {
	r := []rune(text)
	if size <= 0 {
		return []string{text}
	}
	out := make([]string, 0, len(r)/size+1)
	for i := 0; i < len(r); i += size {
		end := i + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[i:end]))
	}
	return out
}
