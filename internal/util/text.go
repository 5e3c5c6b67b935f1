package util

import "strings"

// CleanText normalizes extracted text while preserving single newlines, which
// keeps paragraph boundaries available to the chunker. Intra-line whitespace
// collapses to single spaces, empty lines are dropped, and NUL plus the UTF-8
// replacement character are stripped (Postgres text columns reject NUL).
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	s = strings.Join(kept, "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "�", "")
	return strings.TrimSpace(s)
}

// Truncate bounds s to at most max characters (runes, not bytes).
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
