// Package themes turns the cluster labels stored at ingest time into named,
// summarized themes, streamed one result at a time.
package themes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"docqa/internal/apperr"
	"docqa/internal/logging"
	"docqa/internal/models"
	"docqa/internal/providers"
	"docqa/internal/util"
	"docqa/internal/vectorstore"
)

const (
	// scrollCap bounds the label scan over a session collection.
	scrollCap = 10000
	// themeContextLimit caps how many excerpts feed one theme summary.
	themeContextLimit = 20
	// excerptCharBudget caps the joined excerpt text handed to the model.
	excerptCharBudget = 7000

	themeOperation = "themes.analyze"

	fallbackName    = "Analysis Error"
	fallbackSummary = "The AI model failed to generate a structured response."
)

const themePrompt = `You are an expert research assistant. The following document excerpts were grouped together because they are semantically similar. Identify the common theme.

Respond with a JSON object containing exactly two keys: "theme_name" (a short descriptive title) and "theme_summary" (2-3 sentences summarizing the theme).

Excerpts:
---
%s
---`

type Service struct {
	providers *providers.Manager
	store     vectorstore.Store
	log       zerolog.Logger
}

func New(pm *providers.Manager, store vectorstore.Store) *Service {
	return &Service{providers: pm, store: store, log: logging.Component("themes")}
}

// CountUniqueThemes returns the number of distinct non-empty theme labels in
// the session's collection. Any failure, including a missing collection,
// counts as zero.
func (s *Service) CountUniqueThemes(ctx context.Context, sessionID string) int {
	points, err := s.store.Scroll(ctx, vectorstore.CollectionName(sessionID), vectorstore.ScrollOptions{Limit: scrollCap})
	if err != nil {
		return 0
	}
	seen := map[string]bool{}
	for _, p := range points {
		if p.Payload.Theme != "" {
			seen[p.Payload.Theme] = true
		}
	}
	return len(seen)
}

// Event is one item on the analysis stream: a completed theme or a stream-
// level error. Err is only set on the terminal failure event.
type Event struct {
	Theme *models.ThemeResult
	Err   error
}

// AnalyzeAll streams one ThemeResult per stored label, in first-seen label
// order. The channel is closed when analysis completes or ctx is cancelled.
func (s *Service) AnalyzeAll(ctx context.Context, sessionID string) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		name := vectorstore.CollectionName(sessionID)
		points, err := s.store.Scroll(ctx, name, vectorstore.ScrollOptions{Limit: scrollCap})
		if err != nil {
			s.send(ctx, out, Event{Err: apperr.Theme(sessionID, err)})
			return
		}

		// Citations come from the full scan; the bounded per-label fetch
		// below only limits the excerpt text fed to the model.
		var labels []string
		seen := map[string]bool{}
		citationsByLabel := map[string][]models.Citation{}
		for _, p := range points {
			label := p.Payload.Theme
			if label == "" {
				continue
			}
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
			citationsByLabel[label] = append(citationsByLabel[label],
				models.Citation{DocID: p.Payload.DocID, Page: p.Payload.Page, Para: p.Payload.Para})
		}

		for _, label := range labels {
			group, err := s.store.Scroll(ctx, name, vectorstore.ScrollOptions{Theme: label, Limit: themeContextLimit})
			if err != nil {
				s.send(ctx, out, Event{Err: apperr.Theme(sessionID, err)})
				return
			}
			texts := make([]string, 0, len(group))
			for _, p := range group {
				if p.Payload.Text != "" {
					texts = append(texts, p.Payload.Text)
				}
			}
			if len(texts) == 0 {
				continue
			}
			result := s.analyzeTheme(ctx, label, texts, citationsByLabel[label])
			if !s.send(ctx, out, Event{Theme: &result}) {
				return
			}
		}
	}()
	return out
}

// analyzeTheme names and summarizes one label group. It never fails: a model
// that cannot produce parseable JSON after a lenient retry yields a
// placeholder result so the stream keeps its shape.
func (s *Service) analyzeTheme(ctx context.Context, label string, texts []string, citations []models.Citation) models.ThemeResult {
	prompt := fmt.Sprintf(themePrompt, util.Truncate(strings.Join(texts, "\n---\n"), excerptCharBudget))

	result := models.ThemeResult{
		Name:          fallbackName,
		Summary:       fallbackSummary,
		Citations:     citations,
		OriginalLabel: label,
	}

	text, err := s.providers.Generate(ctx, providers.GenerateRequest{
		Operation:  themeOperation,
		Prompt:     prompt,
		JSONObject: true,
	})
	if err == nil {
		if name, summary, ok := decodeTheme(text); ok {
			result.Name, result.Summary = name, summary
			return result
		}
	}
	// Retry without JSON mode and salvage the first JSON object from the
	// free-text reply.
	text, err = s.providers.Generate(ctx, providers.GenerateRequest{
		Operation: themeOperation,
		Prompt:    prompt,
	})
	if err == nil {
		if obj := extractFirstJSON(text); obj != "" {
			if name, summary, ok := decodeTheme(obj); ok {
				result.Name, result.Summary = name, summary
				return result
			}
		}
	}
	s.log.Warn().Str("label", label).Msg("theme analysis fell back to placeholder")
	return result
}

func decodeTheme(text string) (name, summary string, ok bool) {
	var parsed struct {
		ThemeName    string `json:"theme_name"`
		ThemeSummary string `json:"theme_summary"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return "", "", false
	}
	if strings.TrimSpace(parsed.ThemeName) == "" || strings.TrimSpace(parsed.ThemeSummary) == "" {
		return "", "", false
	}
	return parsed.ThemeName, parsed.ThemeSummary, true
}

// extractFirstJSON returns the first balanced top-level JSON object in text,
// or "" when none exists. Braces inside strings are skipped.
func extractFirstJSON(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func (s *Service) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
