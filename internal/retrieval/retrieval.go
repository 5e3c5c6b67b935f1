// Package retrieval answers questions against a session's collection: vector
// search, rerank, then cited synthesis.
package retrieval

import (
	"context"
	"errors"
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
	defaultTopK   = 20
	defaultFinalN = 5

	// contextCharBudget caps the synthesis context so prompts stay inside
	// model limits regardless of chunk sizes.
	contextCharBudget = 7000

	queryEmbedOperation = "ask.embed_query"
	answerOperation     = "ask.answer"

	msgNoCollection = "Please ingest documents before asking questions."
	msgNoHits       = "I couldn't find anything relevant in your documents."
	msgSynthFailed  = "Sorry, an error occurred while generating the final answer."
)

const answerPrompt = `You are an expert research assistant. Answer the user's query based ONLY on the provided context. You MUST cite sources using the format [C#].

User Query: "%s"

Context:
---
%s
---

Synthesized Answer with Citations:`

type Service struct {
	providers *providers.Manager
	store     vectorstore.Store
	log       zerolog.Logger
}

func New(pm *providers.Manager, store vectorstore.Store) *Service {
	return &Service{providers: pm, store: store, log: logging.Component("retrieval")}
}

// Ask runs the full question pipeline. Only a query-embedding failure is a
// request error; a missing collection, empty result set or downstream failure
// degrades to a canned in-band answer so the client always gets a response.
func (s *Service) Ask(ctx context.Context, query, sessionID string, topK, finalN int, history []models.ChatMessage) (models.AskResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	if finalN <= 0 {
		finalN = defaultFinalN
	}

	if exists, err := s.store.CollectionExists(ctx, vectorstore.CollectionName(sessionID)); err == nil && !exists {
		return models.AskResult{Answer: msgNoCollection, SupportingChunks: []models.SupportingChunk{}}, nil
	}

	vectors, err := s.providers.Embed(ctx, queryEmbedOperation, []string{query})
	if err != nil || len(vectors) != 1 {
		if err == nil {
			err = fmt.Errorf("expected 1 query vector, got %d", len(vectors))
		}
		return models.AskResult{}, apperr.Retrieval(sessionID, err)
	}

	hits, err := s.store.Search(ctx, vectorstore.CollectionName(sessionID), vectors[0], topK)
	if err != nil {
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			s.log.Error().Err(err).Str("session", sessionID).Msg("vector search failed")
		}
		return models.AskResult{Answer: msgNoCollection, SupportingChunks: []models.SupportingChunk{}}, nil
	}
	if len(hits) == 0 {
		return models.AskResult{Answer: msgNoHits, SupportingChunks: []models.SupportingChunk{}}, nil
	}

	ranked := s.rerank(ctx, query, hits)
	if len(ranked) > finalN {
		ranked = ranked[:finalN]
	}

	supporting := make([]models.SupportingChunk, len(ranked))
	for i, h := range ranked {
		supporting[i] = models.SupportingChunk{
			Rank:        i + 1,
			RerankScore: h.Score,
			DocID:       h.Payload.DocID,
			Page:        h.Payload.Page,
			Para:        h.Payload.Para,
			Theme:       h.Payload.Theme,
			Text:        h.Payload.Text,
		}
	}

	answer, err := s.synthesize(ctx, query, ranked, history)
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("answer synthesis failed")
		answer = msgSynthFailed
	}
	return models.AskResult{Answer: answer, SupportingChunks: supporting}, nil
}

func (s *Service) synthesize(ctx context.Context, query string, hits []vectorstore.ScoredPoint, history []models.ChatMessage) (string, error) {
	contextBlock := buildContext(hits)
	prompt := fmt.Sprintf(answerPrompt, query, contextBlock)
	if h := renderHistory(history); h != "" {
		prompt = h + "\n" + prompt
	}

	// The prompt already carries the numbered context blocks; passing them
	// again via Context would duplicate them for providers that append it.
	text, err := s.providers.Generate(ctx, providers.GenerateRequest{
		Operation: answerOperation,
		Prompt:    prompt,
	})
	if err != nil {
		return "", apperr.Generation(err)
	}
	return strings.TrimSpace(text), nil
}

// buildContext renders numbered citation blocks and hard-truncates the
// concatenation at the character budget, so an oversized trailing entry is
// cut rather than dropped.
func buildContext(hits []vectorstore.ScoredPoint) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		parts = append(parts, fmt.Sprintf("[C%d] From '%s':\n%s\n", i+1, h.Payload.DocID, h.Payload.Text))
	}
	return util.Truncate(strings.Join(parts, "\n---\n"), contextCharBudget)
}

func renderHistory(history []models.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
