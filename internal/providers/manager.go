package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"docqa/internal/apperr"
	"docqa/internal/config"
	"docqa/internal/logging"
)

type NamedLLM struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbed struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager owns the configured provider lists and fans calls over them in
// preferred order (real providers before mock).
type Manager struct {
	llms   []NamedLLM
	embeds []NamedEmbed
	dim    int
	log    zerolog.Logger
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{dim: cfg.EmbedDim, log: logging.Component("providers")}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, apperr.Config(fmt.Errorf("provider %s does not support generation", ref.Raw))
		}
		m.llms = append(m.llms, NamedLLM{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, apperr.Config(fmt.Errorf("provider %s does not support embeddings", ref.Raw))
		}
		m.embeds = append(m.embeds, NamedEmbed{Ref: ref, Provider: embed})
	}
	if len(m.llms) == 0 {
		m.llms = []NamedLLM{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(cfg.EmbedDim)}}
	}
	if len(m.embeds) == 0 {
		m.embeds = []NamedEmbed{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(cfg.EmbedDim)}}
	}
	return m, nil
}

// NewManagerFromProviders wires explicit providers; used by tests.
func NewManagerFromProviders(dim int, llms []NamedLLM, embeds []NamedEmbed) *Manager {
	return &Manager{llms: llms, embeds: embeds, dim: dim, log: logging.Component("providers")}
}

// Embed returns one vector per input, trying providers in preferred order.
// Empty input short-circuits to an empty result without any provider call.
func (m *Manager) Embed(ctx context.Context, operation string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	var lastErr error
	for _, idx := range preferredOrder(len(m.embeds), func(i int) string { return m.embeds[i].Ref.Name }) {
		p := m.embeds[idx]
		vectors, _, err := p.Provider.Embed(ctx, EmbedRequest{Operation: operation, Inputs: inputs, Dimension: m.dim})
		if err == nil && len(vectors) == len(inputs) {
			return vectors, nil
		}
		if err == nil {
			err = fmt.Errorf("provider %s returned %d vectors for %d inputs", p.Ref.Raw, len(vectors), len(inputs))
		}
		m.log.Warn().Err(err).Str("provider", p.Ref.Raw).Str("class", string(ClassifyError(err))).Msg("embedding provider failed")
		lastErr = err
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// Generate returns the first non-empty completion in preferred order.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var lastErr error
	for _, idx := range preferredOrder(len(m.llms), func(i int) string { return m.llms[i].Ref.Name }) {
		p := m.llms[idx]
		resp, _, err := p.Provider.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return resp.Text, nil
		}
		if err == nil {
			err = fmt.Errorf("provider %s returned empty completion", p.Ref.Raw)
		}
		m.log.Warn().Err(err).Str("provider", p.Ref.Raw).Str("class", string(ClassifyError(err))).Msg("llm provider failed")
		lastErr = err
	}
	return "", fmt.Errorf("all llm providers failed: %w", lastErr)
}

// RerankEmbedder exposes the shared relevance-scoring embedder handle. Nil
// when nothing is configured; callers must fall back rather than fail.
func (m *Manager) RerankEmbedder() EmbeddingProvider {
	if len(m.embeds) == 0 {
		return nil
	}
	order := preferredOrder(len(m.embeds), func(i int) string { return m.embeds[i].Ref.Name })
	return m.embeds[order[0]].Provider
}

func (m *Manager) EmbedRefs() []string {
	out := make([]string, 0, len(m.embeds))
	for _, p := range m.embeds {
		out = append(out, p.Ref.Raw)
	}
	return out
}

func (m *Manager) LLMRefs() []string {
	out := make([]string, 0, len(m.llms))
	for _, p := range m.llms {
		out = append(out, p.Ref.Raw)
	}
	return out
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if strings.ToLower(nameAt(i)) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if strings.ToLower(nameAt(i)) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, apperr.Config(fmt.Errorf("unsupported provider: %s", ref.Name))
	}
}
