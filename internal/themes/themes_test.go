package themes

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"docqa/internal/providers"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

type brokenLLM struct{}

func (brokenLLM) Generate(context.Context, providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	return providers.GenerateResponse{}, providers.ProviderInfo{}, errors.New("model unavailable")
}

type proseLLM struct{}

func (proseLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	if req.JSONObject {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, errors.New("json mode unsupported")
	}
	text := `Sure! Here is the analysis you asked for:
{"theme_name": "Storage Engines", "theme_summary": "These excerpts discuss how databases persist data."}
Hope that helps.`
	return providers.GenerateResponse{Text: text}, providers.ProviderInfo{Name: "prose"}, nil
}

func managerWithLLM(llm providers.LLMProvider) *providers.Manager {
	return providers.NewManagerFromProviders(8,
		[]providers.NamedLLM{{Ref: providers.ProviderRef{Raw: "test", Name: "test"}, Provider: llm}},
		[]providers.NamedEmbed{{Ref: providers.ProviderRef{Raw: "mock", Name: "mock"}, Provider: providers.NewMockProvider(8)}})
}

func seedThemes(t *testing.T, store vectorstore.Store, session string, perTheme map[string]int) {
	t.Helper()
	ctx := context.Background()
	name := vectorstore.CollectionName(session)
	require.NoError(t, store.EnsureCollection(ctx, name, 8))
	var points []vectorstore.Point
	i := 0
	for _, label := range []string{"Theme-1", "Theme-2", "Theme-3"} {
		for j := 0; j < perTheme[label]; j++ {
			points = append(points, vectorstore.Point{
				ID:     fmt.Sprintf("p%d", i),
				Vector: []float32{1, 0, 0, 0, 0, 0, 0, 0},
				Payload: vectorstore.Payload{
					DocID: "doc.pdf",
					Para:  i + 1,
					Text:  fmt.Sprintf("excerpt %d for %s", j, label),
					Theme: label,
				},
			})
			i++
		}
	}
	require.NoError(t, store.Upsert(ctx, name, points))
}

func TestCountUniqueThemes(t *testing.T) {
	store := memory.New()
	seedThemes(t, store, "sess", map[string]int{"Theme-1": 3, "Theme-2": 1})
	s := New(managerWithLLM(providers.NewMockProvider(8)), store)

	require.Equal(t, 2, s.CountUniqueThemes(context.Background(), "sess"))
	require.Equal(t, 0, s.CountUniqueThemes(context.Background(), "missing"))
}

func TestAnalyzeAllStreamsOnePerLabel(t *testing.T) {
	store := memory.New()
	seedThemes(t, store, "sess", map[string]int{"Theme-1": 2, "Theme-2": 2, "Theme-3": 1})
	s := New(managerWithLLM(providers.NewMockProvider(8)), store)

	var labels []string
	for ev := range s.AnalyzeAll(context.Background(), "sess") {
		require.NoError(t, ev.Err)
		require.NotNil(t, ev.Theme)
		require.Equal(t, "Mock Theme", ev.Theme.Name)
		require.NotEmpty(t, ev.Theme.Summary)
		require.NotEmpty(t, ev.Theme.Citations)
		labels = append(labels, ev.Theme.OriginalLabel)
	}
	require.Equal(t, []string{"Theme-1", "Theme-2", "Theme-3"}, labels)
}

func TestAnalyzeAllKeepsAllCitationsForLargeThemes(t *testing.T) {
	store := memory.New()
	seedThemes(t, store, "sess", map[string]int{"Theme-1": 25, "Theme-2": 2})
	s := New(managerWithLLM(providers.NewMockProvider(8)), store)

	events := collect(t, s.AnalyzeAll(context.Background(), "sess"))
	require.Len(t, events, 2)
	require.NoError(t, events[0].Err)
	require.Equal(t, "Theme-1", events[0].Theme.OriginalLabel)
	// Every chunk in the theme is cited even though only a bounded sample of
	// excerpt text feeds the summary.
	require.Len(t, events[0].Theme.Citations, 25)
	for i, c := range events[0].Theme.Citations {
		require.Equal(t, i+1, c.Para)
	}
	require.Len(t, events[1].Theme.Citations, 2)
}

func TestAnalyzeAllLenientJSONExtraction(t *testing.T) {
	store := memory.New()
	seedThemes(t, store, "sess", map[string]int{"Theme-1": 1})
	s := New(managerWithLLM(proseLLM{}), store)

	events := collect(t, s.AnalyzeAll(context.Background(), "sess"))
	require.Len(t, events, 1)
	require.Equal(t, "Storage Engines", events[0].Theme.Name)
	require.Equal(t, "These excerpts discuss how databases persist data.", events[0].Theme.Summary)
}

func TestAnalyzeAllPlaceholderOnModelFailure(t *testing.T) {
	store := memory.New()
	seedThemes(t, store, "sess", map[string]int{"Theme-1": 1})
	s := New(managerWithLLM(brokenLLM{}), store)

	events := collect(t, s.AnalyzeAll(context.Background(), "sess"))
	require.Len(t, events, 1)
	require.Equal(t, "Analysis Error", events[0].Theme.Name)
	require.Equal(t, "The AI model failed to generate a structured response.", events[0].Theme.Summary)
	require.Equal(t, "Theme-1", events[0].Theme.OriginalLabel)
}

func TestAnalyzeAllMissingCollection(t *testing.T) {
	s := New(managerWithLLM(providers.NewMockProvider(8)), memory.New())
	events := collect(t, s.AnalyzeAll(context.Background(), "missing"))
	require.Len(t, events, 1)
	require.Error(t, events[0].Err)
}

func TestExtractFirstJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{`noise {"a": {"b": 2}} trailing {"c": 3}`, `{"a": {"b": 2}}`},
		{`{"s": "brace } inside"} rest`, `{"s": "brace } inside"}`},
		{`no json here`, ``},
		{`{"unterminated": `, ``},
	}
	for _, c := range cases {
		require.Equal(t, c.want, extractFirstJSON(c.in), "input %q", c.in)
	}
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}
