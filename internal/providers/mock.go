package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider is a deterministic offline provider used as the default when
// no real provider is configured, and by the test suite.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if req.JSONObject {
		return GenerateResponse{Text: `{"theme_name": "Mock Theme", "theme_summary": "Deterministic summary of the grouped excerpts."}`}, info, nil
	}
	op := strings.ToLower(req.Operation)
	if strings.Contains(op, "answer") || strings.Contains(op, "ask") {
		b := strings.Builder{}
		b.WriteString("Deterministic answer grounded in the retrieved context")
		for i := range req.Context {
			fmt.Fprintf(&b, " [C%d]", i+1)
		}
		if len(req.Context) == 0 && strings.Contains(req.Prompt, "[C") {
			b.WriteString(" [C1]")
		}
		b.WriteString(".")
		return GenerateResponse{Text: b.String()}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
