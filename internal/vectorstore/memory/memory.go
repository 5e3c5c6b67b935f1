// Package memory is a brute-force cosine vector store keeping whole sessions
// in process memory. It backs tests and keyless local runs.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"docqa/internal/vectorstore"
)

type collection struct {
	dim    int
	points []vectorstore.Point
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) EnsureCollection(_ context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &collection{dim: dim}
	return nil
}

func (s *Store) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	for _, p := range points {
		replaced := false
		for i := range c.points {
			if c.points[i].ID == p.ID {
				c.points[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			c.points = append(c.points, p)
		}
	}
	return nil
}

func (s *Store) Search(_ context.Context, name string, vector []float32, limit int) ([]vectorstore.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	if limit <= 0 {
		limit = 10
	}
	scored := make([]vectorstore.ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		scored = append(scored, vectorstore.ScoredPoint{Point: p, Score: cosine(vector, p.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > len(scored) {
		limit = len(scored)
	}
	return scored[:limit], nil
}

func (s *Store) Scroll(_ context.Context, name string, opts vectorstore.ScrollOptions) ([]vectorstore.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = len(c.points)
	}
	out := make([]vectorstore.Point, 0, limit)
	for _, p := range c.points {
		if opts.Theme != "" && p.Payload.Theme != opts.Theme {
			continue
		}
		out = append(out, vectorstore.Point{ID: p.ID, Payload: p.Payload})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
