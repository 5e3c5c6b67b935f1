// Package vectorstore defines the session-scoped vector collection contract
// shared by the Postgres/pgvector backend and the in-memory backend.
package vectorstore

import (
	"context"
	"errors"
)

// ErrCollectionNotFound marks reads against a session that never ingested
// anything. Callers treat it as "no knowledge base yet", not a fatal error.
var ErrCollectionNotFound = errors.New("collection not found")

// Payload is the metadata stored alongside each vector.
type Payload struct {
	DocID string `json:"doc_id"`
	Page  *int   `json:"page"`
	Para  int    `json:"para"`
	Text  string `json:"text"`
	Theme string `json:"theme"`
}

type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

type ScoredPoint struct {
	Point
	Score float64
}

// ScrollOptions filters a metadata scan. Limit is a hard cap the caller must
// supply; Theme, when set, restricts to points carrying that label.
type ScrollOptions struct {
	Theme string
	Limit int
}

type Store interface {
	// EnsureCollection creates the collection if absent; idempotent and safe
	// under concurrent creation races. Dimension is fixed at first creation.
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, name string, points []Point) error
	// Search returns up to limit nearest points by cosine similarity,
	// descending score.
	Search(ctx context.Context, name string, vector []float32, limit int) ([]ScoredPoint, error)
	// Scroll returns stored points (no vectors) in insertion order.
	Scroll(ctx context.Context, name string, opts ScrollOptions) ([]Point, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	// DeleteCollection removes the collection; deleting a missing collection
	// is a no-op, not an error.
	DeleteCollection(ctx context.Context, name string) error
}

// CollectionName derives the per-session collection name.
func CollectionName(sessionID string) string {
	return "session_" + sessionID
}
