// Package postgres stores session collections as per-session tables with a
// pgvector embedding column.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/rs/zerolog"

	"docqa/internal/logging"
	"docqa/internal/vectorstore"
)

const (
	codeUndefinedTable = "42P01"
	codeDuplicateTable = "42P07"
)

type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New connects to Postgres, enables the vector extension and registers the
// pgvector codecs on every pooled connection.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("enable vector extension: %w", err)
	}
	return &Store{pool: pool, log: logging.Component("vectorstore.postgres")}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) EnsureCollection(ctx context.Context, name string, dim int) error {
	table := pgx.Identifier{name}.Sanitize()
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id uuid PRIMARY KEY,
		seq bigserial,
		doc_id text NOT NULL,
		page integer,
		para integer NOT NULL,
		text text NOT NULL,
		theme text NOT NULL DEFAULT '',
		embedding vector(%d)
	)`, table, dim)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		// Concurrent creation can still surface duplicate_table despite
		// IF NOT EXISTS; both racers end up with the table.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateTable {
			return nil
		}
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	table := pgx.Identifier{name}.Sanitize()
	stmt := fmt.Sprintf(`INSERT INTO %s (id, doc_id, page, para, text, theme, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			page = EXCLUDED.page,
			para = EXCLUDED.para,
			text = EXCLUDED.text,
			theme = EXCLUDED.theme,
			embedding = EXCLUDED.embedding`, table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range points {
		_, err := tx.Exec(ctx, stmt,
			p.ID, p.Payload.DocID, p.Payload.Page, p.Payload.Para,
			p.Payload.Text, p.Payload.Theme, pgvector.NewVector(p.Vector))
		if err != nil {
			return fmt.Errorf("upsert point %s into %s: %w", p.ID, name, asStoreErr(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert into %s: %w", name, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	table := pgx.Identifier{name}.Sanitize()
	stmt := fmt.Sprintf(`SELECT id, doc_id, page, para, text, theme,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, table)

	rows, err := s.pool.Query(ctx, stmt, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, asStoreErr(err)
	}
	defer rows.Close()

	var out []vectorstore.ScoredPoint
	for rows.Next() {
		var sp vectorstore.ScoredPoint
		if err := rows.Scan(&sp.ID, &sp.Payload.DocID, &sp.Payload.Page, &sp.Payload.Para,
			&sp.Payload.Text, &sp.Payload.Theme, &sp.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, asStoreErr(err)
	}
	return out, nil
}

func (s *Store) Scroll(ctx context.Context, name string, opts vectorstore.ScrollOptions) ([]vectorstore.Point, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}
	table := pgx.Identifier{name}.Sanitize()

	var (
		rows pgx.Rows
		err  error
	)
	if opts.Theme != "" {
		stmt := fmt.Sprintf(`SELECT id, doc_id, page, para, text, theme FROM %s WHERE theme = $1 ORDER BY seq LIMIT $2`, table)
		rows, err = s.pool.Query(ctx, stmt, opts.Theme, limit)
	} else {
		stmt := fmt.Sprintf(`SELECT id, doc_id, page, para, text, theme FROM %s ORDER BY seq LIMIT $1`, table)
		rows, err = s.pool.Query(ctx, stmt, limit)
	}
	if err != nil {
		return nil, asStoreErr(err)
	}
	defer rows.Close()

	var out []vectorstore.Point
	for rows.Next() {
		var p vectorstore.Point
		if err := rows.Scan(&p.ID, &p.Payload.DocID, &p.Payload.Page, &p.Payload.Para,
			&p.Payload.Text, &p.Payload.Theme); err != nil {
			return nil, fmt.Errorf("scan scroll row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, asStoreErr(err)
	}
	return out, nil
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT to_regclass($1) IS NOT NULL", pgx.Identifier{name}.Sanitize()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return exists, nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	table := pgx.Identifier{name}.Sanitize()
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

func asStoreErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
		return vectorstore.ErrCollectionNotFound
	}
	return err
}
