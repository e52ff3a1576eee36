package pgvector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docchat/internal/config"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

// Vector serializes as the pgvector input literal, e.g. [1,0.5,2].
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

// Document is one indexed chunk row. The position column mirrors the build
// order so hits map back to chunk texts.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Position      int    `bun:"position,notnull"`
	Content       string `bun:"content,notnull"`
	Embedding     Vector `bun:"embedding,notnull,type:vector"`
}

var _ vectorstore.Store = (*Store)(nil)

// Store keeps vectors in a Postgres table with the pgvector extension and
// lets the database rank by the `<->` distance operator.
type Store struct {
	db     *bun.DB
	dim    int
	chunks []string
}

// Connect opens the underlying SQL connection using the configured driver.
func Connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL
	if !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=disable"
		} else {
			dsn += "?sslmode=disable"
		}
	}
	if cfg.Driver == "pq" {
		return sql.Open("postgres", dsn)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func New(sqldb *sql.DB, dim int, debug bool) *Store {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db, dim: dim}
}

// NewFromConfig connects and wraps the connection in one step.
func NewFromConfig(cfg *config.DatabaseConfig, dim int) (*Store, error) {
	sqldb, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return New(sqldb, dim, cfg.Debug), nil
}

// Build recreates the documents table and inserts all records with their
// positions.
func (s *Store) Build(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return vectorstore.ErrNoRecords
	}

	docs := make([]Document, len(records))
	chunks := make([]string, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != s.dim {
			return fmt.Errorf("%w: record %d has dimension %d, want %d",
				vectorstore.ErrDimensionMismatch, i, len(rec.Embedding), s.dim)
		}
		docs[i] = Document{
			Position:  i,
			Content:   rec.ChunkText,
			Embedding: Vector(rec.Embedding),
		}
		chunks[i] = rec.ChunkText
	}

	if _, err := s.db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("dropping documents table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	if _, err := s.db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("inserting documents: %w", err)
	}
	s.chunks = chunks
	return nil
}

// Persist is a no-op: rows are durable once inserted.
func (s *Store) Persist(ctx context.Context) error {
	log.Debug().Int("documents", len(s.chunks)).Msg("Documents already persisted by the database")
	return nil
}

// Load reads chunk texts back in position order. An empty or missing table
// means nothing has been indexed yet.
func (s *Store) Load(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("position", "content").
		OrderExpr("d.position ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: documents table is empty", vectorstore.ErrNotFound)
	}

	chunks := make([]string, len(docs))
	for i, doc := range docs {
		if doc.Position != i {
			log.Warn().Int("row", i).Int("position", doc.Position).Msg("Document positions are not dense")
		}
		chunks[i] = doc.Content
	}
	s.chunks = chunks
	return nil
}

// Search lets Postgres rank rows by the pgvector distance operator.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			vectorstore.ErrDimensionMismatch, len(query), s.dim)
	}

	var rows []struct {
		Position int     `bun:"position"`
		Distance float64 `bun:"distance"`
	}
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("d.position").
		ColumnExpr("d.embedding <-> ? AS distance", Vector(query)).
		OrderExpr("distance ASC, d.position ASC").
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	hits := make([]vectorstore.Hit, len(rows))
	for i, row := range rows {
		hits[i] = vectorstore.Hit{Position: row.Position, Distance: row.Distance}
	}
	return hits, nil
}

func (s *Store) Chunks() []string { return s.chunks }

func (s *Store) Len() int { return len(s.chunks) }
