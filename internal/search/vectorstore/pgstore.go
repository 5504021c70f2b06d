package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// PGConfig configures a Postgres/pgvector-backed Store.
type PGConfig struct {
	// DSN is the PostgreSQL connection string. If empty, DB must be set.
	DSN string

	// DB reuses an existing connection; when set, DSN is ignored and the
	// store will not close it.
	DB *sql.DB

	// Dimension is the embedding dimension, e.g. 1536 for
	// text-embedding-3-small. Required: pgvector columns are fixed-width.
	Dimension int

	// EnsureSchema creates the indexed_tools table (and the pgvector
	// extension) if they do not already exist. Off unless set.
	EnsureSchema bool
}

// PGStore is a Store backed by PostgreSQL with the pgvector extension,
// keyed by skill and tool name, with its schema created inline rather than
// via a migrations directory.
type PGStore struct {
	db        *sql.DB
	dimension int
	ownsDB    bool
}

// NewPGStore opens (or reuses) a Postgres connection and prepares the
// indexed_tools table.
func NewPGStore(cfg PGConfig) (*PGStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vectorstore: pgstore: Dimension is required")
	}

	var db *sql.DB
	var ownsDB bool
	switch {
	case cfg.DB != nil:
		db = cfg.DB
	case cfg.DSN != "":
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: pgstore: open: %w", err)
		}
		ownsDB = true
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("vectorstore: pgstore: ping: %w", err)
		}
	default:
		return nil, fmt.Errorf("vectorstore: pgstore: either DSN or DB must be set")
	}

	s := &PGStore{db: db, dimension: cfg.Dimension, ownsDB: ownsDB}

	if cfg.EnsureSchema {
		if err := s.ensureSchema(context.Background()); err != nil {
			if ownsDB {
				db.Close()
			}
			return nil, fmt.Errorf("vectorstore: pgstore: ensure schema: %w", err)
		}
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension vector: %w", err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS indexed_tools (
			id TEXT PRIMARY KEY,
			skill TEXT NOT NULL,
			tool TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`, s.dimension))
	if err != nil {
		return fmt.Errorf("create table indexed_tools: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS indexed_tools_skill_idx ON indexed_tools (skill)`)
	return err
}

// Close releases the underlying connection if this store opened it.
func (s *PGStore) Close() error {
	if s == nil || !s.ownsDB || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PGStore) Upsert(ctx context.Context, docs []Document) (models.UpsertStats, error) {
	var stats models.UpsertStats
	for _, d := range docs {
		if len(d.Vector) != s.dimension {
			return models.UpsertStats{}, &ErrDimensionMismatch{Want: s.dimension, Got: len(d.Vector)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.UpsertStats{}, fmt.Errorf("vectorstore: pgstore: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, d := range docs {
		var inserted bool
		err := tx.QueryRowContext(ctx, `
			INSERT INTO indexed_tools (id, skill, tool, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::vector, $6, $6)
			ON CONFLICT (id) DO UPDATE SET
				skill = EXCLUDED.skill,
				tool = EXCLUDED.tool,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)
		`, d.ID, d.Skill, d.Tool, d.Content, encodeEmbedding(d.Vector), now).Scan(&inserted)
		if err != nil {
			return models.UpsertStats{}, fmt.Errorf("vectorstore: pgstore: upsert %s: %w", d.ID, err)
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return models.UpsertStats{}, fmt.Errorf("vectorstore: pgstore: commit: %w", err)
	}
	return stats, nil
}

func (s *PGStore) Search(ctx context.Context, queryVec models.Vector, filter models.SearchFilter, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	query := `
		SELECT id, 1 - (embedding <=> $1::vector) AS similarity
		FROM indexed_tools
		WHERE ($2 = '' OR skill = $2)
		ORDER BY embedding <=> $1::vector ASC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, encodeEmbedding(queryVec), filter.Skill, topK)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: pgstore: search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var id string
		var similarity float64
		if err := rows.Scan(&id, &similarity); err != nil {
			return nil, fmt.Errorf("vectorstore: pgstore: scan search result: %w", err)
		}
		score := float32(similarity)
		results = append(results, models.SearchResult{ID: id, Score: score, DenseScore: ptr(score)})
	}
	return results, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		result, err := s.db.ExecContext(ctx, `DELETE FROM indexed_tools WHERE id = $1`, id)
		if err != nil {
			return n, fmt.Errorf("vectorstore: pgstore: delete %s: %w", id, err)
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			n++
		}
	}
	return n, nil
}

func (s *PGStore) DeleteByFilter(ctx context.Context, filter models.SearchFilter) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM indexed_tools WHERE ($1 = '' OR skill = $1)`, filter.Skill)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: pgstore: delete by filter: %w", err)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indexed_tools`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: pgstore: count: %w", err)
	}
	return count, nil
}

func (s *PGStore) Health(ctx context.Context) HealthStatus {
	if err := s.db.PingContext(ctx); err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error()}
	}
	return HealthStatus{Healthy: true, Detail: "pgvector"}
}

// encodeEmbedding renders a vector in pgvector's text input format, e.g.
// "[0.1,0.2,0.3]".
func encodeEmbedding(v models.Vector) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			f = 0
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}
