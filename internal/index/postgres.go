package index

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/medra-health/medirag/internal/domain"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Postgres is a persistent index over a pgvector table. The table is the
// collection: Ensure creates it lazily, and any operation that finds it
// missing (dropped concurrently) re-runs Ensure once before failing.
type Postgres struct {
	pool       *pgxpool.Pool
	collection string
	dimensions int
}

// NewPostgres creates an index over the named collection. The collection
// name becomes a table name and must match [a-z][a-z0-9_]*.
func NewPostgres(pool *pgxpool.Pool, collection string, dimensions int) (*Postgres, error) {
	if !collectionNamePattern.MatchString(collection) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("invalid collection name %q", collection))
	}
	if dimensions <= 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "dimensions must be positive")
	}
	return &Postgres{
		pool:       pool,
		collection: collection,
		dimensions: dimensions,
	}, nil
}

// Ensure creates the collection table if it does not exist. The bigserial
// seq column records insertion order for tie-breaking.
func (p *Postgres) Ensure(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			seq       BIGSERIAL PRIMARY KEY,
			chunk_id  TEXT NOT NULL UNIQUE,
			content   TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, p.collection, p.dimensions))
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeBackendUnavailable, "failed to ensure collection", err)
	}
	return nil
}

// AddBatch inserts entries, replacing rows with the same chunk id so
// re-ingestion does not duplicate index entries.
func (p *Postgres) AddBatch(ctx context.Context, entries []domain.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != p.dimensions {
			return domain.ErrDimensionMismatch
		}
	}

	return p.withEnsureRetry(ctx, func() error {
		for _, e := range entries {
			_, err := p.pool.Exec(ctx, fmt.Sprintf(
				`INSERT INTO %s (chunk_id, content, embedding)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (chunk_id) DO UPDATE
				 SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
				p.collection),
				e.ID, e.Text, pgvector.NewVector(e.Vector),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns the top-k rows by cosine distance, scored as 1/(1+distance),
// ties broken by insertion order.
func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	results := make([]domain.RetrievedChunk, 0, k)
	err := p.withEnsureRetry(ctx, func() error {
		results = results[:0]
		rows, err := p.pool.Query(ctx, fmt.Sprintf(
			`SELECT chunk_id, content, 1.0 / (1.0 + (embedding <=> $1)) AS score
			 FROM %s
			 ORDER BY embedding <=> $1 ASC, seq ASC
			 LIMIT $2`, p.collection),
			pgvector.NewVector(vector), k,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r domain.RetrievedChunk
			if err := rows.Scan(&r.ID, &r.Text, &r.Score); err != nil {
				return err
			}
			results = append(results, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Clear removes every entry in the collection. A missing collection table
// counts as already cleared.
func (p *Postgres) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, p.collection))
	if err == nil || isUndefinedTable(err) {
		return nil
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeBackendUnavailable, "failed to clear collection", err)
}

// withEnsureRetry runs op, and if the collection table is missing, re-runs
// Ensure once and retries the operation once.
func (p *Postgres) withEnsureRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if !isUndefinedTable(err) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeBackendUnavailable, "index operation failed", err)
	}

	if err := p.Ensure(ctx); err != nil {
		return err
	}
	if err := op(); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeBackendUnavailable, "index operation failed after recreating collection", err)
	}
	return nil
}

// isUndefinedTable reports whether err is SQLSTATE 42P01.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
