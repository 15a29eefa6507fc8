package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

const resultsTable = "publication_results"

const createResultsTable = `CREATE TABLE IF NOT EXISTS publication_results (
    id            BIGSERIAL PRIMARY KEY,
    content_id    TEXT        NOT NULL,
    account_id    TEXT        NOT NULL,
    platform      TEXT        NOT NULL,
    success       BOOLEAN     NOT NULL,
    external_id   TEXT,
    url           TEXT,
    error         TEXT,
    attempts      INTEGER     NOT NULL,
    scheduled_at  TIMESTAMPTZ NOT NULL,
    published_at  TIMESTAMPTZ NOT NULL,
    metadata      JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var resultColumns = []string{
	"content_id", "account_id", "platform", "success", "external_id", "url",
	"error", "attempts", "scheduled_at", "published_at", "metadata",
}

// PostgresResultLog appends publication results to Postgres.
type PostgresResultLog struct {
	db   *sql.DB
	psql sq.StatementBuilderType
}

var (
	_ ports.ResultLog    = (*PostgresResultLog)(nil)
	_ ports.ResultReader = (*PostgresResultLog)(nil)
)

// NewPostgresResultLog wires a sql.DB implementation.
func NewPostgresResultLog(db *sql.DB) *PostgresResultLog {
	return &PostgresResultLog{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the results table when missing.
func (r *PostgresResultLog) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, createResultsTable); err != nil {
		return fmt.Errorf("create results table: %w", err)
	}
	return nil
}

// Append inserts one terminal result.
func (r *PostgresResultLog) Append(ctx context.Context, result domain.PublicationResult) error {
	if r.db == nil {
		return nil
	}

	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query, args, err := r.psql.Insert(resultsTable).
		Columns(resultColumns...).
		Values(
			result.ContentID,
			result.AccountID,
			result.Platform,
			result.Success,
			result.ExternalID,
			result.URL,
			result.Error,
			result.Attempts,
			result.ScheduledTime,
			result.PublishedAt,
			string(metadata),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Recent returns the newest results, optionally restricted to platforms.
func (r *PostgresResultLog) Recent(ctx context.Context, platforms []string, limit int) ([]domain.PublicationResult, error) {
	if r.db == nil {
		return nil, nil
	}

	builder := r.psql.Select(resultColumns...).
		From(resultsTable).
		OrderBy("published_at DESC").
		Limit(uint64(max(limit, 1)))
	if len(platforms) > 0 {
		builder = builder.Where("platform = ANY(?)", pq.StringArray(platforms))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	var out []domain.PublicationResult
	for rows.Next() {
		var (
			res                    domain.PublicationResult
			externalID, url, cause sql.NullString
			metadata               []byte
		)
		if err := rows.Scan(
			&res.ContentID, &res.AccountID, &res.Platform, &res.Success,
			&externalID, &url, &cause, &res.Attempts,
			&res.ScheduledTime, &res.PublishedAt, &metadata,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.ExternalID, res.URL, res.Error = externalID.String, url.String, cause.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &res.Metadata); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, res)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}
