// Package alias is an optional Postgres-backed keyword-alias candidate
// source. It contributes extra raw records into the search merge; it never
// owns ranking or normalization.
package alias

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"tariff-engine/internal/errors"
)

// Source queries curated alias→code rows from a relational store.
type Source struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to Postgres with the given DSN.
func Open(dsn string, log *zap.Logger) (*Source, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "failed to open alias database", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{db: db, log: log}, nil
}

// Close releases the connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// Candidates returns raw records whose alias matches any of the expanded
// terms. Records use the same field names the upstream API uses, so they
// flow through the normal normalize/rank pipeline unchanged.
func (s *Source) Candidates(ctx context.Context, terms []string) ([]map[string]any, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = "%" + t + "%"
	}

	query := `SELECT hts_code, description, general_rate
		FROM hts_aliases
		WHERE alias ILIKE ANY(ARRAY[` + strings.Join(placeholders, ", ") + `])
		LIMIT 100`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Upstream("alias source query failed", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var code, description string
		var generalRate sql.NullString
		if err := rows.Scan(&code, &description, &generalRate); err != nil {
			return nil, errors.Internal("alias row scan failed", err)
		}
		rec := map[string]any{
			"htsno":       code,
			"description": description,
		}
		if generalRate.Valid {
			rec["general"] = generalRate.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

