package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3". Postgres DSNs
// use a URL scheme or key=value connection parameters; everything else is
// treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalJSON encodes v for a JSON/TEXT column.
func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for storage failed: %w", err)
	}
	return string(b), nil
}

// scanSeed scans a Seed from sql.Rows. Column order must match listSeedsQuery.
func scanSeed(rows *sql.Rows) (models.Seed, error) {
	var s models.Seed
	var triggersJSON, responsesJSON, constraintsJSON, tagsJSON sql.NullString
	var lastUsedAt sql.NullTime
	err := rows.Scan(
		&s.ID, &s.Emotion, &s.Type, &s.Label, &triggersJSON, &s.Response, &responsesJSON,
		&constraintsJSON, &s.Metadata.Priority, &s.Metadata.Weight, &s.Metadata.Confidence,
		&s.Metadata.TTLMinutes, &s.Metadata.UsageCount, &lastUsedAt, &tagsJSON,
		&s.CreatedAt, &s.UpdatedAt, &s.Active, &s.SchemaVersion,
	)
	if err != nil {
		return s, fmt.Errorf("scan seed failed: %w", err)
	}
	if lastUsedAt.Valid {
		s.Metadata.LastUsedAt = &lastUsedAt.Time
	}
	if triggersJSON.Valid && triggersJSON.String != "" {
		if err := json.Unmarshal([]byte(triggersJSON.String), &s.Triggers); err != nil {
			return s, fmt.Errorf("decode seed triggers failed: %w", err)
		}
	}
	if responsesJSON.Valid && responsesJSON.String != "" {
		if err := json.Unmarshal([]byte(responsesJSON.String), &s.Responses); err != nil {
			return s, fmt.Errorf("decode seed responses failed: %w", err)
		}
	}
	if constraintsJSON.Valid && constraintsJSON.String != "" {
		if err := json.Unmarshal([]byte(constraintsJSON.String), &s.Constraints); err != nil {
			return s, fmt.Errorf("decode seed constraints failed: %w", err)
		}
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &s.Tags); err != nil {
			return s, fmt.Errorf("decode seed tags failed: %w", err)
		}
	}
	return s, nil
}
