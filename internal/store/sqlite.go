// Package store provides storage backends for Veerkracht.
//
// This file implements an SQLite-backed store for seeds, audit events, and
// escalation tickets.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLite migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore ready", "dsn", dsn)
	return &SQLiteStore{db: db}, nil
}

const listSeedsColumns = `id, emotion, type, label, triggers, response, responses,
	context_constraints, priority, weight, confidence, ttl_minutes, usage_count,
	last_used_at, tags, created_at, updated_at, active, schema_version`

// ListActiveSeeds returns active seeds matching the filter.
func (s *SQLiteStore) ListActiveSeeds(ctx context.Context, filter SeedFilter) ([]models.Seed, error) {
	query := "SELECT " + listSeedsColumns + " FROM seeds WHERE active = 1"
	var args []interface{}
	if filter.Emotion != "" {
		query += " AND emotion = ?"
		args = append(args, filter.Emotion)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active seeds failed: %w", err)
	}
	defer rows.Close()

	var seeds []models.Seed
	for rows.Next() {
		seed, err := scanSeed(rows)
		if err != nil {
			return nil, err
		}
		if filter.Tag != "" && !matchesFilter(seed, SeedFilter{Tag: filter.Tag}) {
			continue
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// IncrementUsage bumps usage bookkeeping in a single atomic UPDATE so the
// read-then-write race flagged in the original design cannot lose counts.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, seedID string, usedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE seeds SET usage_count = usage_count + 1, last_used_at = ?, updated_at = ? WHERE id = ?",
		usedAt, usedAt, seedID)
	if err != nil {
		return fmt.Errorf("increment usage failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSeedNotFound
	}
	return nil
}

// UpdateWeight sets the seed's selection weight.
func (s *SQLiteStore) UpdateWeight(ctx context.Context, seedID string, weight float64) error {
	if weight < 0 {
		return models.ErrNegativeWeight
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE seeds SET weight = ?, updated_at = ? WHERE id = ?",
		weight, time.Now(), seedID)
	if err != nil {
		return fmt.Errorf("update weight failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSeedNotFound
	}
	return nil
}

// InsertSeed validates and stores a new seed.
func (s *SQLiteStore) InsertSeed(ctx context.Context, seed models.Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	triggersJSON, err := marshalJSON(seed.Triggers)
	if err != nil {
		return err
	}
	responsesJSON := ""
	if seed.Responses != nil {
		if responsesJSON, err = marshalJSON(seed.Responses); err != nil {
			return err
		}
	}
	constraintsJSON, err := marshalJSON(seed.Constraints)
	if err != nil {
		return err
	}
	tagsJSON := ""
	if seed.Tags != nil {
		if tagsJSON, err = marshalJSON(seed.Tags); err != nil {
			return err
		}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO seeds
		(id, emotion, type, label, triggers, response, responses, context_constraints,
		 priority, weight, confidence, ttl_minutes, usage_count, last_used_at, tags,
		 created_at, updated_at, active, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seed.ID, seed.Emotion, string(seed.Type), string(seed.Label), triggersJSON,
		seed.Response, nilIfEmpty(responsesJSON), constraintsJSON,
		seed.Metadata.Priority, seed.Metadata.Weight, seed.Metadata.Confidence,
		seed.Metadata.TTLMinutes, seed.Metadata.UsageCount, seed.Metadata.LastUsedAt,
		nilIfEmpty(tagsJSON), seed.CreatedAt, seed.UpdatedAt, seed.Active, seed.SchemaVersion)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return ErrDuplicateSeed
		}
		return fmt.Errorf("insert seed failed: %w", err)
	}
	return nil
}

// DeactivateSeed marks a seed inactive.
func (s *SQLiteStore) DeactivateSeed(ctx context.Context, seedID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE seeds SET active = 0, updated_at = ? WHERE id = ?", time.Now(), seedID)
	if err != nil {
		return fmt.Errorf("deactivate seed failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSeedNotFound
	}
	return nil
}

// AddAuditEvents appends audit events in one transaction.
func (s *SQLiteStore) AddAuditEvents(ctx context.Context, events []models.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx failed: %w", err)
	}
	defer tx.Rollback()
	for _, ev := range events {
		metadataJSON := ""
		if ev.Entry.Metadata != nil {
			if metadataJSON, err = marshalJSON(ev.Entry.Metadata); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO audit_events
			(request_id, session_id, stage, status, duration_ms, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.RequestID, ev.SessionID, string(ev.Entry.Stage), string(ev.Entry.Status),
			ev.Entry.DurationMs, nilIfEmpty(metadataJSON), ev.Entry.Timestamp); err != nil {
			return fmt.Errorf("insert audit event failed: %w", err)
		}
	}
	return tx.Commit()
}

// ListAuditEvents returns the most recent audit events for a session, oldest first.
func (s *SQLiteStore) ListAuditEvents(ctx context.Context, sessionID string, limit int) ([]models.AuditEvent, error) {
	query := `SELECT request_id, session_id, stage, status, duration_ms, metadata, created_at
		FROM audit_events`
	var args []interface{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events failed: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		var metadataJSON sql.NullString
		if err := rows.Scan(&ev.RequestID, &ev.SessionID, &ev.Entry.Stage, &ev.Entry.Status,
			&ev.Entry.DurationMs, &metadataJSON, &ev.Entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event failed: %w", err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &ev.Entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata failed: %w", err)
			}
		}
		out = append(out, ev)
	}
	// Reverse to oldest-first for readable trails.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// SubmitTicket records an escalation ticket.
func (s *SQLiteStore) SubmitTicket(ctx context.Context, ticket models.EscalationTicket) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO escalation_tickets
		(id, session_id, input, candidate_answer, severity, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.SessionID, ticket.Input, nilIfEmpty(ticket.CandidateAnswer),
		string(ticket.Severity), nilIfEmpty(ticket.Reason), ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("submit ticket failed: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
