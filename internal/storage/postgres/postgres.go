// Package postgres persists the engine's lifecycle events, giving the audit
// trail a durable home beyond the in-memory ring buffer.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/JuggernautLabs/storyforge/internal/events"
)

// EventRow is an event as stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Snapshot  json.RawMessage        `json:"snapshot,omitempty"`
	StoryID   string                 `json:"story_id"`
}

// Client manages the Postgres connection for event storage.
type Client struct {
	db      *sql.DB
	storyID string
}

// New creates a client using the standard PG* environment variables.
// Returns an error if the database is unreachable.
func New(storyID string) (*Client, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "storyforge")
	dbname := getEnv("PGDATABASE", "storyforge")
	password := os.Getenv("PGPASSWORD")

	var connStr string
	if password != "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	} else {
		connStr = fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			host, port, user, dbname)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:      db,
		storyID: storyID,
	}

	if err := client.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create story_events table: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS story_events (
			event_id  BIGSERIAL PRIMARY KEY,
			ts        TIMESTAMPTZ NOT NULL,
			level     TEXT NOT NULL,
			event     TEXT NOT NULL,
			msg       TEXT,
			fields    JSONB,
			snapshot  JSONB,
			story_id  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_story_events_ts ON story_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_story_events_story_id ON story_events(story_id);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event. Implements events.Sink.
func (c *Client) Append(e events.Event) error {
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	var fieldsJSON []byte
	if e.Fields != nil {
		fieldsJSON, err = json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var snapshotJSON []byte
	if e.Snapshot != nil {
		snapshotJSON, err = json.Marshal(e.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
	}

	var msgPtr *string
	if e.Message != "" {
		msgPtr = &e.Message
	}

	query := `
		INSERT INTO story_events (ts, level, event, msg, fields, snapshot, story_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, e.Level, e.Type, msgPtr, fieldsJSON, snapshotJSON, c.storyID)
	return err
}

// Query returns the last N events for the story in descending timestamp
// order.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, snapshot, story_id
		FROM story_events
		WHERE story_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.storyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON, snapshotJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &snapshotJSON, &e.StoryID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		if len(snapshotJSON) > 0 {
			e.Snapshot = append(json.RawMessage(nil), snapshotJSON...)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
