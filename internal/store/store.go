// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists topics and merged entities in SQLite. It is the
// only component that talks to the durable store; upserts are keyed by
// (topic id, entity key) so repeated runs update rather than duplicate.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/topic-scout/internal/merge"
	"github.com/pdiddy/topic-scout/internal/scoring"
	"github.com/pdiddy/topic-scout/pkg/types"
)

// ErrNotFound is returned when a requested topic does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the research SQLite database.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at path and ensures the schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			sub_topics TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			topic_id TEXT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT,
			description TEXT,
			sub_topics TEXT NOT NULL,
			alternates TEXT,
			snapshots TEXT,
			metrics TEXT NOT NULL,
			relevance REAL NOT NULL,
			priority REAL NOT NULL,
			first_seen TEXT,
			updated_at TEXT,
			PRIMARY KEY (topic_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_topic_kind ON entities(topic_id, kind)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateTopic stores a new topic and returns it with a generated ID. The
// title is always ensured to be a member of its own sub-topic set.
func (s *Store) CreateTopic(ctx context.Context, title string, subTopics []string) (types.Topic, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.Topic{}, fmt.Errorf("topic title is empty")
	}

	topic := types.Topic{
		ID:        uuid.NewString(),
		Title:     title,
		SubTopics: EnsureMember(title, subTopics),
		CreatedAt: time.Now().UTC(),
	}

	stJSON, err := json.Marshal(topic.SubTopics)
	if err != nil {
		return types.Topic{}, fmt.Errorf("encoding sub-topics: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO topics (id, title, sub_topics, created_at) VALUES (?, ?, ?, ?)`,
		topic.ID, topic.Title, string(stJSON), topic.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return types.Topic{}, fmt.Errorf("inserting topic: %w", err)
	}
	return topic, nil
}

// EnsureMember returns subTopics with title guaranteed to be the first
// member, duplicates removed, order otherwise preserved.
func EnsureMember(title string, subTopics []string) []string {
	out := []string{title}
	seen := map[string]bool{title: true}
	for _, st := range subTopics {
		st = strings.TrimSpace(st)
		if st == "" || seen[st] {
			continue
		}
		seen[st] = true
		out = append(out, st)
	}
	return out
}

// GetTopic loads one topic by ID.
func (s *Store) GetTopic(ctx context.Context, id string) (types.Topic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, sub_topics, created_at FROM topics WHERE id = ?`, id)
	return scanTopic(row)
}

// ListTopics returns all topics, newest first.
func (s *Store) ListTopics(ctx context.Context) ([]types.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, sub_topics, created_at FROM topics ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var topics []types.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// DeleteTopic removes a topic and, via the foreign key cascade, every
// merged entity stored under it. This is the only path that hard-deletes
// entities.
func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (types.Topic, error) {
	var t types.Topic
	var stJSON, createdAt string
	if err := row.Scan(&t.ID, &t.Title, &stJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Topic{}, ErrNotFound
		}
		return types.Topic{}, fmt.Errorf("scanning topic: %w", err)
	}
	if err := json.Unmarshal([]byte(stJSON), &t.SubTopics); err != nil {
		return types.Topic{}, fmt.Errorf("decoding sub-topics: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}

// UpsertError reports a persistence failure together with the entity keys
// that did not reach the store, so a retry can be targeted.
type UpsertError struct {
	FailedKeys []string
	Err        error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("persisting %d entities (first failed key %q): %v",
		len(e.FailedKeys), e.FailedKeys[0], e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// UpsertEntities writes merged entities under the topic in one
// transaction. An entity whose key already exists is re-merged with the
// stored record before writing: fields are refreshed by the completeness
// rule and the sub-topic set is unioned, never shrunk. Both scores are
// recomputed on the combined state, so they always reflect everything the
// topic has accumulated. Running the same research twice therefore yields
// exactly one row per entity key, byte-for-byte identical.
func (s *Store) UpsertEntities(ctx context.Context, topic types.Topic, engine scoring.Engine, entities []types.MergedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	fail := func(idx int, err error) error {
		keys := make([]string, 0, len(entities)-idx)
		for _, e := range entities[idx:] {
			keys = append(keys, e.Key)
		}
		return &UpsertError{FailedKeys: keys, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(0, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	for i, ent := range entities {
		stored, err := s.getEntityTx(ctx, tx, topic.ID, ent.Key)
		switch {
		case err == nil:
			ent = merge.Combine(stored, ent)
		case errors.Is(err, ErrNotFound):
			// First sighting; insert as-is.
		default:
			return fail(i, err)
		}

		single := []types.MergedEntity{ent}
		engine.Apply(topic, single)
		ent = single[0]

		if err := writeEntityTx(ctx, tx, topic.ID, ent); err != nil {
			return fail(i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(0, fmt.Errorf("committing: %w", err))
	}
	return nil
}

func (s *Store) getEntityTx(ctx context.Context, tx *sql.Tx, topicID, key string) (types.MergedEntity, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT topic_id, key, kind, name, url, description, sub_topics,
		        alternates, snapshots, metrics, relevance, priority,
		        first_seen, updated_at
		 FROM entities WHERE topic_id = ? AND key = ?`, topicID, key)
	return scanEntity(row)
}

func writeEntityTx(ctx context.Context, tx *sql.Tx, topicID string, ent types.MergedEntity) error {
	stJSON, _ := json.Marshal(ent.SubTopics)
	altJSON, _ := json.Marshal(ent.Alternates)
	snapJSON, _ := json.Marshal(ent.Snapshots)
	metJSON, _ := json.Marshal(ent.Metrics)

	_, err := tx.ExecContext(ctx,
		`INSERT INTO entities (topic_id, key, kind, name, url, description,
		                       sub_topics, alternates, snapshots, metrics,
		                       relevance, priority, first_seen, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(topic_id, key) DO UPDATE SET
			kind=excluded.kind, name=excluded.name, url=excluded.url,
			description=excluded.description, sub_topics=excluded.sub_topics,
			alternates=excluded.alternates, snapshots=excluded.snapshots,
			metrics=excluded.metrics, relevance=excluded.relevance,
			priority=excluded.priority, first_seen=excluded.first_seen,
			updated_at=excluded.updated_at`,
		topicID, ent.Key, string(ent.Kind), ent.Name, ent.URL, ent.Description,
		string(stJSON), string(altJSON), string(snapJSON), string(metJSON),
		ent.Relevance, ent.Priority,
		formatTime(ent.FirstSeen), formatTime(ent.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting entity %s: %w", ent.Key, err)
	}
	return nil
}

// EntitiesForTopic returns all merged entities stored under topicID,
// highest relevance first, priority and key breaking ties.
func (s *Store) EntitiesForTopic(ctx context.Context, topicID string) ([]types.MergedEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic_id, key, kind, name, url, description, sub_topics,
		        alternates, snapshots, metrics, relevance, priority,
		        first_seen, updated_at
		 FROM entities WHERE topic_id = ?
		 ORDER BY relevance DESC, priority DESC, key ASC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []types.MergedEntity
	for rows.Next() {
		ent, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, ent)
	}
	return entities, rows.Err()
}

func scanEntity(row rowScanner) (types.MergedEntity, error) {
	var ent types.MergedEntity
	var kind, stJSON, metJSON string
	var url, description, altJSON, snapJSON, firstSeen, updatedAt sql.NullString

	err := row.Scan(&ent.TopicID, &ent.Key, &kind, &ent.Name, &url, &description,
		&stJSON, &altJSON, &snapJSON, &metJSON,
		&ent.Relevance, &ent.Priority, &firstSeen, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MergedEntity{}, ErrNotFound
		}
		return types.MergedEntity{}, fmt.Errorf("scanning entity: %w", err)
	}

	ent.Kind = types.DataKind(kind)
	ent.URL = url.String
	ent.Description = description.String

	if err := json.Unmarshal([]byte(stJSON), &ent.SubTopics); err != nil {
		return types.MergedEntity{}, fmt.Errorf("decoding sub-topics for %s: %w", ent.Key, err)
	}
	if err := json.Unmarshal([]byte(metJSON), &ent.Metrics); err != nil {
		return types.MergedEntity{}, fmt.Errorf("decoding metrics for %s: %w", ent.Key, err)
	}
	if altJSON.String != "" && altJSON.String != "null" {
		if err := json.Unmarshal([]byte(altJSON.String), &ent.Alternates); err != nil {
			return types.MergedEntity{}, fmt.Errorf("decoding alternates for %s: %w", ent.Key, err)
		}
	}
	if snapJSON.String != "" && snapJSON.String != "null" {
		if err := json.Unmarshal([]byte(snapJSON.String), &ent.Snapshots); err != nil {
			return types.MergedEntity{}, fmt.Errorf("decoding snapshots for %s: %w", ent.Key, err)
		}
	}
	ent.FirstSeen = parseTime(firstSeen.String)
	ent.UpdatedAt = parseTime(updatedAt.String)
	return ent, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
