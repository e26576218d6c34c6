// Package sqlite persists memory snapshots in an embedded SQLite
// database. Embeddings, tags and metadata are stored as JSON text;
// installations needing native vector search should use the postgres
// backend instead.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/recallkit/recall-go/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_config (
	owner TEXT PRIMARY KEY,
	config TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS memory_record (
	owner TEXT NOT NULL,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	importance REAL NOT NULL,
	access_count INTEGER NOT NULL,
	last_accessed_ts INTEGER NOT NULL,
	created_ts INTEGER NOT NULL,
	expires_ts INTEGER,
	tags TEXT NOT NULL,
	embedding TEXT NOT NULL,
	metadata TEXT NOT NULL,
	PRIMARY KEY (owner, id)
);
CREATE INDEX IF NOT EXISTS idx_memory_record_owner ON memory_record (owner, position);
`

// DB is a memory.RecordStore backed by a SQLite file.
type DB struct {
	db *sql.DB
}

// NewDB opens (and if needed initializes) the database at dsn. A plain
// file path works; ":memory:" gives an ephemeral store.
func NewDB(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return &DB{db: db}, nil
}

// Load implements memory.RecordStore.
func (d *DB) Load(ctx context.Context, owner string) (*memory.OwnerSnapshot, error) {
	var configJSON string
	err := d.db.QueryRowContext(ctx,
		"SELECT config FROM memory_config WHERE owner = ?", owner,
	).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load memory config")
	}

	snapshot := &memory.OwnerSnapshot{Owner: owner}
	if err := json.Unmarshal([]byte(configJSON), &snapshot.Config); err != nil {
		return nil, errors.Wrap(err, "failed to decode memory config")
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, content, type, importance, access_count,
			last_accessed_ts, created_ts, expires_ts, tags, embedding, metadata
		FROM memory_record
		WHERE owner = ?
		ORDER BY position ASC
	`, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory records")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec           memory.Record
			lastAccessed  int64
			created       int64
			expires       sql.NullInt64
			tagsJSON      string
			embeddingJSON string
			metadataJSON  string
		)
		err := rows.Scan(&rec.ID, &rec.Content, &rec.Type, &rec.Importance, &rec.AccessCount,
			&lastAccessed, &created, &expires, &tagsJSON, &embeddingJSON, &metadataJSON)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memory record")
		}
		rec.LastAccessedAt = time.UnixMilli(lastAccessed).UTC()
		rec.CreatedAt = time.UnixMilli(created).UTC()
		if expires.Valid {
			t := time.UnixMilli(expires.Int64).UTC()
			rec.ExpiresAt = &t
		}
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to decode tags")
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &rec.Embedding); err != nil {
			return nil, errors.Wrap(err, "failed to decode embedding")
		}
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to decode metadata")
		}
		snapshot.Records = append(snapshot.Records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate memory records")
	}
	return snapshot, nil
}

// Save implements memory.RecordStore, replacing the owner's rows in one
// transaction.
func (d *DB) Save(ctx context.Context, snapshot *memory.OwnerSnapshot) error {
	configJSON, err := json.Marshal(snapshot.Config)
	if err != nil {
		return errors.Wrap(err, "failed to encode memory config")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memory_config (owner, config) VALUES (?, ?)
		ON CONFLICT (owner) DO UPDATE SET config = excluded.config
	`, snapshot.Owner, string(configJSON))
	if err != nil {
		return errors.Wrap(err, "failed to upsert memory config")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_record WHERE owner = ?", snapshot.Owner); err != nil {
		return errors.Wrap(err, "failed to clear memory records")
	}

	for i, rec := range snapshot.Records {
		tagsJSON, err := json.Marshal(orEmpty(rec.Tags))
		if err != nil {
			return errors.Wrap(err, "failed to encode tags")
		}
		embeddingJSON, err := json.Marshal(rec.Embedding)
		if err != nil {
			return errors.Wrap(err, "failed to encode embedding")
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return errors.Wrap(err, "failed to encode metadata")
		}
		var expires any
		if rec.ExpiresAt != nil {
			expires = rec.ExpiresAt.UnixMilli()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memory_record (owner, id, position, content, type, importance,
				access_count, last_accessed_ts, created_ts, expires_ts, tags, embedding, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, snapshot.Owner, rec.ID, i, rec.Content, string(rec.Type), rec.Importance,
			rec.AccessCount, rec.LastAccessedAt.UnixMilli(), rec.CreatedAt.UnixMilli(),
			expires, string(tagsJSON), string(embeddingJSON), string(metadataJSON))
		if err != nil {
			return errors.Wrap(err, "failed to insert memory record")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit snapshot")
	}
	return nil
}

// Delete implements memory.RecordStore.
func (d *DB) Delete(ctx context.Context, owner string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_record WHERE owner = ?", owner); err != nil {
		return errors.Wrap(err, "failed to delete memory records")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_config WHERE owner = ?", owner); err != nil {
		return errors.Wrap(err, "failed to delete memory config")
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// Close implements memory.RecordStore.
func (d *DB) Close() error {
	return d.db.Close()
}

// orEmpty keeps nil slices encoding as [] instead of null.
func orEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
