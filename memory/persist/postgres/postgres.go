// Package postgres persists memory snapshots in PostgreSQL with a
// pgvector embedding column, making the record table usable for ANN
// queries by other consumers. Requires the vector extension.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/recallkit/recall-go/memory"
)

var migration = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS memory_config (
	owner TEXT PRIMARY KEY,
	config JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS memory_record (
	owner TEXT NOT NULL,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	importance DOUBLE PRECISION NOT NULL,
	access_count INTEGER NOT NULL,
	last_accessed_ts BIGINT NOT NULL,
	created_ts BIGINT NOT NULL,
	expires_ts BIGINT,
	tags JSONB NOT NULL,
	embedding vector(` + dims + `),
	metadata JSONB NOT NULL,
	PRIMARY KEY (owner, id)
);
CREATE INDEX IF NOT EXISTS idx_memory_record_owner ON memory_record (owner, position);
`

// dims must match embedding.Dimensions.
const dims = "384"

// DB is a memory.RecordStore backed by PostgreSQL.
type DB struct {
	db *sql.DB
}

// NewDB connects with a lib/pq DSN and applies the schema migration.
func NewDB(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema migration")
	}
	return &DB{db: db}, nil
}

// Load implements memory.RecordStore.
func (d *DB) Load(ctx context.Context, owner string) (*memory.OwnerSnapshot, error) {
	var configJSON []byte
	err := d.db.QueryRowContext(ctx,
		"SELECT config FROM memory_config WHERE owner = $1", owner,
	).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load memory config")
	}

	snapshot := &memory.OwnerSnapshot{Owner: owner}
	if err := json.Unmarshal(configJSON, &snapshot.Config); err != nil {
		return nil, errors.Wrap(err, "failed to decode memory config")
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, content, type, importance, access_count,
			last_accessed_ts, created_ts, expires_ts, tags, embedding, metadata
		FROM memory_record
		WHERE owner = $1
		ORDER BY position ASC
	`, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memory records")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec          memory.Record
			lastAccessed int64
			created      int64
			expires      sql.NullInt64
			tagsJSON     []byte
			vector       pgvector.Vector
			metadataJSON []byte
		)
		err := rows.Scan(&rec.ID, &rec.Content, &rec.Type, &rec.Importance, &rec.AccessCount,
			&lastAccessed, &created, &expires, &tagsJSON, &vector, &metadataJSON)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memory record")
		}
		rec.LastAccessedAt = time.UnixMilli(lastAccessed).UTC()
		rec.CreatedAt = time.UnixMilli(created).UTC()
		if expires.Valid {
			t := time.UnixMilli(expires.Int64).UTC()
			rec.ExpiresAt = &t
		}
		if err := json.Unmarshal(tagsJSON, &rec.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to decode tags")
		}
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, errors.Wrap(err, "failed to decode metadata")
		}
		rec.Embedding = vector.Slice()
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
		INSERT INTO memory_config (owner, config) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET config = EXCLUDED.config
	`, snapshot.Owner, configJSON)
	if err != nil {
		return errors.Wrap(err, "failed to upsert memory config")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_record WHERE owner = $1", snapshot.Owner); err != nil {
		return errors.Wrap(err, "failed to clear memory records")
	}

	for i, rec := range snapshot.Records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return errors.Wrap(err, "failed to encode tags")
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return errors.Wrap(err, "failed to encode metadata")
		}
		var expires any
		if rec.ExpiresAt != nil {
			expires = rec.ExpiresAt.UnixMilli()
		}
		var vector any
		if len(rec.Embedding) > 0 {
			vector = pgvector.NewVector(rec.Embedding)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memory_record (owner, id, position, content, type, importance,
				access_count, last_accessed_ts, created_ts, expires_ts, tags, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, snapshot.Owner, rec.ID, i, rec.Content, string(rec.Type), rec.Importance,
			rec.AccessCount, rec.LastAccessedAt.UnixMilli(), rec.CreatedAt.UnixMilli(),
			expires, tagsJSON, vector, metadataJSON)
		if err != nil {
			return errors.Wrap(err, "failed to insert memory record")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit snapshot")
}

// Delete implements memory.RecordStore.
func (d *DB) Delete(ctx context.Context, owner string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_record WHERE owner = $1", owner); err != nil {
		return errors.Wrap(err, "failed to delete memory records")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_config WHERE owner = $1", owner); err != nil {
		return errors.Wrap(err, "failed to delete memory config")
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// Close implements memory.RecordStore.
func (d *DB) Close() error {
	return d.db.Close()
}
