// persistence/postgres.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Postgres is a DocStore over a single jsonb documents table, driven through
// database/sql with lib/pq. Conflict detection uses a version column checked
// inside a serializable SQL transaction.
type Postgres struct {
	db *sql.DB
}

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
    key     TEXT PRIMARY KEY,
    data    JSONB NOT NULL,
    version BIGINT NOT NULL DEFAULT 1
)`

func NewPostgres(host string, port int, user, password, dbname string) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(createDocumentsTable); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string, dest any) error {
	return storeGet(ctx, p, key, dest)
}

func (p *Postgres) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return runTransaction(ctx, p, fn)
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) fetch(ctx context.Context, key string) (map[string]any, int64, error) {
	var (
		raw     []byte
		version int64
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT data, version FROM documents WHERE key = $1`, key).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, 0, err
	}
	return doc, version, nil
}

func (p *Postgres) listKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM documents WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *Postgres) commit(ctx context.Context, reads map[string]int64, ops []writeOp) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, version := range reads {
		var current int64
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM documents WHERE key = $1 FOR UPDATE`, key).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			current = 0
		case err != nil:
			return translatePQError(err)
		}
		if current != version {
			return ErrConflict
		}
	}

	for _, op := range ops {
		if err := p.applyOp(ctx, tx, op); err != nil {
			return translatePQError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return translatePQError(err)
	}
	return nil
}

func (p *Postgres) applyOp(ctx context.Context, tx *sql.Tx, op writeOp) error {
	switch op.kind {
	case opSet:
		raw, err := json.Marshal(op.doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO documents (key, data, version) VALUES ($1, $2, 1)
            ON CONFLICT (key) DO UPDATE SET data = $2, version = documents.version + 1`,
			op.key, raw)
		return err
	case opUpdate:
		var base map[string]any
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE key = $1 FOR UPDATE`, op.key).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if raw != nil {
			if err := json.Unmarshal(raw, &base); err != nil {
				return err
			}
		}
		merged, err := mergeUpdate(base, op.fields)
		if err != nil {
			return err
		}
		out, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO documents (key, data, version) VALUES ($1, $2, 1)
            ON CONFLICT (key) DO UPDATE SET data = $2, version = documents.version + 1`,
			op.key, out)
		return err
	case opDelete:
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE key = $1`, op.key)
		return err
	}
	return nil
}

// translatePQError maps serialization failures onto ErrConflict so the shared
// retry loop re-runs the transaction function.
func translatePQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == "40001" || pqErr.Code == "40P01") {
		return ErrConflict
	}
	return err
}
