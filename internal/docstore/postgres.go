package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps documents in a single jsonb table. It is the backend
// used when DATABASE_URL is set; batches run inside one SQL transaction and
// preconditions become jsonb containment filters on the affected row.
type PostgresStore struct {
	DB *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// Migrate creates the documents table if it is missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS documents (
            path       TEXT  NOT NULL,
            id         TEXT  NOT NULL,
            collection TEXT  NOT NULL,
            data       JSONB NOT NULL,
            PRIMARY KEY (path, id)
        );
        CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
    `
	if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("PostgresStore.Migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path, id string, out any) error {
	var raw []byte
	const q = `SELECT data FROM documents WHERE path = $1 AND id = $2`
	if err := s.DB.GetContext(ctx, &raw, q, path, id); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("PostgresStore.Get: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (s *PostgresStore) Query(ctx context.Context, path string, preds ...Predicate) ([]Doc, error) {
	match, err := predJSON(preds)
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, data FROM documents WHERE path = $1 AND data @> $2 ORDER BY id`
	return s.selectDocs(ctx, q, path, match)
}

func (s *PostgresStore) CollectionGroup(ctx context.Context, name string, preds ...Predicate) ([]Doc, error) {
	match, err := predJSON(preds)
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, data FROM documents WHERE collection = $1 AND data @> $2 ORDER BY id`
	return s.selectDocs(ctx, q, name, match)
}

func (s *PostgresStore) selectDocs(ctx context.Context, query string, args ...any) ([]Doc, error) {
	rows, err := s.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("PostgresStore.selectDocs: %w", err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		out = append(out, Doc{ID: id, Raw: raw})
	}
	return out, rows.Err()
}

func (s *PostgresStore) Set(ctx context.Context, path, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const q = `
        INSERT INTO documents (path, id, collection, data)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (path, id) DO UPDATE SET data = EXCLUDED.data
    `
	if _, err := s.DB.ExecContext(ctx, q, path, id, Leaf(path), string(raw)); err != nil {
		return fmt.Errorf("PostgresStore.Set: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, path, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	const q = `UPDATE documents SET data = data || $3 WHERE path = $1 AND id = $2`
	res, err := s.DB.ExecContext(ctx, q, path, id, string(raw))
	if err != nil {
		return fmt.Errorf("PostgresStore.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context, path, id, field string, delta int) error {
	const q = `
        UPDATE documents
        SET data = jsonb_set(data, ARRAY[$3],
            to_jsonb(COALESCE((data->>$3)::numeric, 0) + $4))
        WHERE path = $1 AND id = $2
    `
	res, err := s.DB.ExecContext(ctx, q, path, id, field, delta)
	if err != nil {
		return fmt.Errorf("PostgresStore.Increment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path, id string) error {
	const q = `DELETE FROM documents WHERE path = $1 AND id = $2`
	if _, err := s.DB.ExecContext(ctx, q, path, id); err != nil {
		return fmt.Errorf("PostgresStore.Delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) BatchWrite(ctx context.Context, ops []Op) (err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("PostgresStore.BatchWrite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, op := range ops {
		if err = s.applyOp(ctx, tx, op); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("PostgresStore.BatchWrite: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) applyOp(ctx context.Context, tx *sqlx.Tx, op Op) error {
	guard, err := guardJSON(op.Precond)
	if err != nil {
		return err
	}

	switch op.Kind {
	case OpSet:
		raw, err := json.Marshal(op.Doc)
		if err != nil {
			return err
		}
		if op.Precond != nil {
			// guarded replace never creates the document
			const q = `
                UPDATE documents SET data = $3
                WHERE path = $1 AND id = $2 AND data @> $4
            `
			res, err := tx.ExecContext(ctx, q, op.Path, op.ID, string(raw), guard)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return s.missOrGuardFail(ctx, tx, op)
			}
			return nil
		}
		const q = `
            INSERT INTO documents (path, id, collection, data)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (path, id) DO UPDATE SET data = EXCLUDED.data
        `
		_, err = tx.ExecContext(ctx, q, op.Path, op.ID, Leaf(op.Path), string(raw))
		return err
	case OpUpdate:
		raw, err := json.Marshal(op.Fields)
		if err != nil {
			return err
		}
		const q = `
            UPDATE documents SET data = data || $3
            WHERE path = $1 AND id = $2 AND data @> $4
        `
		res, err := tx.ExecContext(ctx, q, op.Path, op.ID, string(raw), guard)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.missOrGuardFail(ctx, tx, op)
		}
		return nil
	case OpDelete:
		const q = `DELETE FROM documents WHERE path = $1 AND id = $2 AND data @> $3`
		res, err := tx.ExecContext(ctx, q, op.Path, op.ID, guard)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 && op.Precond != nil {
			return s.missOrGuardFail(ctx, tx, op)
		}
		return nil
	}
	return fmt.Errorf("PostgresStore: unknown op kind %d", op.Kind)
}

func (s *PostgresStore) missOrGuardFail(ctx context.Context, tx *sqlx.Tx, op Op) error {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM documents WHERE path = $1 AND id = $2)`
	if err := tx.GetContext(ctx, &exists, q, op.Path, op.ID); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("batch %s/%s: %w", op.Path, op.ID, ErrNotFound)
	}
	return fmt.Errorf("batch %s/%s: %w", op.Path, op.ID, ErrPreconditionFailed)
}

// predJSON turns equality predicates into a jsonb containment object.
// No predicates means match-all ('{}'). The result is a string because pq
// sends []byte parameters as bytea, which the server rejects as jsonb.
func predJSON(preds []Predicate) (string, error) {
	m := map[string]any{}
	for _, p := range preds {
		m[p.Field] = p.Value
	}
	raw, err := json.Marshal(m)
	return string(raw), err
}

// guardJSON encodes an op precondition the same way. A nil precondition must
// become '{}' (contained in every document), not the JSON literal 'null'.
func guardJSON(precond map[string]any) (string, error) {
	if precond == nil {
		precond = map[string]any{}
	}
	raw, err := json.Marshal(precond)
	return string(raw), err
}
