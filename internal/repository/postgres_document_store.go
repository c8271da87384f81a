package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const documentsSchema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);`

type documentRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresDocumentStore persists documents as JSONB rows of a single table.
type PostgresDocumentStore struct {
	db *sqlx.DB
}

// NewPostgresDocumentStore constructs a PostgresDocumentStore.
func NewPostgresDocumentStore(db *sqlx.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, documentsSchema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

// Get fetches one document.
func (s *PostgresDocumentStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	const query = `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc, err := row.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Query runs equality and set-membership filters over JSONB fields.
func (s *PostgresDocumentStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	args := []interface{}{collection}
	conditions := []string{"collection = $1"}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual:
			payload, err := json.Marshal(map[string]interface{}{f.Field: f.Value})
			if err != nil {
				return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
			}
			args = append(args, string(payload))
			conditions = append(conditions, fmt.Sprintf("data @> $%d::jsonb", len(args)))
		case OpIn:
			args = append(args, f.Field, pq.Array(f.Value.([]string)))
			conditions = append(conditions, fmt.Sprintf("data->>$%d = ANY($%d)", len(args)-1, len(args)))
		}
	}

	order := "id ASC"
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		order = fmt.Sprintf("data->>$%d %s, id ASC", len(args), direction)
	}

	query := fmt.Sprintf("SELECT id, data, created_at, updated_at FROM documents WHERE %s ORDER BY %s", strings.Join(conditions, " AND "), order)
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Add inserts a document under a generated id.
func (s *PostgresDocumentStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Set upserts a document, merging top-level fields when merge is true.
func (s *PostgresDocumentStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	update := "data = EXCLUDED.data"
	if merge {
		update = "data = documents.data || EXCLUDED.data"
	}
	query := `INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE SET ` + update + `, updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document. Missing documents are ignored.
func (s *PostgresDocumentStore) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r documentRow) document() (Document, error) {
	data := make(map[string]interface{})
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return Document{}, fmt.Errorf("decode document %s: %w", r.ID, err)
		}
	}
	return Document{ID: r.ID, Data: data, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}
