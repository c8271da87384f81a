package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var documentColumns = []string{"id", "data", "created_at", "updated_at"}

func TestPostgresGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2")).
		WithArgs(CollectionUsers, "P1").
		WillReturnRows(sqlmock.NewRows(documentColumns).AddRow("P1", []byte(`{"nom":"Martin","role_key":"prof"}`), now, now))

	doc, err := store.Get(context.Background(), CollectionUsers, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Martin", doc.Data["nom"])
	assert.Equal(t, now, doc.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectQuery("SELECT id, data, created_at, updated_at FROM documents").
		WithArgs(CollectionUsers, "missing").
		WillReturnRows(sqlmock.NewRows(documentColumns))

	_, err := store.Get(context.Background(), CollectionUsers, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryBuildsJSONBFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE collection = $1 AND data @> $2::jsonb AND data->>$3 = ANY($4) ORDER BY data->>$5 DESC, id ASC")).
		WithArgs(CollectionTimetables, `{"annee":"2025-2026"}`, "class_id", sqlmock.AnyArg(), "libelle").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("T1", []byte(`{"annee":"2025-2026","class_id":"C1"}`), now, now).
			AddRow("T2", []byte(`{"annee":"2025-2026","class_id":"C2"}`), now, now))

	docs, err := store.Query(context.Background(), CollectionTimetables, Query{
		Filters:    []Filter{Where("annee", "2025-2026"), WhereIn("class_id", []string{"C1", "C2"})},
		OrderBy:    "libelle",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "C2", docs[1].Data["class_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryRejectsOversizedIn(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	values := make([]string, MaxInValues+1)
	for i := range values {
		values[i] = "C"
	}
	_, err := store.Query(context.Background(), CollectionTimetables, Query{Filters: []Filter{WhereIn("class_id", values)}})
	assert.ErrorIs(t, err, ErrTooManyInValues)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetMerge(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectExec(regexp.QuoteMeta("DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at")).
		WithArgs(CollectionAssignments, "2025-2026__P1", `{"annee_id":"2025-2026"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DO UPDATE SET data = EXCLUDED.data, updated_at")).
		WithArgs(CollectionAssignments, "2025-2026__P1", `{}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), CollectionAssignments, "2025-2026__P1", map[string]interface{}{"annee_id": "2025-2026"}, true))
	require.NoError(t, store.Set(context.Background(), CollectionAssignments, "2025-2026__P1", nil, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewPostgresDocumentStore(db)

	mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE collection = $1 AND id = $2")).
		WithArgs(CollectionUsers, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Add(context.Background(), CollectionUsers, map[string]interface{}{"nom": "Martin"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, store.Delete(context.Background(), CollectionUsers, id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewPostgresDocumentStore(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
