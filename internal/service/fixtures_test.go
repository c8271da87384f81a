package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// countingStore records calls per collection and can fail every write.
type countingStore struct {
	repository.DocumentStore

	mu         sync.Mutex
	queries    map[string]int
	gets       map[string]int
	writes     int
	failWrites error
}

func newCountingStore(next repository.DocumentStore) *countingStore {
	return &countingStore{DocumentStore: next, queries: map[string]int{}, gets: map[string]int{}}
}

func (s *countingStore) Query(ctx context.Context, collection string, q repository.Query) ([]repository.Document, error) {
	s.mu.Lock()
	s.queries[collection]++
	s.mu.Unlock()
	return s.DocumentStore.Query(ctx, collection, q)
}

func (s *countingStore) Get(ctx context.Context, collection, id string) (*repository.Document, error) {
	s.mu.Lock()
	s.gets[collection]++
	s.mu.Unlock()
	return s.DocumentStore.Get(ctx, collection, id)
}

func (s *countingStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	if err := s.write(); err != nil {
		return "", err
	}
	return s.DocumentStore.Add(ctx, collection, data)
}

func (s *countingStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	if err := s.write(); err != nil {
		return err
	}
	return s.DocumentStore.Set(ctx, collection, id, data, merge)
}

func (s *countingStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.write(); err != nil {
		return err
	}
	return s.DocumentStore.Delete(ctx, collection, id)
}

func (s *countingStore) write() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	s.writes++
	return nil
}

func (s *countingStore) queryCount(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[collection]
}

func (s *countingStore) totalQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.queries {
		total += n
	}
	for _, n := range s.gets {
		total += n
	}
	return total
}

// rosterFixture wires the roster services on an in-memory store.
type rosterFixture struct {
	mem         *repository.MemoryDocumentStore
	store       *countingStore
	cache       *MemoryRosterCache
	professors  *repository.ProfessorRepository
	assignments *repository.AssignmentRepository
	loader      *RosterLoader
	reconciler  *AssignmentService
}

func newRosterFixture(t *testing.T) *rosterFixture {
	t.Helper()
	mem := repository.NewMemoryDocumentStore()
	store := newCountingStore(mem)
	cache := NewMemoryRosterCache()
	professors := repository.NewProfessorRepository(store)
	assignments := repository.NewAssignmentRepository(store)
	references := repository.NewReferenceRepository(store)
	years := repository.NewAcademicYearRepository(store)

	f := &rosterFixture{
		mem:         mem,
		store:       store,
		cache:       cache,
		professors:  professors,
		assignments: assignments,
		loader:      NewRosterLoader(professors, assignments, cache, NewYearResolver(time.UTC), nil, zap.NewNop()),
		reconciler:  NewAssignmentService(assignments, references, professors, years, cache, nil, zap.NewNop()),
	}
	f.putYear(t, "2025-2026", "2025-2026", true)
	f.putYear(t, "2024-2025", "2024-2025", false)
	return f
}

func (f *rosterFixture) putYear(t *testing.T, id, label string, active bool) {
	t.Helper()
	require.NoError(t, f.mem.Put(repository.CollectionAcademicYears, repository.Document{
		ID:   id,
		Data: map[string]interface{}{"label": label, "active": active},
	}))
}

func (f *rosterFixture) putProfessor(t *testing.T, id, nom, prenom string, created time.Time, extra map[string]interface{}) {
	t.Helper()
	data := map[string]interface{}{
		"role_key": "prof",
		"nom":      nom,
		"prenom":   prenom,
		"email":    id + "@example.org",
		"login":    id,
	}
	for k, v := range extra {
		data[k] = v
	}
	require.NoError(t, f.mem.Put(repository.CollectionUsers, repository.Document{ID: id, Data: data, CreatedAt: created}))
}

func (f *rosterFixture) putAssignment(t *testing.T, yearID, profID string, data map[string]interface{}) {
	t.Helper()
	if data == nil {
		data = map[string]interface{}{}
	}
	data["annee_id"] = yearID
	require.NoError(t, f.mem.Put(repository.CollectionAssignments, repository.Document{ID: yearID + "__" + profID, Data: data}))
}

func (f *rosterFixture) putReference(t *testing.T, collection, id string, data map[string]interface{}) {
	t.Helper()
	require.NoError(t, f.mem.Put(collection, repository.Document{ID: id, Data: data}))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
}

func professorIDs(rows []models.Professor) []string {
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}
	return ids
}
