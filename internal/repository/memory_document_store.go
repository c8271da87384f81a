package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDocumentStore keeps documents in process memory. It backs local
// development and the service tests.
type MemoryDocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Document
	now         func() time.Time
}

// NewMemoryDocumentStore constructs an empty store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		collections: make(map[string]map[string]*Document),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source.
func (s *MemoryDocumentStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put stores a document verbatim, keeping the provided timestamps.
func (s *MemoryDocumentStore) Put(collection string, doc Document) error {
	data, err := normalize(doc.Data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	s.bucket(collection)[doc.ID] = &Document{ID: doc.ID, Data: data, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}
	return nil
}

// Get returns a copy of the document.
func (s *MemoryDocumentStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp, err := cloneDocument(doc)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Query scans the collection applying filters and ordering.
func (s *MemoryDocumentStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: value}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Document
	for _, doc := range s.collections[collection] {
		if !matchesAll(doc.Data, filters) {
			continue
		}
		cp, err := cloneDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy == "" {
			return out[i].ID < out[j].ID
		}
		a, b := stringField(out[i].Data, q.OrderBy), stringField(out[j].Data, q.OrderBy)
		if a == b {
			return out[i].ID < out[j].ID
		}
		if q.Descending {
			return a > b
		}
		return a < b
	})
	return out, nil
}

// Add stores a new document under a generated id.
func (s *MemoryDocumentStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Set replaces or merges the document payload.
func (s *MemoryDocumentStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	normalized, err := normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	bucket := s.bucket(collection)
	existing, ok := bucket[id]
	if !ok {
		bucket[id] = &Document{ID: id, Data: normalized, CreatedAt: now, UpdatedAt: now}
		return nil
	}
	if merge {
		for k, v := range normalized {
			existing.Data[k] = v
		}
	} else {
		existing.Data = normalized
	}
	existing.UpdatedAt = now
	return nil
}

// Delete removes the document. Missing documents are ignored.
func (s *MemoryDocumentStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryDocumentStore) bucket(collection string) map[string]*Document {
	bucket, ok := s.collections[collection]
	if !ok {
		bucket = make(map[string]*Document)
		s.collections[collection] = bucket
	}
	return bucket
}

func matchesAll(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		value, ok := data[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(value, f.Value) {
				return false
			}
		case OpIn:
			candidates, _ := f.Value.([]interface{})
			found := false
			for _, c := range candidates {
				if reflect.DeepEqual(value, c) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func cloneDocument(doc *Document) (Document, error) {
	data, err := normalize(doc.Data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: doc.ID, Data: data, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

// normalize deep copies data into plain JSON types.
func normalize(data map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	if data == nil {
		return out, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func normalizeValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode filter value: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode filter value: %w", err)
	}
	return out, nil
}
