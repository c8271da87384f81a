package repository

import (
	"context"
	"time"
)

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// InstrumentedDocumentStore records the latency of every store call.
type InstrumentedDocumentStore struct {
	next     DocumentStore
	observer queryObserver
}

// NewInstrumentedDocumentStore wraps next; a nil observer disables recording.
func NewInstrumentedDocumentStore(next DocumentStore, observer queryObserver) *InstrumentedDocumentStore {
	return &InstrumentedDocumentStore{next: next, observer: observer}
}

func (s *InstrumentedDocumentStore) observe(op, collection string, start time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveDBQuery(op+":"+collection, time.Since(start))
}

// Get delegates to the wrapped store.
func (s *InstrumentedDocumentStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	defer s.observe("get", collection, time.Now())
	return s.next.Get(ctx, collection, id)
}

// Query delegates to the wrapped store.
func (s *InstrumentedDocumentStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	defer s.observe("query", collection, time.Now())
	return s.next.Query(ctx, collection, q)
}

// Add delegates to the wrapped store.
func (s *InstrumentedDocumentStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	defer s.observe("add", collection, time.Now())
	return s.next.Add(ctx, collection, data)
}

// Set delegates to the wrapped store.
func (s *InstrumentedDocumentStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	defer s.observe("set", collection, time.Now())
	return s.next.Set(ctx, collection, id, data, merge)
}

// Delete delegates to the wrapped store.
func (s *InstrumentedDocumentStore) Delete(ctx context.Context, collection, id string) error {
	defer s.observe("delete", collection, time.Now())
	return s.next.Delete(ctx, collection, id)
}
