package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Collection names used by the application.
const (
	CollectionUsers         = "users"
	CollectionAcademicYears = "annees_scolaires"
	CollectionAssignments   = "affectations_professeurs"
	CollectionFilieres      = "filieres"
	CollectionClasses       = "classes"
	CollectionMatieres      = "matieres"
	CollectionTimetables    = "edts"
	CollectionAccounts      = "accounts"
)

// MaxInValues is the largest value list accepted by an "in" filter.
const MaxInValues = 10

// ErrDocumentNotFound is returned when a document id does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// ErrTooManyInValues is returned when an "in" filter exceeds MaxInValues.
var ErrTooManyInValues = fmt.Errorf("in filter accepts at most %d values", MaxInValues)

// Document is a stored JSON object with store-managed timestamps.
type Document struct {
	ID        string
	Data      map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FilterOp is a query operator.
type FilterOp string

const (
	OpEqual FilterOp = "=="
	OpIn    FilterOp = "in"
)

// Filter restricts a query on a top-level field.
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// Where builds an equality filter.
func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// WhereIn builds a set-membership filter.
func WhereIn(field string, values []string) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// Query describes a collection query.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
}

// DocumentStore is the persistence contract of the application.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error
	Delete(ctx context.Context, collection, id string) error
}

func validateQuery(q Query) error {
	for _, f := range q.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return errors.New("filter field is required")
		}
		switch f.Op {
		case OpEqual:
		case OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return fmt.Errorf("in filter on %s requires a string list", f.Field)
			}
			if len(values) > MaxInValues {
				return ErrTooManyInValues
			}
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return nil
}

// decodeDocument maps a document payload onto dest through its JSON tags.
func decodeDocument(doc Document, dest interface{}) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}

// encodeDocument turns a tagged struct into a document payload.
func encodeDocument(src interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	data := make(map[string]interface{})
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func stringField(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// timeField reads an RFC 3339 string or epoch milliseconds.
func timeField(data map[string]interface{}, key string) (time.Time, bool) {
	switch v := data[key].(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case time.Time:
		return v, true
	}
	return time.Time{}, false
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
