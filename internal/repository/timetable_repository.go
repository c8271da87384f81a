package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// TimetableRepository reads per-class timetables.
type TimetableRepository struct {
	store DocumentStore
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(store DocumentStore) *TimetableRepository {
	return &TimetableRepository{store: store}
}

// ListByYearAndClasses returns the timetables of the given classes. At most
// MaxInValues class ids are accepted per call.
func (r *TimetableRepository) ListByYearAndClasses(ctx context.Context, yearID string, classIDs []string) ([]models.Timetable, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	docs, err := r.store.Query(ctx, CollectionTimetables, Query{Filters: []Filter{
		Where("annee", yearID),
		WhereIn("class_id", classIDs),
	}})
	if err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	timetables := make([]models.Timetable, 0, len(docs))
	for _, doc := range docs {
		var t models.Timetable
		if err := decodeDocument(doc, &t); err != nil {
			return nil, err
		}
		t.ID = doc.ID
		timetables = append(timetables, t)
	}
	return timetables, nil
}
