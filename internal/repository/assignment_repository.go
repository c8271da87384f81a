package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// AssignmentRepository manages per-year professor assignments.
type AssignmentRepository struct {
	store DocumentStore
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(store DocumentStore) *AssignmentRepository {
	return &AssignmentRepository{store: store}
}

// Find fetches the assignment of a professor for a year. It returns
// ErrDocumentNotFound when none exists.
func (r *AssignmentRepository) Find(ctx context.Context, yearID, profID string) (*models.Assignment, error) {
	doc, err := r.store.Get(ctx, CollectionAssignments, models.AssignmentKey(yearID, profID))
	if err != nil {
		return nil, err
	}
	a, err := assignmentFromDocument(*doc)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByYear returns every assignment recorded for the year.
func (r *AssignmentRepository) ListByYear(ctx context.Context, yearID string) ([]models.Assignment, error) {
	docs, err := r.store.Query(ctx, CollectionAssignments, Query{Filters: []Filter{Where("annee_id", yearID)}})
	if err != nil {
		return nil, fmt.Errorf("list assignments for %s: %w", yearID, err)
	}
	assignments := make([]models.Assignment, 0, len(docs))
	for _, doc := range docs {
		a, err := assignmentFromDocument(doc)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// Upsert merges the class list of an assignment. created_at is only written
// when create is true.
func (r *AssignmentRepository) Upsert(ctx context.Context, yearID, profID string, classes []models.ClassAssignment, now time.Time, create bool) error {
	if classes == nil {
		classes = []models.ClassAssignment{}
	}
	encoded, err := encodeDocument(struct {
		Classes []models.ClassAssignment `json:"classes"`
	}{Classes: classes})
	if err != nil {
		return fmt.Errorf("encode assignment classes: %w", err)
	}
	data := map[string]interface{}{
		"annee_id":    yearID,
		"prof_doc_id": profID,
		"classes":     encoded["classes"],
		"updated_at":  timestamp(now),
	}
	if create {
		data["created_at"] = timestamp(now)
	}
	if err := r.store.Set(ctx, CollectionAssignments, models.AssignmentKey(yearID, profID), data, true); err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

// Touch makes sure an assignment exists without changing its classes. A new
// record starts with an empty class list.
func (r *AssignmentRepository) Touch(ctx context.Context, yearID, profID string, now time.Time, create bool) error {
	if create {
		return r.Upsert(ctx, yearID, profID, nil, now, true)
	}
	data := map[string]interface{}{
		"annee_id":    yearID,
		"prof_doc_id": profID,
		"updated_at":  timestamp(now),
	}
	if err := r.store.Set(ctx, CollectionAssignments, models.AssignmentKey(yearID, profID), data, true); err != nil {
		return fmt.Errorf("touch assignment: %w", err)
	}
	return nil
}

// Delete removes the assignment of a professor for a year.
func (r *AssignmentRepository) Delete(ctx context.Context, yearID, profID string) error {
	if err := r.store.Delete(ctx, CollectionAssignments, models.AssignmentKey(yearID, profID)); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func assignmentFromDocument(doc Document) (models.Assignment, error) {
	var payload struct {
		AnneeID   string                   `json:"annee_id"`
		ProfDocID string                   `json:"prof_doc_id"`
		Classes   []models.ClassAssignment `json:"classes"`
	}
	if err := decodeDocument(doc, &payload); err != nil {
		return models.Assignment{}, err
	}
	a := models.Assignment{
		ID:        doc.ID,
		AnneeID:   payload.AnneeID,
		ProfDocID: payload.ProfDocID,
		Classes:   payload.Classes,
	}
	if t, ok := timeField(doc.Data, "created_at"); ok {
		a.CreatedAt = &t
	}
	if t, ok := timeField(doc.Data, "updated_at"); ok {
		a.UpdatedAt = &t
	}
	return a, nil
}
