package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// Year metadata fields. The first entry of each list is the canonical name,
// the rest are legacy aliases still found on older records.
var (
	yearIDFields    = []string{"academic_year_id", "annee_id", "annee_scolaire_id", "academicYearId"}
	yearLabelFields = []string{"academic_year_label", "annee_scolaire", "annee_label", "academicYearLabel"}
)

// ProfessorRepository manages professor records in the users collection.
type ProfessorRepository struct {
	store DocumentStore
}

// NewProfessorRepository constructs a ProfessorRepository.
func NewProfessorRepository(store DocumentStore) *ProfessorRepository {
	return &ProfessorRepository{store: store}
}

// ListByRole returns every record carrying the given role key.
func (r *ProfessorRepository) ListByRole(ctx context.Context, roleKey string) ([]models.Professor, error) {
	docs, err := r.store.Query(ctx, CollectionUsers, Query{Filters: []Filter{Where("role_key", roleKey)}})
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	professors := make([]models.Professor, 0, len(docs))
	for _, doc := range docs {
		p, err := professorFromDocument(doc)
		if err != nil {
			return nil, err
		}
		professors = append(professors, p)
	}
	return professors, nil
}

// FindByID fetches a record by id. It returns ErrDocumentNotFound when missing.
func (r *ProfessorRepository) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	doc, err := r.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	p, err := professorFromDocument(*doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ExistsByField checks whether another user record has field == value.
func (r *ProfessorRepository) ExistsByField(ctx context.Context, field, value, excludeID string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	docs, err := r.store.Query(ctx, CollectionUsers, Query{Filters: []Filter{Where(field, value)}})
	if err != nil {
		return false, fmt.Errorf("check user %s: %w", field, err)
	}
	for _, doc := range docs {
		if doc.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// MaxNumero returns the highest sequence number among professors.
func (r *ProfessorRepository) MaxNumero(ctx context.Context) (int, error) {
	professors, err := r.ListByRole(ctx, models.ProfessorRoleKey)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, p := range professors {
		if p.Numero > max {
			max = p.Numero
		}
	}
	return max, nil
}

// Create inserts a new record and fills its generated id.
func (r *ProfessorRepository) Create(ctx context.Context, p *models.Professor) error {
	data, err := professorToData(*p)
	if err != nil {
		return err
	}
	id, err := r.store.Add(ctx, CollectionUsers, data)
	if err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	p.ID = id
	return nil
}

// Update merges the record fields into the stored document.
func (r *ProfessorRepository) Update(ctx context.Context, p *models.Professor) error {
	data, err := professorToData(*p)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, CollectionUsers, p.ID, data, true); err != nil {
		return fmt.Errorf("update professor: %w", err)
	}
	return nil
}

// SetYearMetadata overwrites both year metadata fields.
func (r *ProfessorRepository) SetYearMetadata(ctx context.Context, id string, yearID, yearLabel models.YearRef) error {
	data := map[string]interface{}{}
	if v, ok := yearID.Stored(); ok {
		data[yearIDFields[0]] = v
	}
	if v, ok := yearLabel.Stored(); ok {
		data[yearLabelFields[0]] = v
	}
	if len(data) == 0 {
		return nil
	}
	if err := r.store.Set(ctx, CollectionUsers, id, data, true); err != nil {
		return fmt.Errorf("update professor year: %w", err)
	}
	return nil
}

// UnsetYearMetadata marks every year field of the record as unset, legacy
// aliases included, so that no stale alias keeps matching.
func (r *ProfessorRepository) UnsetYearMetadata(ctx context.Context, id string) error {
	doc, err := r.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		yearIDFields[0]:    models.YearRefUnsetValue,
		yearLabelFields[0]: models.YearRefUnsetValue,
	}
	for _, key := range append(append([]string{}, yearIDFields[1:]...), yearLabelFields[1:]...) {
		if _, ok := doc.Data[key]; ok {
			data[key] = models.YearRefUnsetValue
		}
	}
	if err := r.store.Set(ctx, CollectionUsers, id, data, true); err != nil {
		return fmt.Errorf("unset professor year: %w", err)
	}
	return nil
}

// Delete removes the record permanently.
func (r *ProfessorRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionUsers, id); err != nil {
		return fmt.Errorf("delete professor: %w", err)
	}
	return nil
}

func professorFromDocument(doc Document) (models.Professor, error) {
	payload := make(map[string]interface{}, len(doc.Data))
	for k, v := range doc.Data {
		payload[k] = v
	}
	// Timestamps and numbers may come in several shapes; they are read below.
	delete(payload, "created_at")
	delete(payload, "updated_at")
	delete(payload, "numero")

	var p models.Professor
	if err := decodeDocument(Document{ID: doc.ID, Data: payload}, &p); err != nil {
		return models.Professor{}, err
	}
	p.ID = doc.ID
	p.Numero = intField(doc.Data, "numero")

	for _, key := range yearIDFields[1:] {
		if v := stringField(doc.Data, key); v != "" {
			p.LegacyYearIDs = append(p.LegacyYearIDs, v)
		}
	}
	for _, key := range yearLabelFields[1:] {
		if v := stringField(doc.Data, key); v != "" {
			p.LegacyYearLabels = append(p.LegacyYearLabels, v)
		}
	}

	p.CreatedAt = doc.CreatedAt
	if t, ok := timeField(doc.Data, "created_at"); ok {
		p.CreatedAt = t
	}
	p.UpdatedAt = doc.UpdatedAt
	if t, ok := timeField(doc.Data, "updated_at"); ok {
		p.UpdatedAt = t
	}
	return p, nil
}

func professorToData(p models.Professor) (map[string]interface{}, error) {
	data, err := encodeDocument(p)
	if err != nil {
		return nil, fmt.Errorf("encode professor: %w", err)
	}
	delete(data, "id")
	for _, key := range []string{yearIDFields[0], yearLabelFields[0]} {
		if data[key] == nil {
			delete(data, key)
		}
	}
	if p.CreatedAt.IsZero() {
		delete(data, "created_at")
	} else {
		data["created_at"] = timestamp(p.CreatedAt)
	}
	if p.UpdatedAt.IsZero() {
		delete(data, "updated_at")
	} else {
		data["updated_at"] = timestamp(p.UpdatedAt)
	}
	return data, nil
}

func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
