package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// AcademicYearRepository reads academic years.
type AcademicYearRepository struct {
	store DocumentStore
}

// NewAcademicYearRepository constructs an AcademicYearRepository.
func NewAcademicYearRepository(store DocumentStore) *AcademicYearRepository {
	return &AcademicYearRepository{store: store}
}

// List returns every academic year ordered by label, newest first.
func (r *AcademicYearRepository) List(ctx context.Context) ([]models.AcademicYear, error) {
	docs, err := r.store.Query(ctx, CollectionAcademicYears, Query{OrderBy: "label", Descending: true})
	if err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	years := make([]models.AcademicYear, 0, len(docs))
	for _, doc := range docs {
		years = append(years, academicYearFromDocument(doc))
	}
	return years, nil
}

// FindByID fetches a year. It returns ErrDocumentNotFound when missing.
func (r *AcademicYearRepository) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	doc, err := r.store.Get(ctx, CollectionAcademicYears, id)
	if err != nil {
		return nil, err
	}
	year := academicYearFromDocument(*doc)
	return &year, nil
}

func academicYearFromDocument(doc Document) models.AcademicYear {
	year := models.AcademicYear{
		ID:       doc.ID,
		Label:    stringField(doc.Data, "label"),
		Timezone: stringField(doc.Data, "timezone"),
	}
	if active, ok := doc.Data["active"].(bool); ok {
		year.Active = active
	}
	if t, ok := timeField(doc.Data, "date_debut"); ok {
		year.DateDebut = &t
	}
	if t, ok := timeField(doc.Data, "date_fin"); ok {
		year.DateFin = &t
	}
	return year
}
