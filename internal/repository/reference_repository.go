package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// ReferenceRepository reads the year-scoped filieres, classes and subjects.
// Collections are read in bulk and filtered in memory.
type ReferenceRepository struct {
	store DocumentStore
}

// NewReferenceRepository constructs a ReferenceRepository.
func NewReferenceRepository(store DocumentStore) *ReferenceRepository {
	return &ReferenceRepository{store: store}
}

// ListFilieres returns the filieres of a year.
func (r *ReferenceRepository) ListFilieres(ctx context.Context, yearID string) ([]models.Filiere, error) {
	var out []models.Filiere
	err := r.scan(ctx, CollectionFilieres, yearID, func(doc Document) error {
		var f models.Filiere
		if err := decodeDocument(doc, &f); err != nil {
			return err
		}
		f.ID = doc.ID
		out = append(out, f)
		return nil
	})
	return out, err
}

// ListClasses returns the classes of a year.
func (r *ReferenceRepository) ListClasses(ctx context.Context, yearID string) ([]models.Classe, error) {
	var out []models.Classe
	err := r.scan(ctx, CollectionClasses, yearID, func(doc Document) error {
		var c models.Classe
		if err := decodeDocument(doc, &c); err != nil {
			return err
		}
		c.ID = doc.ID
		out = append(out, c)
		return nil
	})
	return out, err
}

// ListMatieres returns the subjects of a year.
func (r *ReferenceRepository) ListMatieres(ctx context.Context, yearID string) ([]models.Matiere, error) {
	var out []models.Matiere
	err := r.scan(ctx, CollectionMatieres, yearID, func(doc Document) error {
		var m models.Matiere
		if err := decodeDocument(doc, &m); err != nil {
			return err
		}
		m.ID = doc.ID
		out = append(out, m)
		return nil
	})
	return out, err
}

func (r *ReferenceRepository) scan(ctx context.Context, collection, yearID string, fn func(Document) error) error {
	docs, err := r.store.Query(ctx, collection, Query{OrderBy: "libelle"})
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	for _, doc := range docs {
		if stringField(doc.Data, "academic_year_id") != yearID {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}
