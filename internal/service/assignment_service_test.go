package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

const year = "2025-2026"

func seedReferences(t *testing.T, f *rosterFixture) {
	t.Helper()
	f.putReference(t, repository.CollectionFilieres, "F1", map[string]interface{}{"libelle": "BTS Gestion", "section": "gestion", "academic_year_id": year})
	f.putReference(t, repository.CollectionFilieres, "F2", map[string]interface{}{"libelle": "Arts", "section": "Arts", "academic_year_id": year})
	f.putReference(t, repository.CollectionFilieres, "F9", map[string]interface{}{"libelle": "BTS Gestion", "section": "Gestion", "academic_year_id": "2024-2025"})
	f.putReference(t, repository.CollectionClasses, "C1", map[string]interface{}{"libelle": "G1", "filiere_id": "F1", "academic_year_id": year})
	f.putReference(t, repository.CollectionClasses, "C2", map[string]interface{}{"libelle": "G2", "filiere_id": "F1", "academic_year_id": year})
	f.putReference(t, repository.CollectionClasses, "C3", map[string]interface{}{"libelle": "A1", "filiere_id": "F2", "academic_year_id": year})
	f.putReference(t, repository.CollectionMatieres, "M1", map[string]interface{}{"libelle": "Comptabilité", "academic_year_id": year})
	f.putReference(t, repository.CollectionMatieres, "M2", map[string]interface{}{"libelle": "Droit", "academic_year_id": year})
}

func storedClasses(classes ...map[string]interface{}) []interface{} {
	out := make([]interface{}, len(classes))
	for i, c := range classes {
		out[i] = c
	}
	return out
}

func TestAssignmentLoadDropsStaleEntries(t *testing.T) {
	f := newRosterFixture(t)
	seedReferences(t, f)
	f.putAssignment(t, year, "P1", map[string]interface{}{
		"prof_doc_id": "P1",
		"classes": storedClasses(
			map[string]interface{}{"filiere_id": "F1", "classe_id": "C1", "classe_libelle": "G1", "matieres_ids": []interface{}{"M1"}},
			map[string]interface{}{"filiere_id": "F1", "classe_id": "C-deleted", "matieres_ids": []interface{}{"M1"}},
			map[string]interface{}{"filiere_id": "F9", "classe_id": "C2", "matieres_ids": []interface{}{"M2"}},
			map[string]interface{}{"filiere_id": "F2", "classe_id": "C3", "matieres_ids": []interface{}{"M2"}},
		),
	})

	draft, err := f.reconciler.Load(context.Background(), year, "P1")
	require.NoError(t, err)
	require.Len(t, draft, 1)
	assert.Equal(t, "C1", draft[0].ClasseID)
	assert.Equal(t, models.SectionGestion, draft[0].Section)
	assert.Equal(t, []string{"M1"}, draft[0].MatieresIDs)
}

func TestAssignmentLoadMissingRecord(t *testing.T) {
	f := newRosterFixture(t)

	draft, err := f.reconciler.Load(context.Background(), year, "P1")
	require.NoError(t, err)
	assert.NotNil(t, draft)
	assert.Empty(t, draft)
}

func TestAddDraftEntry(t *testing.T) {
	f := newRosterFixture(t)
	entry := models.DraftEntry{Section: "informatique", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M1"}}

	draft, err := f.reconciler.AddDraftEntry(nil, entry)
	require.NoError(t, err)
	require.Len(t, draft, 1)
	assert.Equal(t, models.SectionInformatique, draft[0].Section)

	_, err = f.reconciler.AddDraftEntry(draft, entry)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "classe_id")

	cases := map[string]models.DraftEntry{
		"section":      {FiliereID: "F1", ClasseID: "C2", MatieresIDs: []string{"M1"}},
		"filiere_id":   {Section: "Gestion", ClasseID: "C2", MatieresIDs: []string{"M1"}},
		"classe_id":    {Section: "Gestion", FiliereID: "F1", MatieresIDs: []string{"M1"}},
		"matieres_ids": {Section: "Gestion", FiliereID: "F1", ClasseID: "C2"},
	}
	for field, invalid := range cases {
		_, err := f.reconciler.AddDraftEntry(draft, invalid)
		require.Error(t, err, field)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		assert.Contains(t, appErr.Fields, field)
	}

	_, err = f.reconciler.AddDraftEntry(draft, models.DraftEntry{Section: "Arts", FiliereID: "F2", ClasseID: "C3", MatieresIDs: []string{"M2"}})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "section")
}

func TestSaveAssignmentDedupsAndSnapshotsLabels(t *testing.T) {
	f := newRosterFixture(t)
	seedReferences(t, f)
	f.putProfessor(t, "P1", "Martin", "Alice", date(2024, time.September, 1), nil)
	ctx := context.Background()
	created := time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)
	f.reconciler.now = func() time.Time { return created }

	saved, err := f.reconciler.Save(ctx, year, "P1", []models.DraftEntry{
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M1"}},
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C2", MatieresIDs: []string{"M2", "MX"}, MatieresLibelles: []string{"ignored", "Option"}},
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M2"}},
	})
	require.NoError(t, err)
	require.Len(t, saved.Classes, 2)
	assert.Equal(t, "C1", saved.Classes[0].ClasseID)
	assert.Equal(t, []string{"M2"}, saved.Classes[0].MatieresIDs)
	assert.Equal(t, []string{"Droit"}, saved.Classes[0].MatieresLibelles)
	assert.Equal(t, []string{"Droit", "Option"}, saved.Classes[1].MatieresLibelles)

	stored, err := f.assignments.Find(ctx, year, "P1")
	require.NoError(t, err)
	require.NotNil(t, stored.CreatedAt)
	assert.True(t, created.Equal(*stored.CreatedAt))
	assert.Equal(t, "P1", stored.ProfDocID)

	// Labels are snapshots and survive a rename of the subject.
	f.putReference(t, repository.CollectionMatieres, "M2", map[string]interface{}{"libelle": "Droit des affaires", "academic_year_id": year})
	stored, err = f.assignments.Find(ctx, year, "P1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Droit"}, stored.Classes[0].MatieresLibelles)

	updated := created.Add(24 * time.Hour)
	f.reconciler.now = func() time.Time { return updated }
	saved, err = f.reconciler.Save(ctx, year, "P1", []models.DraftEntry{
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C2", MatieresIDs: []string{"M1"}},
	})
	require.NoError(t, err)
	assert.True(t, created.Equal(*saved.CreatedAt))

	stored, err = f.assignments.Find(ctx, year, "P1")
	require.NoError(t, err)
	assert.True(t, created.Equal(*stored.CreatedAt))
	assert.True(t, updated.Equal(*stored.UpdatedAt))
	require.Len(t, stored.Classes, 1)
	assert.Equal(t, "C2", stored.Classes[0].ClasseID)
}

func TestSaveAssignmentInvalidatesOnlyAfterSuccess(t *testing.T) {
	f := newRosterFixture(t)
	seedReferences(t, f)
	f.putProfessor(t, "P1", "Martin", "Alice", date(2024, time.September, 1), nil)
	ctx := context.Background()
	key := RosterCacheKey(year, "")
	sentinel := []models.Professor{{ID: "cached"}}
	f.cache.Set(ctx, key, sentinel)

	f.store.failWrites = errStoreDown
	_, err := f.reconciler.Save(ctx, year, "P1", []models.DraftEntry{
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M1"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	cached, ok := f.cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, sentinel, cached)

	f.store.failWrites = nil
	_, err = f.reconciler.Save(ctx, year, "P1", []models.DraftEntry{
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M1"}},
	})
	require.NoError(t, err)
	_, ok = f.cache.Get(ctx, key)
	assert.False(t, ok)
}

func TestSaveAssignmentRejectsInvalidEntries(t *testing.T) {
	f := newRosterFixture(t)
	seedReferences(t, f)
	f.putProfessor(t, "P1", "Martin", "Alice", date(2024, time.September, 1), nil)
	ctx := context.Background()

	_, err := f.reconciler.Save(ctx, year, "P1", []models.DraftEntry{
		{Section: "informatique", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M1"}},
		{Section: "Arts", FiliereID: "F2", ClasseID: "C2", MatieresIDs: []string{"M1"}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "entries[1].section")

	_, err = f.reconciler.Save(ctx, year, "GHOST", []models.DraftEntry{
		{Section: "Gestion", FiliereID: "F1", ClasseID: "C1", MatieresIDs: []string{"M1"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assert.Zero(t, f.store.writes)
	_, err = f.assignments.Find(ctx, year, "GHOST")
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)
}

func TestTransferToYear(t *testing.T) {
	f := newRosterFixture(t)
	ctx := context.Background()
	f.putProfessor(t, "P1", "Martin", "Alice", date(2024, time.September, 1), map[string]interface{}{"academic_year_id": "2024-2025"})
	f.putAssignment(t, "2024-2025", "P1", map[string]interface{}{
		"prof_doc_id": "P1",
		"classes":     storedClasses(map[string]interface{}{"filiere_id": "F1", "classe_id": "C1", "matieres_ids": []interface{}{"M1"}}),
	})
	f.cache.Set(ctx, RosterCacheKey(year, ""), []models.Professor{})

	require.NoError(t, f.reconciler.TransferToYear(ctx, "P1", TransferRequest{DestYearID: year}))

	dest, err := f.assignments.Find(ctx, year, "P1")
	require.NoError(t, err)
	assert.Empty(t, dest.Classes)
	source, err := f.assignments.Find(ctx, "2024-2025", "P1")
	require.NoError(t, err)
	assert.Len(t, source.Classes, 1)
	_, ok := f.cache.Get(ctx, RosterCacheKey(year, ""))
	assert.False(t, ok)

	rows, err := f.loader.Load(ctx, year, year)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, professorIDs(rows))

	err = f.reconciler.TransferToYear(ctx, "missing", TransferRequest{DestYearID: year})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = f.reconciler.TransferToYear(ctx, "P1", TransferRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRemoveFromYearResetsMatchingMetadata(t *testing.T) {
	f := newRosterFixture(t)
	ctx := context.Background()
	f.putProfessor(t, "P1", "Martin", "Alice", date(2025, time.September, 1), map[string]interface{}{
		"academic_year_id":    year,
		"academic_year_label": year,
		"annee_scolaire":      year,
	})
	f.putAssignment(t, year, "P1", map[string]interface{}{"prof_doc_id": "P1"})

	require.NoError(t, f.reconciler.RemoveFromYear(ctx, "P1", year))

	_, err := f.assignments.Find(ctx, year, "P1")
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)

	professor, err := f.professors.FindByID(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, professor.AcademicYearID.IsUnset())
	assert.True(t, professor.AcademicYearLabel.IsUnset())
	assert.Equal(t, []string{models.YearRefUnsetValue}, professor.LegacyYearLabels)

	// Created inside the year, but cleared metadata disables the date fallback.
	rows, err := f.loader.Load(ctx, year, year)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRemoveFromYearKeepsOtherYearMetadata(t *testing.T) {
	f := newRosterFixture(t)
	ctx := context.Background()
	f.putProfessor(t, "P1", "Martin", "Alice", date(2025, time.September, 1), map[string]interface{}{"academic_year_id": "2024-2025"})
	f.putAssignment(t, year, "P1", map[string]interface{}{"prof_doc_id": "P1"})

	require.NoError(t, f.reconciler.RemoveFromYear(ctx, "P1", year))

	professor, err := f.professors.FindByID(ctx, "P1")
	require.NoError(t, err)
	value, ok := professor.AcademicYearID.Value()
	require.True(t, ok)
	assert.Equal(t, "2024-2025", value)
}

func TestTakeForYearKeepsExistingClasses(t *testing.T) {
	f := newRosterFixture(t)
	ctx := context.Background()
	f.putProfessor(t, "P1", "Martin", "Alice", date(2020, time.May, 1), map[string]interface{}{"academic_year_id": "2024-2025"})
	f.putProfessor(t, "P2", "Bernard", "Luc", date(2020, time.May, 1), map[string]interface{}{"academic_year_id": "2024-2025"})
	f.putAssignment(t, year, "P1", map[string]interface{}{
		"prof_doc_id": "P1",
		"classes":     storedClasses(map[string]interface{}{"filiere_id": "F1", "classe_id": "C1", "matieres_ids": []interface{}{"M1"}}),
	})

	taken, err := f.reconciler.TakeForYear(ctx, year, TakeForYearRequest{ProfIDs: []string{"P1", "P2", "P1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, taken)

	kept, err := f.assignments.Find(ctx, year, "P1")
	require.NoError(t, err)
	assert.Len(t, kept.Classes, 1)
	fresh, err := f.assignments.Find(ctx, year, "P2")
	require.NoError(t, err)
	assert.Empty(t, fresh.Classes)
	assert.NotNil(t, fresh.CreatedAt)
}

func TestTakeForYearChecksEveryProfessorFirst(t *testing.T) {
	f := newRosterFixture(t)
	ctx := context.Background()
	f.putProfessor(t, "P1", "Martin", "Alice", date(2020, time.May, 1), nil)

	_, err := f.reconciler.TakeForYear(ctx, year, TakeForYearRequest{ProfIDs: []string{"P1", "missing"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.store.writes)

	_, err = f.reconciler.TakeForYear(ctx, year, TakeForYearRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTakeForYearFailedWriteKeepsCache(t *testing.T) {
	f := newRosterFixture(t)
	ctx := context.Background()
	f.putProfessor(t, "P1", "Martin", "Alice", date(2020, time.May, 1), nil)
	key := RosterCacheKey(year, "")
	f.cache.Set(ctx, key, []models.Professor{{ID: "cached"}})

	f.store.failWrites = errStoreDown
	taken, err := f.reconciler.TakeForYear(ctx, year, TakeForYearRequest{ProfIDs: []string{"P1"}})
	require.Error(t, err)
	assert.Empty(t, taken)
	_, ok := f.cache.Get(ctx, key)
	assert.True(t, ok)
}
