package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

type assignmentRepository interface {
	Find(ctx context.Context, yearID, profID string) (*models.Assignment, error)
	Upsert(ctx context.Context, yearID, profID string, classes []models.ClassAssignment, now time.Time, create bool) error
	Touch(ctx context.Context, yearID, profID string, now time.Time, create bool) error
	Delete(ctx context.Context, yearID, profID string) error
}

type referenceReader interface {
	ListFilieres(ctx context.Context, yearID string) ([]models.Filiere, error)
	ListClasses(ctx context.Context, yearID string) ([]models.Classe, error)
	ListMatieres(ctx context.Context, yearID string) ([]models.Matiere, error)
}

type assignmentProfessorStore interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	UnsetYearMetadata(ctx context.Context, id string) error
}

type yearFinder interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

// AddDraftEntryRequest carries the draft being edited plus the new entry.
type AddDraftEntryRequest struct {
	Draft []models.DraftEntry `json:"draft"`
	Entry models.DraftEntry   `json:"entry"`
}

// SaveAssignmentRequest carries the complete draft to persist.
type SaveAssignmentRequest struct {
	Entries []models.DraftEntry `json:"entries"`
}

// TransferRequest moves a professor into another academic year.
type TransferRequest struct {
	DestYearID string `json:"dest_year_id" validate:"required"`
}

// TakeForYearRequest brings existing professors into a year.
type TakeForYearRequest struct {
	ProfIDs []string `json:"prof_ids" validate:"required,min=1,dive,required"`
}

// AssignmentService reconciles per-year class and subject assignments.
type AssignmentService struct {
	assignments assignmentRepository
	references  referenceReader
	professors  assignmentProfessorStore
	years       yearFinder
	cache       RosterCache
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(assignments assignmentRepository, references referenceReader, professors assignmentProfessorStore, years yearFinder, cache RosterCache, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if cache == nil {
		cache = &NopRosterCache{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		references:  references,
		professors:  professors,
		years:       years,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Load returns the editable entries of a professor's assignment. Entries
// pointing at filieres or classes missing from the year, or at a filiere
// outside the known sections, are left out.
func (s *AssignmentService) Load(ctx context.Context, yearID, profID string) ([]models.DraftEntry, error) {
	assignment, err := s.assignments.Find(ctx, yearID, profID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return []models.DraftEntry{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	filieres, err := s.references.ListFilieres(ctx, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load filieres")
	}
	classes, err := s.references.ListClasses(ctx, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	filiereByID := make(map[string]models.Filiere, len(filieres))
	for _, f := range filieres {
		filiereByID[f.ID] = f
	}
	classByID := make(map[string]models.Classe, len(classes))
	for _, c := range classes {
		classByID[c.ID] = c
	}

	draft := make([]models.DraftEntry, 0, len(assignment.Classes))
	for _, entry := range assignment.Classes {
		filiere, ok := filiereByID[entry.FiliereID]
		if !ok {
			s.logger.Debug("skipping assignment entry with unknown filiere", zap.String("year_id", yearID), zap.String("filiere_id", entry.FiliereID))
			continue
		}
		if _, ok := classByID[entry.ClasseID]; !ok {
			s.logger.Debug("skipping assignment entry with unknown classe", zap.String("year_id", yearID), zap.String("classe_id", entry.ClasseID))
			continue
		}
		section, ok := models.NormalizeSection(filiere.Section)
		if !ok {
			continue
		}
		draft = append(draft, models.DraftEntry{
			Section:          section,
			FiliereID:        entry.FiliereID,
			FiliereLibelle:   entry.FiliereLibelle,
			ClasseID:         entry.ClasseID,
			ClasseLibelle:    entry.ClasseLibelle,
			MatieresIDs:      append([]string(nil), entry.MatieresIDs...),
			MatieresLibelles: append([]string(nil), entry.MatieresLibelles...),
		})
	}
	return draft, nil
}

// AddDraftEntry appends entry to draft. A classe may appear only once.
func (s *AssignmentService) AddDraftEntry(draft []models.DraftEntry, entry models.DraftEntry) ([]models.DraftEntry, error) {
	if err := s.validator.Struct(entry); err != nil {
		return nil, validationError(err, "invalid assignment entry")
	}
	section, ok := models.NormalizeSection(entry.Section)
	if !ok {
		return nil, fieldError("section", "must be Gestion or Informatique", "invalid assignment entry")
	}
	entry.Section = section
	for _, existing := range draft {
		if existing.ClasseID == entry.ClasseID {
			return nil, fieldError("classe_id", "already assigned", "classe already present in assignment")
		}
	}
	out := make([]models.DraftEntry, 0, len(draft)+1)
	out = append(out, draft...)
	return append(out, entry), nil
}

// Save persists draft as the assignment of the professor for the year.
func (s *AssignmentService) Save(ctx context.Context, yearID, profID string, draft []models.DraftEntry) (*models.Assignment, error) {
	for i := range draft {
		if err := s.validator.Struct(draft[i]); err != nil {
			return nil, validationError(err, "invalid assignment entry")
		}
		if _, ok := models.NormalizeSection(draft[i].Section); !ok {
			return nil, fieldError(fmt.Sprintf("entries[%d].section", i), "must be Gestion or Informatique", "invalid assignment entry")
		}
	}
	if _, err := s.requireProfessor(ctx, profID); err != nil {
		return nil, err
	}

	matieres, err := s.references.ListMatieres(ctx, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matieres")
	}
	subjectLabels := make(map[string]string, len(matieres))
	for _, m := range matieres {
		subjectLabels[m.ID] = m.Libelle
	}

	classes := make([]models.ClassAssignment, 0, len(draft))
	position := make(map[string]int, len(draft))
	for _, entry := range draft {
		ca := entry.ClassAssignment()
		ca.MatieresLibelles = snapshotLabels(ca.MatieresIDs, entry.MatieresLibelles, subjectLabels)
		if idx, ok := position[ca.ClasseID]; ok {
			classes[idx] = ca
			continue
		}
		position[ca.ClasseID] = len(classes)
		classes = append(classes, ca)
	}

	existing, err := s.assignments.Find(ctx, yearID, profID)
	create := false
	if err != nil {
		if !errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
		}
		create = true
	}

	now := s.now()
	if err := s.assignments.Upsert(ctx, yearID, profID, classes, now, create); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assignment")
	}
	s.invalidate(ctx, yearID)

	saved := &models.Assignment{
		ID:        models.AssignmentKey(yearID, profID),
		AnneeID:   yearID,
		ProfDocID: profID,
		Classes:   classes,
		UpdatedAt: &now,
	}
	if create {
		saved.CreatedAt = &now
	} else {
		saved.CreatedAt = existing.CreatedAt
	}
	return saved, nil
}

// TransferToYear makes sure the professor has an assignment record in the
// destination year. Classes of other years are not copied.
func (s *AssignmentService) TransferToYear(ctx context.Context, profID string, req TransferRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid transfer payload")
	}
	if _, err := s.requireProfessor(ctx, profID); err != nil {
		return err
	}
	if err := s.ensureAssignment(ctx, req.DestYearID, profID); err != nil {
		return err
	}
	s.invalidate(ctx, req.DestYearID)
	return nil
}

// RemoveFromYear deletes the professor's assignment for the year. When the
// professor's own year metadata points at that year it is marked unset; the
// professor record itself is kept.
func (s *AssignmentService) RemoveFromYear(ctx context.Context, profID, yearID string) error {
	if err := s.assignments.Delete(ctx, yearID, profID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove assignment")
	}

	yearLabel := s.yearLabel(ctx, yearID)
	professor, err := s.professors.FindByID(ctx, profID)
	switch {
	case errors.Is(err, repository.ErrDocumentNotFound):
		s.invalidate(ctx, yearID)
		return nil
	case err != nil:
		s.invalidate(ctx, yearID)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}

	if metadataPointsAt(*professor, yearID, yearLabel) {
		if err := s.professors.UnsetYearMetadata(ctx, profID); err != nil {
			s.invalidate(ctx, yearID)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset professor year")
		}
	}
	s.invalidate(ctx, yearID)
	return nil
}

// TakeForYear brings existing professors into the destination year, keeping
// the classes of any assignment already recorded there.
func (s *AssignmentService) TakeForYear(ctx context.Context, destYearID string, req TakeForYearRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid take for year payload")
	}

	ids := make([]string, 0, len(req.ProfIDs))
	seen := make(map[string]struct{}, len(req.ProfIDs))
	for _, raw := range req.ProfIDs {
		id := strings.TrimSpace(raw)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.requireProfessor(ctx, id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	taken := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := s.ensureAssignment(ctx, destYearID, id); err != nil {
			if len(taken) > 0 {
				s.invalidate(ctx, destYearID)
			}
			return taken, err
		}
		taken = append(taken, id)
	}
	s.invalidate(ctx, destYearID)
	return taken, nil
}

func (s *AssignmentService) ensureAssignment(ctx context.Context, yearID, profID string) error {
	_, err := s.assignments.Find(ctx, yearID, profID)
	create := false
	if err != nil {
		if !errors.Is(err, repository.ErrDocumentNotFound) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
		}
		create = true
	}
	if err := s.assignments.Touch(ctx, yearID, profID, s.now(), create); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assignment")
	}
	return nil
}

func (s *AssignmentService) requireProfessor(ctx context.Context, id string) (*models.Professor, error) {
	professor, err := s.professors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if !professor.IsProfessor() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
	}
	return professor, nil
}

func (s *AssignmentService) yearLabel(ctx context.Context, yearID string) string {
	return lookupYearLabel(ctx, s.years, yearID, s.logger)
}

func (s *AssignmentService) invalidate(ctx context.Context, yearID string) {
	invalidateYear(ctx, s.cache, yearID, s.yearLabel(ctx, yearID))
}

// lookupYearLabel returns the label of the year, or "" when it cannot be read.
func lookupYearLabel(ctx context.Context, years yearFinder, yearID string, logger *zap.Logger) string {
	if years == nil || yearID == "" {
		return ""
	}
	year, err := years.FindByID(ctx, yearID)
	if err != nil {
		if !errors.Is(err, repository.ErrDocumentNotFound) {
			logger.Warn("failed to read academic year", zap.String("year_id", yearID), zap.Error(err))
		}
		return ""
	}
	return year.Label
}

func metadataPointsAt(p models.Professor, yearID, yearLabel string) bool {
	if yearID != "" && (containsString(p.YearIDCandidates(), yearID) || containsString(p.YearLabelCandidates(), yearID)) {
		return true
	}
	return yearLabel != "" && containsString(p.YearLabelCandidates(), yearLabel)
}

func snapshotLabels(ids, provided []string, known map[string]string) []string {
	labels := make([]string, len(ids))
	for i, id := range ids {
		switch {
		case known[id] != "":
			labels[i] = known[id]
		case i < len(provided) && provided[i] != "":
			labels[i] = provided[i]
		default:
			labels[i] = id
		}
	}
	return labels
}
