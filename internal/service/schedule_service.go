package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

type timetableReader interface {
	ListByYearAndClasses(ctx context.Context, yearID string, classIDs []string) ([]models.Timetable, error)
}

type assignmentFinder interface {
	Find(ctx context.Context, yearID, profID string) (*models.Assignment, error)
}

type professorFinder interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

// ScheduleService projects class timetables onto a single professor.
type ScheduleService struct {
	assignments assignmentFinder
	professors  professorFinder
	timetables  timetableReader
	logger      *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(assignments assignmentFinder, professors professorFinder, timetables timetableReader, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{assignments: assignments, professors: professors, timetables: timetables, logger: logger}
}

// ScheduleFor returns the slots the professor teaches in the year, ordered by
// day then start time. A slot belongs to the professor when its teacher name
// equals the professor's full name or when its subject is assigned to the
// professor for that class.
func (s *ScheduleService) ScheduleFor(ctx context.Context, yearID, profID string) ([]models.ProfessorSlot, error) {
	professor, err := s.professors.FindByID(ctx, profID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}

	assignment, err := s.assignments.Find(ctx, yearID, profID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return []models.ProfessorSlot{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	subjects := make(map[string]map[string]struct{}, len(assignment.Classes))
	classIDs := make([]string, 0, len(assignment.Classes))
	for _, entry := range assignment.Classes {
		if entry.ClasseID == "" {
			continue
		}
		set, ok := subjects[entry.ClasseID]
		if !ok {
			set = make(map[string]struct{}, len(entry.MatieresIDs))
			subjects[entry.ClasseID] = set
			classIDs = append(classIDs, entry.ClasseID)
		}
		for _, id := range entry.MatieresIDs {
			set[id] = struct{}{}
		}
	}
	if len(classIDs) == 0 {
		return []models.ProfessorSlot{}, nil
	}

	timetables, err := s.fetchTimetables(ctx, yearID, classIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetables")
	}

	fullName := professor.FullName()
	slots := make([]models.ProfessorSlot, 0)
	for _, timetable := range timetables {
		assigned := subjects[timetable.ClassID]
		for _, slot := range timetable.Slots {
			matchedBy := ""
			if fullName != "" && strings.TrimSpace(slot.Enseignant) == fullName {
				matchedBy = models.SlotMatchName
			} else if _, ok := assigned[slot.MatiereID]; ok {
				matchedBy = models.SlotMatchSubject
			}
			if matchedBy == "" {
				continue
			}
			slots = append(slots, models.ProfessorSlot{
				ScheduleSlot: slot,
				ClassID:      timetable.ClassID,
				ClassLibelle: timetable.ClassLibelle,
				MatchedBy:    matchedBy,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Day != slots[j].Day {
			return slots[i].Day < slots[j].Day
		}
		return slots[i].StartMinutes() < slots[j].StartMinutes()
	})
	return slots, nil
}

func (s *ScheduleService) fetchTimetables(ctx context.Context, yearID string, classIDs []string) ([]models.Timetable, error) {
	batches := chunkStrings(classIDs, repository.MaxInValues)
	results := make([][]models.Timetable, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			timetables, err := s.timetables.ListByYearAndClasses(gctx, yearID, batch)
			if err != nil {
				return err
			}
			results[i] = timetables
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Timetable
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all, nil
}

func chunkStrings(values []string, size int) [][]string {
	if size <= 0 {
		size = len(values)
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
