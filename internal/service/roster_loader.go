package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
	"github.com/noah-isme/prof-roster-api/pkg/logger"
)

type professorReader interface {
	ListByRole(ctx context.Context, roleKey string) ([]models.Professor, error)
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

type assignmentIndex interface {
	ListByYear(ctx context.Context, yearID string) ([]models.Assignment, error)
}

// RosterLoader resolves the professors belonging to an academic year and
// caches the result per year selector.
type RosterLoader struct {
	professors  professorReader
	assignments assignmentIndex
	cache       RosterCache
	resolver    YearResolver
	metrics     *MetricsService
	logger      *zap.Logger
	flight      singleflight.Group
}

// NewRosterLoader constructs a RosterLoader. A nil cache disables caching.
func NewRosterLoader(professors professorReader, assignments assignmentIndex, cache RosterCache, resolver YearResolver, metrics *MetricsService, logger *zap.Logger) *RosterLoader {
	if cache == nil {
		cache = &NopRosterCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterLoader{
		professors:  professors,
		assignments: assignments,
		cache:       cache,
		resolver:    resolver,
		metrics:     metrics,
		logger:      logger,
	}
}

// Load returns the roster of the year, sorted by surname then first name.
// Cached rosters are returned as-is without touching the store. Concurrent
// loads of the same selector share one resolution unless the cache entry was
// invalidated in between; a resolution overtaken by an invalidation is
// returned to its callers but never cached.
func (l *RosterLoader) Load(ctx context.Context, yearID, yearLabel string) ([]models.Professor, error) {
	yearID = strings.TrimSpace(yearID)
	yearLabel = strings.TrimSpace(yearLabel)
	key := RosterCacheKey(yearID, yearLabel)

	epoch := l.cache.Epoch(key)
	if rows, ok := l.cache.Get(ctx, key); ok {
		l.metrics.RecordCacheLookup(true)
		return rows, nil
	}
	l.metrics.RecordCacheLookup(false)

	// The shared resolution outlives any single caller's request.
	work := context.WithoutCancel(ctx)
	ch := l.flight.DoChan(key+"@"+strconv.FormatUint(epoch, 10), func() (interface{}, error) {
		start := time.Now()
		rows, err := l.resolve(work, yearID, yearLabel)
		l.metrics.ObserveRosterLoad(err, time.Since(start))
		if err != nil {
			return nil, err
		}
		if !l.cache.SetIfCurrent(work, key, rows, epoch) {
			logger.ForRequest(work, l.logger).Debug("roster invalidated during load, result not cached", zap.String("key", key))
		}
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Professor), nil
	}
}

func (l *RosterLoader) resolve(ctx context.Context, yearID, yearLabel string) ([]models.Professor, error) {
	if yearID == "" && yearLabel == "" {
		return []models.Professor{}, nil
	}

	all, err := l.professors.ListByRole(ctx, models.ProfessorRoleKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professors")
	}
	byID := make(map[string]models.Professor, len(all))
	members := make(map[string]models.Professor)
	for _, p := range all {
		byID[p.ID] = p
		if l.resolver.BelongsToYear(p, yearID, yearLabel) {
			members[p.ID] = p
		}
	}

	if yearID != "" {
		assignments, err := l.assignments.ListByYear(ctx, yearID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		}
		for _, a := range assignments {
			profID := a.ProfessorID()
			if profID == "" {
				continue
			}
			if _, ok := members[profID]; ok {
				continue
			}
			if p, ok := byID[profID]; ok {
				members[profID] = p
				continue
			}
			p, err := l.professors.FindByID(ctx, profID)
			if err != nil {
				if errors.Is(err, repository.ErrDocumentNotFound) {
					logger.ForRequest(ctx, l.logger).Debug("assignment references missing professor", zap.String("year_id", yearID), zap.String("prof_id", profID))
					continue
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned professor")
			}
			if p.IsProfessor() {
				members[profID] = *p
			}
		}
	}

	rows := make([]models.Professor, 0, len(members))
	for _, p := range members {
		rows = append(rows, p)
	}
	SortRoster(rows)
	return rows, nil
}

// SortRoster orders professors by surname then first name using French
// collation, ignoring case and diacritics.
func SortRoster(rows []models.Professor) {
	col := collate.New(language.French, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := col.CompareString(strings.TrimSpace(rows[i].Nom), strings.TrimSpace(rows[j].Nom)); c != 0 {
			return c < 0
		}
		if c := col.CompareString(strings.TrimSpace(rows[i].Prenom), strings.TrimSpace(rows[j].Prenom)); c != 0 {
			return c < 0
		}
		return rows[i].ID < rows[j].ID
	})
}
