package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

type rosterLoader interface {
	Load(ctx context.Context, yearID, yearLabel string) ([]models.Professor, error)
}

// RosterSnapshot is the roster displayed for a selection.
type RosterSnapshot struct {
	Selection models.YearSelector `json:"selection"`
	Rows      []models.Professor  `json:"rows"`
	// Stale is set on results of a load that a newer selection superseded.
	Stale bool `json:"stale"`
}

// RosterView holds the roster visible to one admin session. Only the most
// recently started selection may replace the visible state, whatever order
// the loads complete in.
type RosterView struct {
	loader  rosterLoader
	metrics *MetricsService
	logger  *zap.Logger

	mu           sync.Mutex
	generation   uint64
	requestedKey string
	visible      RosterSnapshot
	lastUsed     time.Time
}

// NewRosterView constructs an empty view.
func NewRosterView(loader rosterLoader, metrics *MetricsService, logger *zap.Logger) *RosterView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterView{loader: loader, metrics: metrics, logger: logger, visible: RosterSnapshot{Rows: []models.Professor{}}}
}

// Select loads the roster of sel. The returned snapshot always carries the
// rows of sel; it is committed as the visible state only when no newer
// selection started meanwhile, otherwise it is flagged stale.
func (v *RosterView) Select(ctx context.Context, sel models.YearSelector) (RosterSnapshot, error) {
	sel.YearID = strings.TrimSpace(sel.YearID)
	sel.YearLabel = strings.TrimSpace(sel.YearLabel)
	key := RosterCacheKey(sel.YearID, sel.YearLabel)

	v.mu.Lock()
	v.generation++
	generation := v.generation
	v.requestedKey = key
	v.lastUsed = time.Now()
	v.mu.Unlock()

	rows, err := v.loader.Load(ctx, sel.YearID, sel.YearLabel)

	v.mu.Lock()
	defer v.mu.Unlock()
	if generation != v.generation {
		v.metrics.RecordStaleDiscard()
		v.logger.Debug("discarding superseded roster load", zap.String("key", key), zap.String("latest", v.requestedKey))
		if err != nil {
			return RosterSnapshot{Selection: sel, Stale: true}, nil
		}
		return RosterSnapshot{Selection: sel, Rows: rows, Stale: true}, nil
	}
	if err != nil {
		return RosterSnapshot{}, err
	}
	v.visible = RosterSnapshot{Selection: sel, Rows: rows}
	return v.visible, nil
}

// Current returns the visible roster.
func (v *RosterView) Current() RosterSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func (v *RosterView) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastUsed
}

// RosterSessions keeps one RosterView per admin session and forgets views
// left idle longer than idleTTL.
type RosterSessions struct {
	loader  rosterLoader
	metrics *MetricsService
	logger  *zap.Logger
	idleTTL time.Duration

	mu    sync.Mutex
	views map[string]*RosterView
}

// NewRosterSessions constructs a session registry.
func NewRosterSessions(loader rosterLoader, idleTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *RosterSessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterSessions{loader: loader, metrics: metrics, logger: logger, idleTTL: idleTTL, views: make(map[string]*RosterView)}
}

// View returns the view of the session, creating it on first use.
func (s *RosterSessions) View(sessionID string) *RosterView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(time.Now())
	view, ok := s.views[sessionID]
	if !ok {
		view = NewRosterView(s.loader, s.metrics, s.logger.With(zap.String("session", sessionID)))
		view.lastUsed = time.Now()
		s.views[sessionID] = view
	}
	return view
}

func (s *RosterSessions) sweepLocked(now time.Time) {
	if s.idleTTL <= 0 {
		return
	}
	for id, view := range s.views {
		if now.Sub(view.idleSince()) > s.idleTTL {
			delete(s.views, id)
		}
	}
}
