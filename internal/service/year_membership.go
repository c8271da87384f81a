package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// YearResolver decides whether a professor record belongs to an academic
// year. Year metadata on the record wins; the creation date is only
// consulted for records that carry no year metadata at all.
type YearResolver struct {
	loc *time.Location
}

// NewYearResolver builds a resolver computing date bounds in loc.
func NewYearResolver(loc *time.Location) YearResolver {
	if loc == nil {
		loc = time.UTC
	}
	return YearResolver{loc: loc}
}

// BelongsToYear applies the resolver with UTC date bounds.
func BelongsToYear(p models.Professor, yearID, yearLabel string) bool {
	return NewYearResolver(time.UTC).BelongsToYear(p, yearID, yearLabel)
}

// BelongsToYear reports whether p is a member of the year.
func (r YearResolver) BelongsToYear(p models.Professor, yearID, yearLabel string) bool {
	yearID = strings.TrimSpace(yearID)
	yearLabel = strings.TrimSpace(yearLabel)
	if yearID == "" && yearLabel == "" {
		return false
	}

	ids := p.YearIDCandidates()
	if yearID != "" && containsString(ids, yearID) {
		return true
	}
	labels := p.YearLabelCandidates()
	if yearLabel != "" && containsString(labels, yearLabel) {
		return true
	}
	if len(ids) > 0 || len(labels) > 0 {
		return false
	}

	start, end, ok := r.YearBounds(yearLabel)
	if !ok || p.CreatedAt.IsZero() {
		return false
	}
	created := p.CreatedAt
	return !created.Before(start) && !created.After(end)
}

// YearBounds parses "YYYY-YYYY" and returns [Aug 1 of the first year,
// Jul 31 23:59:59.999 of the second year].
func (r YearResolver) YearBounds(label string) (time.Time, time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(label), "-")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	left, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return time.Time{}, time.Time{}, false
	}
	right, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 || right != left+1 {
		return time.Time{}, time.Time{}, false
	}
	start := time.Date(left, time.August, 1, 0, 0, 0, 0, r.loc)
	end := time.Date(right, time.July, 31, 23, 59, 59, int(999*time.Millisecond), r.loc)
	return start, end, true
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
