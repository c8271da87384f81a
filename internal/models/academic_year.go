package models

import "time"

// AcademicYear is a school year such as "2025-2026".
type AcademicYear struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	DateDebut *time.Time `json:"date_debut,omitempty"`
	DateFin   *time.Time `json:"date_fin,omitempty"`
	Timezone  string     `json:"timezone,omitempty"`
	Active    bool       `json:"active"`
}

// DisplayLabel falls back to the id when no label was recorded.
func (y AcademicYear) DisplayLabel() string {
	if y.Label != "" {
		return y.Label
	}
	return y.ID
}

// YearSelector identifies the roster being viewed.
type YearSelector struct {
	YearID    string `json:"year_id" form:"year_id"`
	YearLabel string `json:"year_label" form:"year_label"`
}

// IsEmpty reports whether neither id nor label is set.
func (s YearSelector) IsEmpty() bool {
	return s.YearID == "" && s.YearLabel == ""
}

// Matches reports whether the selector points at the given year.
func (s YearSelector) Matches(yearID, yearLabel string) bool {
	if s.YearID != "" {
		return s.YearID == yearID
	}
	return s.YearLabel != "" && s.YearLabel == yearLabel
}
