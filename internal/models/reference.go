package models

import "strings"

// Sections a filiere may belong to.
const (
	SectionGestion      = "Gestion"
	SectionInformatique = "Informatique"
)

// NormalizeSection maps a free-form section label onto the closed set of
// sections. It returns false for anything else.
func NormalizeSection(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "gestion":
		return SectionGestion, true
	case "informatique":
		return SectionInformatique, true
	default:
		return "", false
	}
}

// Filiere is a year-scoped study track.
type Filiere struct {
	ID             string `json:"id"`
	Libelle        string `json:"libelle"`
	Section        string `json:"section"`
	AcademicYearID string `json:"academic_year_id"`
}

// Classe is a year-scoped class of a filiere.
type Classe struct {
	ID             string `json:"id"`
	Libelle        string `json:"libelle"`
	FiliereID      string `json:"filiere_id"`
	AcademicYearID string `json:"academic_year_id"`
}

// Matiere is a year-scoped subject.
type Matiere struct {
	ID             string `json:"id"`
	Libelle        string `json:"libelle"`
	ClassID        string `json:"class_id,omitempty"`
	AcademicYearID string `json:"academic_year_id"`
}

// YearReference bundles the reference data of one academic year.
type YearReference struct {
	YearID   string    `json:"year_id"`
	Filieres []Filiere `json:"filieres"`
	Classes  []Classe  `json:"classes"`
	Matieres []Matiere `json:"matieres"`
}
