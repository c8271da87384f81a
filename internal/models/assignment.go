package models

import (
	"strings"
	"time"
)

const assignmentKeySeparator = "__"

// AssignmentKey builds the deterministic document key of an assignment.
func AssignmentKey(yearID, profID string) string {
	return yearID + assignmentKeySeparator + profID
}

// ProfIDFromAssignmentKey extracts the professor id suffix of a key.
func ProfIDFromAssignmentKey(key string) string {
	parts := strings.SplitN(key, assignmentKeySeparator, 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Assignment records the classes and subjects taught by one professor in one
// academic year.
type Assignment struct {
	ID        string            `json:"id"`
	AnneeID   string            `json:"annee_id"`
	ProfDocID string            `json:"prof_doc_id"`
	Classes   []ClassAssignment `json:"classes"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

// ProfessorID resolves the professor from the stored field or the key.
func (a Assignment) ProfessorID() string {
	if a.ProfDocID != "" {
		return a.ProfDocID
	}
	return ProfIDFromAssignmentKey(a.ID)
}

// ClassAssignment is one class and the subset of its subjects. Labels are
// snapshots taken when the assignment was saved.
type ClassAssignment struct {
	FiliereID        string   `json:"filiere_id"`
	FiliereLibelle   string   `json:"filiere_libelle"`
	ClasseID         string   `json:"classe_id"`
	ClasseLibelle    string   `json:"classe_libelle"`
	MatieresIDs      []string `json:"matieres_ids"`
	MatieresLibelles []string `json:"matieres_libelles"`
}

// DraftEntry is an editable class assignment before it is saved.
type DraftEntry struct {
	Section          string   `json:"section" validate:"required"`
	FiliereID        string   `json:"filiere_id" validate:"required"`
	FiliereLibelle   string   `json:"filiere_libelle"`
	ClasseID         string   `json:"classe_id" validate:"required"`
	ClasseLibelle    string   `json:"classe_libelle"`
	MatieresIDs      []string `json:"matieres_ids" validate:"required,min=1,dive,required"`
	MatieresLibelles []string `json:"matieres_libelles,omitempty"`
}

// ClassAssignment converts the draft into its persisted form.
func (d DraftEntry) ClassAssignment() ClassAssignment {
	return ClassAssignment{
		FiliereID:        d.FiliereID,
		FiliereLibelle:   d.FiliereLibelle,
		ClasseID:         d.ClasseID,
		ClasseLibelle:    d.ClasseLibelle,
		MatieresIDs:      append([]string(nil), d.MatieresIDs...),
		MatieresLibelles: append([]string(nil), d.MatieresLibelles...),
	}
}
