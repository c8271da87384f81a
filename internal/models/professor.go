package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ProfessorRoleKey is the normalised role marker identifying teaching staff.
const ProfessorRoleKey = "prof"

// YearRefUnsetValue is the stored form of a cleared year reference.
const YearRefUnsetValue = "__none__"

type yearRefState uint8

const (
	yearRefAbsent yearRefState = iota
	yearRefSet
	yearRefUnset
)

// YearRef is an optional academic-year reference on a professor record. It
// distinguishes a missing field, an explicit value and an explicit "unset"
// marker left behind when a professor is removed from a year.
type YearRef struct {
	state yearRefState
	value string
}

// YearRefOf returns a reference set to value.
func YearRefOf(value string) YearRef {
	if value == YearRefUnsetValue {
		return UnsetYearRef()
	}
	return YearRef{state: yearRefSet, value: value}
}

// UnsetYearRef returns the cleared marker.
func UnsetYearRef() YearRef {
	return YearRef{state: yearRefUnset}
}

// IsAbsent reports whether no value was ever recorded.
func (r YearRef) IsAbsent() bool { return r.state == yearRefAbsent }

// IsUnset reports whether the reference was explicitly cleared.
func (r YearRef) IsUnset() bool { return r.state == yearRefUnset }

// Value returns the referenced year and whether it is a real value.
func (r YearRef) Value() (string, bool) {
	if r.state != yearRefSet {
		return "", false
	}
	return r.value, true
}

// Candidate returns the comparable value of the reference. Unset references
// are candidates that never match a real year; empty strings are not
// candidates at all.
func (r YearRef) Candidate() (string, bool) {
	switch r.state {
	case yearRefSet:
		v := strings.TrimSpace(r.value)
		return v, v != ""
	case yearRefUnset:
		return YearRefUnsetValue, true
	default:
		return "", false
	}
}

// Stored returns the representation written to the document store.
func (r YearRef) Stored() (interface{}, bool) {
	switch r.state {
	case yearRefSet:
		return r.value, true
	case yearRefUnset:
		return YearRefUnsetValue, true
	default:
		return nil, false
	}
}

// MarshalJSON encodes absent references as null.
func (r YearRef) MarshalJSON() ([]byte, error) {
	v, ok := r.Stored()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes null, the unset marker or a plain string.
func (r *YearRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = YearRef{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = YearRefOf(s)
	return nil
}

// Professor is a teaching staff record stored in the users collection.
type Professor struct {
	ID     string `json:"id"`
	Numero int    `json:"numero"`

	RoleID      string `json:"role_id"`
	RoleLibelle string `json:"role_libelle"`
	RoleKey     string `json:"role_key"`

	Nom           string `json:"nom"`
	Prenom        string `json:"prenom"`
	Email         string `json:"email"`
	Login         string `json:"login"`
	Telephone     string `json:"telephone,omitempty"`
	Sexe          string `json:"sexe,omitempty"`
	DateNaissance string `json:"date_naissance,omitempty"`
	LieuNaissance string `json:"lieu_naissance,omitempty"`
	Nationalite   string `json:"nationalite,omitempty"`
	EtatCivil     string `json:"etat_civil,omitempty"`
	Adresse       string `json:"adresse,omitempty"`

	Specialite     string   `json:"specialite,omitempty"`
	Disponibilites []string `json:"disponibilites,omitempty"`
	Diplomes       []string `json:"diplomes,omitempty"`
	Competences    []string `json:"competences,omitempty"`
	Documents      []string `json:"documents,omitempty"`
	AuthUID        string   `json:"auth_uid,omitempty"`

	AcademicYearID    YearRef `json:"academic_year_id"`
	AcademicYearLabel YearRef `json:"academic_year_label"`

	// Values read from legacy field names; never written back.
	LegacyYearIDs    []string `json:"-"`
	LegacyYearLabels []string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsProfessor reports whether the record carries the teaching staff marker.
func (p Professor) IsProfessor() bool {
	return p.RoleKey == ProfessorRoleKey
}

// FullName returns "Prenom Nom" trimmed.
func (p Professor) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.Prenom) + " " + strings.TrimSpace(p.Nom))
}

// YearIDCandidates lists the non-empty id-style year references.
func (p Professor) YearIDCandidates() []string {
	return collectCandidates(p.AcademicYearID, p.LegacyYearIDs)
}

// YearLabelCandidates lists the non-empty label-style year references.
func (p Professor) YearLabelCandidates() []string {
	return collectCandidates(p.AcademicYearLabel, p.LegacyYearLabels)
}

func collectCandidates(primary YearRef, legacy []string) []string {
	var out []string
	if v, ok := primary.Candidate(); ok {
		out = append(out, v)
	}
	for _, raw := range legacy {
		if v, ok := YearRefOf(raw).Candidate(); ok {
			out = append(out, v)
		}
	}
	return out
}

// ProfessorAvailability reports whether a login/email pair is free.
type ProfessorAvailability struct {
	LoginAvailable bool `json:"login_available"`
	EmailAvailable bool `json:"email_available"`
	Checked        bool `json:"checked"`
}
