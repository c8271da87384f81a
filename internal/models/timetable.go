package models

import (
	"strconv"
	"strings"
)

// Timetable is the weekly timetable of one class for one year.
type Timetable struct {
	ID           string         `json:"id"`
	Annee        string         `json:"annee"`
	ClassID      string         `json:"class_id"`
	ClassLibelle string         `json:"class_libelle,omitempty"`
	Slots        []ScheduleSlot `json:"slots"`
}

// ScheduleSlot is a single lesson in a timetable. Day runs from 1 (Monday)
// to 7.
type ScheduleSlot struct {
	Day            int    `json:"day"`
	Start          string `json:"start"`
	End            string `json:"end"`
	MatiereID      string `json:"matiere_id"`
	MatiereLibelle string `json:"matiere_libelle,omitempty"`
	Enseignant     string `json:"enseignant,omitempty"`
	Salle          string `json:"salle,omitempty"`
}

// StartMinutes returns the start time as minutes since midnight, or -1 when
// it cannot be parsed.
func (s ScheduleSlot) StartMinutes() int {
	return clockMinutes(s.Start)
}

func clockMinutes(raw string) int {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 3)
	if len(parts) < 2 {
		return -1
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	return h*60 + m
}

// Slot match reasons.
const (
	SlotMatchName    = "name"
	SlotMatchSubject = "subject"
)

// ProfessorSlot is a timetable slot attributed to a professor.
type ProfessorSlot struct {
	ScheduleSlot
	ClassID      string `json:"class_id"`
	ClassLibelle string `json:"class_libelle,omitempty"`
	MatchedBy    string `json:"matched_by"`
}
