package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/pkg/export"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type scheduleProjector interface {
	ScheduleFor(ctx context.Context, yearID, profID string) ([]models.ProfessorSlot, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

var weekdayNames = map[int]string{
	1: "Lundi",
	2: "Mardi",
	3: "Mercredi",
	4: "Jeudi",
	5: "Vendredi",
	6: "Samedi",
	7: "Dimanche",
}

// ExportService renders rosters and schedules for download.
type ExportService struct {
	rosters    rosterLoader
	schedules  scheduleProjector
	professors professorFinder
	csv        tableRenderer
	pdf        tableRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(rosters rosterLoader, schedules scheduleProjector, professors professorFinder, csv, pdf tableRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{rosters: rosters, schedules: schedules, professors: professors, csv: csv, pdf: pdf, logger: logger}
}

// RosterCSV renders the roster of the selected year.
func (s *ExportService) RosterCSV(ctx context.Context, sel models.YearSelector) (*ExportFile, error) {
	rows, err := s.rosters.Load(ctx, sel.YearID, sel.YearLabel)
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Columns: []string{"Numero", "Nom", "Prenom", "Email", "Login", "Telephone", "Specialite", "Annee"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, p := range rows {
		year, _ := p.AcademicYearLabel.Value()
		if year == "" {
			year, _ = p.AcademicYearID.Value()
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(p.Numero), p.Nom, p.Prenom, p.Email, p.Login, p.Telephone, p.Specialite, year,
		})
	}
	body, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("professeurs_%s.csv", fileToken(rosterSelectorKey(sel.YearID, sel.YearLabel))),
		ContentType: "text/csv; charset=utf-8",
		Body:        body,
	}, nil
}

// SchedulePDF renders the weekly schedule of a professor.
func (s *ExportService) SchedulePDF(ctx context.Context, yearID, profID string) (*ExportFile, error) {
	slots, err := s.schedules.ScheduleFor(ctx, yearID, profID)
	if err != nil {
		return nil, err
	}
	professor, err := s.professors.FindByID(ctx, profID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}

	table := export.Table{
		Title:   fmt.Sprintf("Emploi du temps - %s - %s", professor.FullName(), yearID),
		Columns: []string{"Jour", "Debut", "Fin", "Classe", "Matiere", "Salle"},
		Rows:    make([][]string, 0, len(slots)),
	}
	for _, slot := range slots {
		subject := slot.MatiereLibelle
		if subject == "" {
			subject = slot.MatiereID
		}
		class := slot.ClassLibelle
		if class == "" {
			class = slot.ClassID
		}
		table.Rows = append(table.Rows, []string{weekdayNames[slot.Day], slot.Start, slot.End, class, subject, slot.Salle})
	}
	body, err := s.pdf.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("edt_%s_%s.pdf", fileToken(professor.Nom), fileToken(yearID)),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func fileToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "export"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
