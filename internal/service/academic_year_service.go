package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

type academicYearRepository interface {
	List(ctx context.Context) ([]models.AcademicYear, error)
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

// AcademicYearService exposes academic years and their reference data.
type AcademicYearService struct {
	years      academicYearRepository
	references referenceReader
	logger     *zap.Logger
}

// NewAcademicYearService constructs an AcademicYearService.
func NewAcademicYearService(years academicYearRepository, references referenceReader, logger *zap.Logger) *AcademicYearService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{years: years, references: references, logger: logger}
}

// List returns the academic years, most recent label first.
func (s *AcademicYearService) List(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.years.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, nil
}

// Current returns the active year, else the first listed one.
func (s *AcademicYearService) Current(ctx context.Context) (*models.AcademicYear, error) {
	years, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no academic year configured")
	}
	for i := range years {
		if years[i].Active {
			return &years[i], nil
		}
	}
	return &years[0], nil
}

// Get returns an academic year by id.
func (s *AcademicYearService) Get(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, err := s.years.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return year, nil
}

// Reference returns the filieres, classes and subjects scoped to the year.
func (s *AcademicYearService) Reference(ctx context.Context, yearID string) (*models.YearReference, error) {
	if _, err := s.Get(ctx, yearID); err != nil {
		return nil, err
	}

	ref := &models.YearReference{YearID: yearID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		filieres, err := s.references.ListFilieres(gctx, yearID)
		ref.Filieres = filieres
		return err
	})
	g.Go(func() error {
		classes, err := s.references.ListClasses(gctx, yearID)
		ref.Classes = classes
		return err
	})
	g.Go(func() error {
		matieres, err := s.references.ListMatieres(gctx, yearID)
		ref.Matieres = matieres
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}
	return ref, nil
}
