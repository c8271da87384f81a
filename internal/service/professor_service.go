package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

type professorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	ExistsByField(ctx context.Context, field, value, excludeID string) (bool, error)
	MaxNumero(ctx context.Context) (int, error)
	Create(ctx context.Context, p *models.Professor) error
	Update(ctx context.Context, p *models.Professor) error
	Delete(ctx context.Context, id string) error
}

type professorAccounts interface {
	Provision(ctx context.Context, email, password, displayName string, role models.UserRole) (string, error)
	Revoke(ctx context.Context, id string)
}

// ProfessorDefaults are applied to every professor created through the API.
type ProfessorDefaults struct {
	RoleID          string
	RoleLabel       string
	DefaultPassword string
}

// ProfessorPayload holds the editable fields of a professor.
type ProfessorPayload struct {
	Nom            string   `json:"nom" validate:"required,max=100"`
	Prenom         string   `json:"prenom" validate:"required,max=100"`
	Email          string   `json:"email" validate:"required,email"`
	Login          string   `json:"login" validate:"required,min=3,max=64"`
	Telephone      string   `json:"telephone" validate:"omitempty,max=30"`
	Sexe           string   `json:"sexe" validate:"omitempty,oneof=M F"`
	DateNaissance  string   `json:"date_naissance" validate:"omitempty,datetime=2006-01-02"`
	LieuNaissance  string   `json:"lieu_naissance" validate:"omitempty,max=100"`
	Nationalite    string   `json:"nationalite" validate:"omitempty,max=60"`
	EtatCivil      string   `json:"etat_civil" validate:"omitempty,max=30"`
	Adresse        string   `json:"adresse" validate:"omitempty,max=255"`
	Specialite     string   `json:"specialite" validate:"omitempty,max=100"`
	Disponibilites []string `json:"disponibilites" validate:"omitempty,dive,required"`
	Diplomes       []string `json:"diplomes" validate:"omitempty,dive,required"`
	Competences    []string `json:"competences" validate:"omitempty,dive,required"`
	Documents      []string `json:"documents" validate:"omitempty,dive,required"`
}

// CreateProfessorRequest is the payload of the creation form.
type CreateProfessorRequest struct {
	ProfessorPayload
	Password       string `json:"password" validate:"omitempty,min=6"`
	AcademicYearID string `json:"academic_year_id"`
}

// UpdateProfessorRequest is the payload of the edit form. A nil
// AcademicYearID keeps the current year metadata.
type UpdateProfessorRequest struct {
	ProfessorPayload
	AcademicYearID *string `json:"academic_year_id"`
}

// ProfessorService manages professor records.
type ProfessorService struct {
	repo      professorRepository
	years     yearFinder
	accounts  professorAccounts
	cache     RosterCache
	defaults  ProfessorDefaults
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewProfessorService constructs a ProfessorService.
func NewProfessorService(repo professorRepository, years yearFinder, accounts professorAccounts, cache RosterCache, defaults ProfessorDefaults, validate *validator.Validate, logger *zap.Logger) *ProfessorService {
	if cache == nil {
		cache = &NopRosterCache{}
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.RoleID == "" {
		defaults.RoleID = models.ProfessorRoleKey
	}
	return &ProfessorService{
		repo:      repo,
		years:     years,
		accounts:  accounts,
		cache:     cache,
		defaults:  defaults,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a professor by id.
func (s *ProfessorService) Get(ctx context.Context, id string) (*models.Professor, error) {
	professor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if !professor.IsProfessor() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
	}
	return professor, nil
}

// Create registers a professor, provisions the login account and records the
// selected academic year on the new record.
func (s *ProfessorService) Create(ctx context.Context, req CreateProfessorRequest) (*models.Professor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid professor payload")
	}
	password := req.Password
	if password == "" {
		password = s.defaults.DefaultPassword
	}
	if password == "" {
		return nil, fieldError("password", "is required", "invalid professor payload")
	}
	if err := s.ensureUnique(ctx, req.Login, req.Email, ""); err != nil {
		return nil, err
	}

	yearID, yearLabel, err := s.resolveYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	numero, err := s.repo.MaxNumero(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute professor number")
	}

	professor := &models.Professor{
		Numero:            numero + 1,
		RoleID:            s.defaults.RoleID,
		RoleLibelle:       s.defaults.RoleLabel,
		RoleKey:           models.ProfessorRoleKey,
		AcademicYearID:    yearID,
		AcademicYearLabel: yearLabel,
	}
	applyPayload(professor, req.ProfessorPayload)

	uid, err := s.accounts.Provision(ctx, professor.Email, password, professor.FullName(), models.RoleProfessor)
	if err != nil {
		return nil, err
	}
	professor.AuthUID = uid

	now := s.now()
	professor.CreatedAt = now
	professor.UpdatedAt = now
	if err := s.repo.Create(ctx, professor); err != nil {
		s.accounts.Revoke(ctx, uid)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create professor")
	}

	s.invalidateFor(ctx, *professor)
	return professor, nil
}

// Update modifies the editable fields of a professor.
func (s *ProfessorService) Update(ctx context.Context, id string, req UpdateProfessorRequest) (*models.Professor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid professor payload")
	}
	professor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.Login, req.Email, id); err != nil {
		return nil, err
	}

	applyPayload(professor, req.ProfessorPayload)
	if req.AcademicYearID != nil {
		yearID, yearLabel, err := s.resolveYear(ctx, *req.AcademicYearID)
		if err != nil {
			return nil, err
		}
		if !yearID.IsAbsent() {
			professor.AcademicYearID = yearID
			professor.AcademicYearLabel = yearLabel
		}
	}
	professor.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, professor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update professor")
	}

	// Assignments can list the professor in any year, not only the one
	// named by the metadata.
	s.cache.Clear(ctx)
	return professor, nil
}

// Delete permanently removes a professor whatever the year.
func (s *ProfessorService) Delete(ctx context.Context, id string) error {
	professor, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete professor")
	}
	s.accounts.Revoke(ctx, professor.AuthUID)
	s.cache.Clear(ctx)
	return nil
}

// CheckAvailability reports whether login and email are still free. Store
// failures never surface; the result is then marked unchecked.
func (s *ProfessorService) CheckAvailability(ctx context.Context, login, email, excludeID string) models.ProfessorAvailability {
	result := models.ProfessorAvailability{LoginAvailable: true, EmailAvailable: true}
	taken, err := s.repo.ExistsByField(ctx, "login", login, excludeID)
	if err != nil {
		s.logger.Warn("login availability check failed", zap.Error(err))
		return result
	}
	result.LoginAvailable = !taken
	taken, err = s.repo.ExistsByField(ctx, "email", email, excludeID)
	if err != nil {
		s.logger.Warn("email availability check failed", zap.Error(err))
		return models.ProfessorAvailability{LoginAvailable: true, EmailAvailable: true}
	}
	result.EmailAvailable = !taken
	result.Checked = true
	return result
}

func (s *ProfessorService) ensureUnique(ctx context.Context, login, email, excludeID string) error {
	fields := map[string]string{}
	taken, err := s.repo.ExistsByField(ctx, "login", login, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify login uniqueness")
	}
	if taken {
		fields["login"] = "already used"
	}
	taken, err = s.repo.ExistsByField(ctx, "email", email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify email uniqueness")
	}
	if taken {
		fields["email"] = "already used"
	}
	if len(fields) > 0 {
		return appErrors.WithFields(appErrors.Clone(appErrors.ErrConflict, "professor already exists"), fields)
	}
	return nil
}

func (s *ProfessorService) resolveYear(ctx context.Context, yearID string) (models.YearRef, models.YearRef, error) {
	yearID = strings.TrimSpace(yearID)
	if yearID == "" {
		return models.YearRef{}, models.YearRef{}, nil
	}
	year, err := s.years.FindByID(ctx, yearID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return models.YearRef{}, models.YearRef{}, fieldError("academic_year_id", "unknown academic year", "invalid professor payload")
		}
		return models.YearRef{}, models.YearRef{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return models.YearRefOf(year.ID), models.YearRefOf(year.DisplayLabel()), nil
}

// invalidateFor drops the cached rosters the professor may appear in. A
// record without year metadata can match any year by its creation date, so
// every roster is dropped.
func (s *ProfessorService) invalidateFor(ctx context.Context, p models.Professor) {
	id, hasID := p.AcademicYearID.Value()
	label, hasLabel := p.AcademicYearLabel.Value()
	if !hasID && !hasLabel && len(p.LegacyYearIDs) == 0 && len(p.LegacyYearLabels) == 0 {
		s.cache.Clear(ctx)
		return
	}
	if hasID {
		invalidateYear(ctx, s.cache, id, label)
	} else if hasLabel {
		invalidateYear(ctx, s.cache, "", label)
	}
	for _, legacy := range p.LegacyYearIDs {
		invalidateYear(ctx, s.cache, legacy, "")
	}
	for _, legacy := range p.LegacyYearLabels {
		invalidateYear(ctx, s.cache, "", legacy)
	}
}

func applyPayload(p *models.Professor, payload ProfessorPayload) {
	p.Nom = strings.TrimSpace(payload.Nom)
	p.Prenom = strings.TrimSpace(payload.Prenom)
	p.Email = strings.TrimSpace(payload.Email)
	p.Login = strings.TrimSpace(payload.Login)
	p.Telephone = strings.TrimSpace(payload.Telephone)
	p.Sexe = payload.Sexe
	p.DateNaissance = payload.DateNaissance
	p.LieuNaissance = strings.TrimSpace(payload.LieuNaissance)
	p.Nationalite = strings.TrimSpace(payload.Nationalite)
	p.EtatCivil = strings.TrimSpace(payload.EtatCivil)
	p.Adresse = strings.TrimSpace(payload.Adresse)
	p.Specialite = strings.TrimSpace(payload.Specialite)
	p.Disponibilites = payload.Disponibilites
	p.Diplomes = payload.Diplomes
	p.Competences = payload.Competences
	p.Documents = payload.Documents
}
