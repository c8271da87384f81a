package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/repository"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

type accountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
}

// AccountProvisioner creates login identities on behalf of an administrator.
// The caller only receives the new identifier; no session is opened.
type AccountProvisioner struct {
	repo   accountRepository
	logger *zap.Logger
	cost   int
}

// NewAccountProvisioner constructs an AccountProvisioner.
func NewAccountProvisioner(repo accountRepository, logger *zap.Logger) *AccountProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountProvisioner{repo: repo, logger: logger, cost: bcrypt.DefaultCost}
}

// Provision registers an account and returns its identifier.
func (p *AccountProvisioner) Provision(ctx context.Context, email, password, displayName string, role models.UserRole) (string, error) {
	email = strings.TrimSpace(email)
	if _, err := p.repo.FindByEmail(ctx, email); err == nil {
		return "", appErrors.WithFields(appErrors.Clone(appErrors.ErrConflict, "email already registered"), map[string]string{"email": "already registered"})
	} else if !errors.Is(err, repository.ErrDocumentNotFound) {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.repo.Create(ctx, account); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	return account.ID, nil
}

// Revoke deletes a provisioned account. Failures are only logged.
func (p *AccountProvisioner) Revoke(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := p.repo.Delete(ctx, id); err != nil {
		p.logger.Warn("failed to revoke account", zap.String("account_id", id), zap.Error(err))
	}
}
