package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/prof-roster-api/internal/models"
)

// AccountRepository stores login identities.
type AccountRepository struct {
	store DocumentStore
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(store DocumentStore) *AccountRepository {
	return &AccountRepository{store: store}
}

// FindByEmail returns the account registered with email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	docs, err := r.store.Query(ctx, CollectionAccounts, Query{Filters: []Filter{Where("email", normalizeEmail(email))}})
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	return accountFromDocument(docs[0])
}

// Create stores a new account under account.ID.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	account.Email = normalizeEmail(account.Email)
	data, err := encodeDocument(account)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	delete(data, "id")
	data["created_at"] = timestamp(account.CreatedAt)
	if err := r.store.Set(ctx, CollectionAccounts, account.ID, data, false); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Delete removes an account. Missing accounts are ignored.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionAccounts, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func accountFromDocument(doc Document) (*models.Account, error) {
	var a models.Account
	if err := decodeDocument(doc, &a); err != nil {
		return nil, err
	}
	a.ID = doc.ID
	return &a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
