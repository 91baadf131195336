package ledger

import (
	"context"
	"fmt"

	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service defines operations that record and read ledger entries.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	EntriesFor(ctx context.Context, userID, shopID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error)
	EntriesForReference(ctx context.Context, referenceID uuid.UUID) ([]models.LedgerEntry, error)
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
type RecordEntryInput struct {
	UserID        uuid.UUID
	ShopID        uuid.UUID
	Direction     enums.LedgerDirection
	Amount        decimal.Decimal
	Type          enums.LedgerEntryType
	ReferenceType enums.ReferenceType
	ReferenceID   uuid.UUID
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if input.ShopID == uuid.Nil {
		return nil, fmt.Errorf("shop id is required")
	}
	if !input.Direction.IsValid() {
		return nil, fmt.Errorf("invalid ledger direction %q", input.Direction)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("ledger amount must be positive, got %s", input.Amount)
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger entry type %q", input.Type)
	}
	if !input.ReferenceType.IsValid() {
		return nil, fmt.Errorf("invalid reference type %q", input.ReferenceType)
	}
	if input.ReferenceID == uuid.Nil {
		return nil, fmt.Errorf("reference id is required")
	}

	entry := &models.LedgerEntry{
		UserID:        input.UserID,
		ShopID:        input.ShopID,
		Direction:     input.Direction,
		Amount:        input.Amount,
		Type:          input.Type,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EntriesForReference returns every entry written against one referenced
// row, oldest first.
func (s *service) EntriesForReference(ctx context.Context, referenceID uuid.UUID) ([]models.LedgerEntry, error) {
	if referenceID == uuid.Nil {
		return nil, fmt.Errorf("reference id is required")
	}
	return s.repo.ListByReference(ctx, referenceID)
}

func (s *service) EntriesFor(ctx context.Context, userID, shopID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	if userID == uuid.Nil || shopID == uuid.Nil {
		return nil, "", fmt.Errorf("user id and shop id are required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListByUserShop(ctx, userID, shopID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}
