package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/internal/balances"
	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/payments"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
)

type transactionResponse struct {
	ID               uuid.UUID       `json:"id"`
	ShopID           uuid.UUID       `json:"shop_id"`
	FarmerID         uuid.UUID       `json:"farmer_id"`
	BuyerID          uuid.UUID       `json:"buyer_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	FarmerEarning    decimal.Decimal `json:"farmer_earning"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toTransactionResponse(tx *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:               tx.ID,
		ShopID:           tx.ShopID,
		FarmerID:         tx.FarmerID,
		BuyerID:          tx.BuyerID,
		ProductID:        tx.ProductID,
		Quantity:         tx.Quantity,
		UnitPrice:        tx.UnitPrice,
		CommissionRate:   tx.CommissionRate,
		TotalAmount:      tx.TotalAmount,
		CommissionAmount: tx.CommissionAmount,
		FarmerEarning:    tx.FarmerEarning,
		CreatedAt:        tx.CreatedAt,
	}
}

type paymentResponse struct {
	ID              uuid.UUID       `json:"id"`
	ShopID          uuid.UUID       `json:"shop_id"`
	PayerRole       string          `json:"payer_role"`
	PayeeRole       string          `json:"payee_role"`
	CounterpartyID  *uuid.UUID      `json:"counterparty_id,omitempty"`
	TransactionID   *uuid.UUID      `json:"transaction_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	Method          string          `json:"method"`
	Status          string          `json:"status"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toPaymentResponse(p *models.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		ShopID:          p.ShopID,
		PayerRole:       p.PayerRole.String(),
		PayeeRole:       p.PayeeRole.String(),
		CounterpartyID:  p.CounterpartyID,
		TransactionID:   p.TransactionID,
		Amount:          p.Amount,
		AllocatedAmount: p.AllocatedAmount,
		Method:          p.Method.String(),
		Status:          p.Status.String(),
		CancelledAt:     p.CancelledAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

type allocationBreakdown struct {
	ToExpenses     decimal.Decimal `json:"to_expenses"`
	ToTransactions decimal.Decimal `json:"to_transactions"`
	Unallocated    decimal.Decimal `json:"unallocated"`
}

func toAllocationBreakdown(result payments.AllocationResult) allocationBreakdown {
	return allocationBreakdown{
		ToExpenses:     result.ToExpenses,
		ToTransactions: result.ToTransactions,
		Unallocated:    result.Unallocated,
	}
}

type paymentAllocationResponse struct {
	ID              uuid.UUID       `json:"id"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

type expenseSettlementResponse struct {
	ID        uuid.UUID       `json:"id"`
	ExpenseID uuid.UUID       `json:"expense_id"`
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type paymentDetailResponse struct {
	paymentResponse
	Allocations []paymentAllocationResponse `json:"allocations"`
	Settlements []expenseSettlementResponse `json:"expense_settlements"`
}

func toPaymentDetailResponse(detail *payments.PaymentDetail) paymentDetailResponse {
	resp := paymentDetailResponse{
		paymentResponse: toPaymentResponse(&detail.Payment),
		Allocations:     make([]paymentAllocationResponse, 0, len(detail.Allocations)),
		Settlements:     make([]expenseSettlementResponse, 0, len(detail.Settlements)),
	}
	for _, alloc := range detail.Allocations {
		resp.Allocations = append(resp.Allocations, paymentAllocationResponse{
			ID:              alloc.ID,
			TransactionID:   alloc.TransactionID,
			AllocatedAmount: alloc.AllocatedAmount,
			CreatedAt:       alloc.CreatedAt,
		})
	}
	for _, settlement := range detail.Settlements {
		resp.Settlements = append(resp.Settlements, expenseSettlementResponse{
			ID:        settlement.ID,
			ExpenseID: settlement.ExpenseID,
			PaymentID: settlement.PaymentID,
			Amount:    settlement.Amount,
			CreatedAt: settlement.CreatedAt,
		})
	}
	return resp
}

type expenseResponse struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	ShopID      uuid.UUID       `json:"shop_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toExpenseResponse(e *models.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		ShopID:      e.ShopID,
		Amount:      e.Amount,
		Description: e.Description,
		Status:      e.Status.String(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

type pendingExpenseResponse struct {
	expenseResponse
	Settled   decimal.Decimal `json:"settled"`
	Remaining decimal.Decimal `json:"remaining"`
}

func toPendingExpenseResponse(pending expenses.PendingExpense) pendingExpenseResponse {
	return pendingExpenseResponse{
		expenseResponse: toExpenseResponse(&pending.Expense),
		Settled:         pending.Settled,
		Remaining:       pending.Remaining,
	}
}

type ledgerEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	ShopID        uuid.UUID       `json:"shop_id"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   uuid.UUID       `json:"reference_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toLedgerEntryResponse(entry *models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:            entry.ID,
		UserID:        entry.UserID,
		ShopID:        entry.ShopID,
		Direction:     string(entry.Direction),
		Amount:        entry.Amount,
		Type:          string(entry.Type),
		ReferenceType: string(entry.ReferenceType),
		ReferenceID:   entry.ReferenceID,
		CreatedAt:     entry.CreatedAt,
	}
}

// balanceResponse reports balance as seen from the user's side: positive
// means the shop owes the user, negative means the user owes the shop. A
// buyer who still owes on collections therefore shows a negative balance.
type balanceResponse struct {
	UserID           uuid.UUID       `json:"user_id"`
	ShopID           uuid.UUID       `json:"shop_id"`
	Balance          decimal.Decimal `json:"balance"`
	FarmerReceivable decimal.Decimal `json:"farmer_receivable"`
	ExpenseCredits   decimal.Decimal `json:"expense_credits"`
	BuyerOutstanding decimal.Decimal `json:"buyer_outstanding"`
	Version          int64           `json:"version"`
	LastUpdated      time.Time       `json:"last_updated"`
}

func toBalanceResponse(view *balances.BalanceView) balanceResponse {
	return balanceResponse{
		UserID:           view.UserID,
		ShopID:           view.ShopID,
		Balance:          view.Balance,
		FarmerReceivable: view.FarmerReceivable,
		ExpenseCredits:   view.ExpenseCredits,
		BuyerOutstanding: view.BuyerOutstanding,
		Version:          view.Version,
		LastUpdated:      view.LastUpdated,
	}
}

type listResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}
