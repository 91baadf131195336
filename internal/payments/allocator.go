package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/metrics"
)

// AllocationResult summarizes how one payment was matched.
type AllocationResult struct {
	ToExpenses     decimal.Decimal
	ToTransactions decimal.Decimal
	Unallocated    decimal.Decimal
}

// allocator matches a paid payment against the counterparty's open items.
// Shop-to-user payments consume pending expenses first, then transactions
// oldest-first; user-to-shop payments pay down transactions oldest-first.
// All repos must be bound to the same database transaction.
type allocator struct {
	payments     Repository
	transactions transactions.Repository
	expenses     expenses.Repository
	ledger       ledger.Service
	metrics      *metrics.SettlementMetrics
}

// apply is idempotent: the amount already matched by earlier (possibly
// interrupted) runs is subtracted before anything new is written, so
// re-running after a crash never double-allocates.
func (a *allocator) apply(ctx context.Context, payment *models.Payment) (AllocationResult, error) {
	result := AllocationResult{
		ToExpenses:     decimal.Zero,
		ToTransactions: decimal.Zero,
		Unallocated:    decimal.Zero,
	}

	if payment.CounterpartyID == nil {
		return result, pkgerrors.New(pkgerrors.CodeInsufficientContext,
			"payment has no counterparty to allocate against")
	}
	counterparty := *payment.CounterpartyID

	priorAllocated, err := a.payments.SumAllocations(ctx, payment.ID)
	if err != nil {
		return result, err
	}
	priorSettled, err := a.expenses.SumSettlementsByPayment(ctx, payment.ID)
	if err != nil {
		return result, err
	}

	remaining := payment.Amount.Sub(priorAllocated).Sub(priorSettled)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return result, a.payments.UpdateAllocatedAmount(ctx, payment.ID, priorAllocated.Add(priorSettled))
	}

	switch {
	case payment.PayerRole == enums.PartyRoleShop && payment.PayeeRole == enums.PartyRoleFarmer:
		remaining, err = a.consumeExpenses(ctx, payment, counterparty, remaining, &result)
		if err != nil {
			return result, err
		}
		remaining, err = a.payTransactions(ctx, payment, counterparty, enums.PartyRoleFarmer, remaining, &result)
		if err != nil {
			return result, err
		}

	case payment.PayerRole == enums.PartyRoleShop && payment.PayeeRole == enums.PartyRoleBuyer:
		remaining, err = a.consumeExpenses(ctx, payment, counterparty, remaining, &result)
		if err != nil {
			return result, err
		}

	case payment.PayerRole == enums.PartyRoleBuyer && payment.PayeeRole == enums.PartyRoleShop:
		remaining, err = a.payTransactions(ctx, payment, counterparty, enums.PartyRoleBuyer, remaining, &result)
		if err != nil {
			return result, err
		}

	case payment.PayerRole == enums.PartyRoleFarmer && payment.PayeeRole == enums.PartyRoleShop:
		// a farmer returning money to the shop stays unallocated bookkeeping

	default:
		return result, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unsupported payment direction %s to %s", payment.PayerRole, payment.PayeeRole))
	}

	if remaining.IsPositive() {
		result.Unallocated = remaining

		// Only the amount newly stranded by this run is appended; earlier
		// runs already ledgered their share, so a re-run stays a no-op.
		recorded, err := a.unallocatedRecorded(ctx, payment.ID)
		if err != nil {
			return result, err
		}
		newlyStranded := remaining.Sub(recorded)
		if newlyStranded.IsPositive() {
			if _, err := a.ledger.RecordEntry(ctx, ledger.RecordEntryInput{
				UserID:        counterparty,
				ShopID:        payment.ShopID,
				Direction:     a.entryDirection(payment),
				Amount:        newlyStranded,
				Type:          enums.LedgerEntryTypePaymentUnallocated,
				ReferenceType: enums.ReferenceTypePayment,
				ReferenceID:   payment.ID,
			}); err != nil {
				return result, err
			}
			unallocated, _ := newlyStranded.Float64()
			a.metrics.AddUnallocatedAmount(unallocated)
		}
	}

	matched := payment.Amount.Sub(result.Unallocated)
	if err := a.payments.UpdateAllocatedAmount(ctx, payment.ID, matched); err != nil {
		return result, err
	}
	return result, nil
}

// unallocatedRecorded sums the payment_unallocated entries already written
// for the payment by earlier allocation runs.
func (a *allocator) unallocatedRecorded(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	entries, err := a.ledger.EntriesForReference(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, entry := range entries {
		if entry.Type == enums.LedgerEntryTypePaymentUnallocated {
			total = total.Add(entry.Amount)
		}
	}
	return total, nil
}

// consumeExpenses settles the counterparty's pending expenses oldest-first.
func (a *allocator) consumeExpenses(ctx context.Context, payment *models.Payment, counterparty uuid.UUID, remaining decimal.Decimal, result *AllocationResult) (decimal.Decimal, error) {
	if payment.TransactionID != nil {
		// a payment pinned to one sale never touches expenses
		return remaining, nil
	}

	pending, err := a.expenses.ListPendingFIFO(ctx, counterparty, payment.ShopID)
	if err != nil {
		return remaining, err
	}
	if len(pending) == 0 {
		return remaining, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, expense := range pending {
		ids = append(ids, expense.ID)
	}
	settled, err := a.expenses.SettledAmounts(ctx, ids)
	if err != nil {
		return remaining, err
	}

	for _, expense := range pending {
		if !remaining.IsPositive() {
			break
		}
		open := expense.Amount.Sub(settled[expense.ID])
		if !open.IsPositive() {
			continue
		}

		take := decimal.Min(open, remaining)
		if err := a.expenses.CreateSettlement(ctx, &models.ExpenseSettlement{
			ExpenseID: expense.ID,
			PaymentID: payment.ID,
			Amount:    take,
		}); err != nil {
			return remaining, err
		}
		if take.Equal(open) {
			if err := a.expenses.MarkSettled(ctx, expense.ID); err != nil {
				return remaining, err
			}
		}
		if _, err := a.ledger.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:        counterparty,
			ShopID:        payment.ShopID,
			Direction:     enums.LedgerDirectionDebit,
			Amount:        take,
			Type:          enums.LedgerEntryTypeExpenseSettled,
			ReferenceType: enums.ReferenceTypeExpense,
			ReferenceID:   expense.ID,
		}); err != nil {
			return remaining, err
		}

		remaining = remaining.Sub(take)
		result.ToExpenses = result.ToExpenses.Add(take)
		a.metrics.IncAllocation("expense")
		amount, _ := take.Float64()
		a.metrics.AddAllocatedAmount("expense", amount)
	}
	return remaining, nil
}

// payTransactions pays down the counterparty's transactions oldest-first. The
// per-transaction ceiling is the farmer's earning for payouts and the full
// sale total for buyer collections.
func (a *allocator) payTransactions(ctx context.Context, payment *models.Payment, counterparty uuid.UUID, role enums.PartyRole, remaining decimal.Decimal, result *AllocationResult) (decimal.Decimal, error) {
	if !remaining.IsPositive() {
		return remaining, nil
	}

	open, err := a.transactions.ListByParty(ctx, counterparty, payment.ShopID, role)
	if err != nil {
		return remaining, err
	}
	if payment.TransactionID != nil {
		open = filterToTarget(open, *payment.TransactionID)
		if len(open) == 0 {
			return remaining, pkgerrors.New(pkgerrors.CodeValidation,
				"payment references a transaction outside the counterparty's history")
		}
	}
	if len(open) == 0 {
		return remaining, nil
	}

	ids := make([]uuid.UUID, 0, len(open))
	for _, transaction := range open {
		ids = append(ids, transaction.ID)
	}
	allocated, err := a.payments.AllocatedByTransaction(ctx, ids, payment.PayerRole, payment.PayeeRole)
	if err != nil {
		return remaining, err
	}

	ownAllocations, err := a.payments.ListAllocations(ctx, payment.ID)
	if err != nil {
		return remaining, err
	}
	alreadyTouched := make(map[uuid.UUID]bool, len(ownAllocations))
	for _, allocation := range ownAllocations {
		alreadyTouched[allocation.TransactionID] = true
	}

	for _, transaction := range open {
		if !remaining.IsPositive() {
			break
		}
		if alreadyTouched[transaction.ID] {
			continue
		}

		ceiling := transaction.TotalAmount
		if role == enums.PartyRoleFarmer {
			ceiling = transaction.FarmerEarning
		}
		due := ceiling.Sub(allocated[transaction.ID])
		if !due.IsPositive() {
			continue
		}

		take := decimal.Min(due, remaining)
		if err := a.payments.CreateAllocation(ctx, &models.PaymentAllocation{
			PaymentID:       payment.ID,
			TransactionID:   transaction.ID,
			AllocatedAmount: take,
		}); err != nil {
			return remaining, err
		}
		if _, err := a.ledger.RecordEntry(ctx, ledger.RecordEntryInput{
			UserID:        counterparty,
			ShopID:        payment.ShopID,
			Direction:     a.entryDirection(payment),
			Amount:        take,
			Type:          enums.LedgerEntryTypePaymentApplied,
			ReferenceType: enums.ReferenceTypeTransaction,
			ReferenceID:   transaction.ID,
		}); err != nil {
			return remaining, err
		}

		remaining = remaining.Sub(take)
		result.ToTransactions = result.ToTransactions.Add(take)
		a.metrics.IncAllocation("transaction")
		amount, _ := take.Float64()
		a.metrics.AddAllocatedAmount("transaction", amount)
	}
	return remaining, nil
}

// entryDirection maps the payment flow onto the counterparty's ledger: money
// received by the user debits their receivable, money paid by the user
// credits their debt.
func (a *allocator) entryDirection(payment *models.Payment) enums.LedgerDirection {
	if payment.PayerRole == enums.PartyRoleShop {
		return enums.LedgerDirectionDebit
	}
	return enums.LedgerDirectionCredit
}

func filterToTarget(open []models.Transaction, target uuid.UUID) []models.Transaction {
	for _, transaction := range open {
		if transaction.ID == target {
			return []models.Transaction{transaction}
		}
	}
	return nil
}
