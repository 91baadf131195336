package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/api/responses"
	"github.com/agrilinkhq/mandi-backend/api/validators"
	"github.com/agrilinkhq/mandi-backend/internal/expenses"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
)

type expenseCreateRequest struct {
	UserID      string  `json:"user_id" validate:"required,uuid"`
	Amount      string  `json:"amount" validate:"required"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

func (req *expenseCreateRequest) toInput(shopID uuid.UUID) (expenses.CreateExpenseInput, error) {
	var input expenses.CreateExpenseInput

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	input = expenses.CreateExpenseInput{
		UserID:      userID,
		ShopID:      shopID,
		Amount:      amount,
		Description: req.Description,
	}
	return input, nil
}

func ExpenseCreate(svc expenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "expense service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req expenseCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input, err := req.toInput(shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		expense, err := svc.CreateExpense(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toExpenseResponse(expense))
	}
}

func ExpenseGet(svc expenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "expense service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "expenseID"), "expenseID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		expense, err := svc.GetExpense(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if expense.ShopID != shopID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "expense not found"))
			return
		}

		responses.WriteSuccess(w, toExpenseResponse(expense))
	}
}

// ExpensePendingList returns a user's open expenses with how much of each is
// already consumed, oldest first to mirror the allocation order.
func ExpensePendingList(svc expenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "expense service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID, err := validators.ParsePathUUID(chi.URLParam(r, "userID"), "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pending, err := svc.PendingFor(ctx, userID, shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := listResponse[pendingExpenseResponse]{
			Items: make([]pendingExpenseResponse, 0, len(pending)),
		}
		for _, item := range pending {
			resp.Items = append(resp.Items, toPendingExpenseResponse(item))
		}
		responses.WriteSuccess(w, resp)
	}
}
