package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/api/responses"
	"github.com/agrilinkhq/mandi-backend/api/validators"
	"github.com/agrilinkhq/mandi-backend/internal/balances"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
)

// BalanceGet recomputes the user's balance from history and refreshes the
// cached row before returning it.
func BalanceGet(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
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

		view, err := svc.GetBalance(ctx, userID, shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, toBalanceResponse(view))
	}
}

type reconcileResponse struct {
	UserID     uuid.UUID       `json:"user_id"`
	ShopID     uuid.UUID       `json:"shop_id"`
	Stored     decimal.Decimal `json:"stored"`
	Recomputed decimal.Decimal `json:"recomputed"`
	Corrected  bool            `json:"corrected"`
}

// BalanceReconcile checks one cached balance against history and corrects it
// with an audit ledger entry when they drift.
func BalanceReconcile(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
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

		result, err := svc.Reconcile(ctx, userID, shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, reconcileResponse{
			UserID:     result.UserID,
			ShopID:     result.ShopID,
			Stored:     result.Stored,
			Recomputed: result.Recomputed,
			Corrected:  result.Corrected,
		})
	}
}

type reconcileAllResponse struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
}

// BalanceReconcileAll sweeps every known user/shop pair. Partial failures do
// not abort the sweep; the error carries every pair that failed.
func BalanceReconcileAll(svc balances.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "balance service unavailable"))
			return
		}

		result, err := svc.ReconcileAll(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, reconcileAllResponse{
			Checked:   result.Checked,
			Corrected: result.Corrected,
		})
	}
}
