package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/api/responses"
	"github.com/agrilinkhq/mandi-backend/api/validators"
	"github.com/agrilinkhq/mandi-backend/internal/payments"
	"github.com/agrilinkhq/mandi-backend/pkg/enums"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
)

type paymentCreateRequest struct {
	PayerRole      string  `json:"payer_role" validate:"required,oneof=farmer buyer shop"`
	PayeeRole      string  `json:"payee_role" validate:"required,oneof=farmer buyer shop"`
	CounterpartyID string  `json:"counterparty_id" validate:"required,uuid"`
	TransactionID  *string `json:"transaction_id,omitempty"`
	Amount         string  `json:"amount" validate:"required"`
	Method         string  `json:"method,omitempty" validate:"omitempty,oneof=cash bank_transfer upi cheque"`
	Status         string  `json:"status,omitempty" validate:"omitempty,oneof=pending paid"`
}

func (req *paymentCreateRequest) toInput(shopID uuid.UUID) (payments.CreatePaymentInput, error) {
	var input payments.CreatePaymentInput

	payerRole, err := enums.ParsePartyRole(req.PayerRole)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payer_role")
	}
	payeeRole, err := enums.ParsePartyRole(req.PayeeRole)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payee_role")
	}
	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid counterparty_id")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	input = payments.CreatePaymentInput{
		ShopID:         shopID,
		PayerRole:      payerRole,
		PayeeRole:      payeeRole,
		CounterpartyID: counterpartyID,
		Amount:         amount,
	}
	if req.TransactionID != nil {
		transactionID, txErr := uuid.Parse(*req.TransactionID)
		if txErr != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, txErr, "invalid transaction_id")
		}
		input.TransactionID = &transactionID
	}
	if req.Method != "" {
		method, methodErr := enums.ParsePaymentMethod(req.Method)
		if methodErr != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, methodErr, "invalid method")
		}
		input.Method = method
	}
	if req.Status != "" {
		status, statusErr := enums.ParsePaymentStatus(req.Status)
		if statusErr != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, statusErr, "invalid status")
		}
		input.Status = status
	}
	return input, nil
}

type paymentCreateResponse struct {
	paymentResponse
	Allocation allocationBreakdown `json:"allocation"`
}

// PaymentCreate records a payment and, when it lands as paid, allocates it
// against the counterparty's open items in the same transaction.
func PaymentCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input, err := req.toInput(shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		payment, result, err := svc.CreatePayment(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentCreateResponse{
			paymentResponse: toPaymentResponse(payment),
			Allocation:      toAllocationBreakdown(result),
		})
	}
}

func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentID"), "paymentID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		detail, err := svc.GetPayment(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if detail.Payment.ShopID != shopID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
			return
		}

		responses.WriteSuccess(w, toPaymentDetailResponse(detail))
	}
}

func PaymentList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items, next, err := svc.ListForShop(ctx, shopID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := listResponse[paymentResponse]{
			Items:      make([]paymentResponse, 0, len(items)),
			NextCursor: next,
		}
		for i := range items {
			resp.Items = append(resp.Items, toPaymentResponse(&items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// PaymentMarkPaid flips a pending payment to paid and runs allocation.
func PaymentMarkPaid(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentTransition(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		payment, result, err := svc.MarkPaymentPaid(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return paymentCreateResponse{
			paymentResponse: toPaymentResponse(payment),
			Allocation:      toAllocationBreakdown(result),
		}, nil
	})
}

// PaymentAllocate re-runs allocation for a paid payment, picking up items
// created after the payment landed.
func PaymentAllocate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentTransition(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		payment, result, err := svc.AllocatePayment(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return paymentCreateResponse{
			paymentResponse: toPaymentResponse(payment),
			Allocation:      toAllocationBreakdown(result),
		}, nil
	})
}

// PaymentCancel soft-cancels a payment that has not allocated anything yet.
func PaymentCancel(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentTransition(svc, logg, func(r *http.Request, id uuid.UUID) (any, error) {
		payment, err := svc.CancelPayment(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return toPaymentResponse(payment), nil
	})
}

func paymentTransition(svc payments.Service, logg *logger.Logger, apply func(*http.Request, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "paymentID"), "paymentID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Scope check before mutating.
		detail, err := svc.GetPayment(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if detail.Payment.ShopID != shopID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
			return
		}

		body, err := apply(r, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, body)
	}
}
