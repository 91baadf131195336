package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/api/responses"
	"github.com/agrilinkhq/mandi-backend/api/validators"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
)

type transactionCreateRequest struct {
	IdempotencyKey string  `json:"idempotency_key,omitempty" validate:"omitempty,min=8,max=128"`
	FarmerID       string  `json:"farmer_id" validate:"required,uuid"`
	BuyerID        string  `json:"buyer_id" validate:"required,uuid"`
	ProductID      string  `json:"product_id" validate:"required,uuid"`
	Quantity       string  `json:"quantity" validate:"required"`
	UnitPrice      string  `json:"unit_price" validate:"required"`
	CommissionRate *string `json:"commission_rate,omitempty"`
}

func (req *transactionCreateRequest) toInput(shopID uuid.UUID) (transactions.CreateTransactionInput, error) {
	var input transactions.CreateTransactionInput

	farmerID, err := uuid.Parse(req.FarmerID)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farmer_id")
	}
	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer_id")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id")
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quantity")
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit_price")
	}

	input = transactions.CreateTransactionInput{
		IdempotencyKey: req.IdempotencyKey,
		ShopID:         shopID,
		FarmerID:       farmerID,
		BuyerID:        buyerID,
		ProductID:      productID,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
	}
	if req.CommissionRate != nil {
		rate, rateErr := decimal.NewFromString(*req.CommissionRate)
		if rateErr != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, rateErr, "invalid commission_rate")
		}
		input.CommissionRate = &rate
	}
	return input, nil
}

// TransactionCreate records a sale. Replays of an already-committed
// idempotency key return the original transaction with a 200 instead of 201.
func TransactionCreate(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req transactionCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// The header wins over the body field; one of the two must be set.
		if headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); headerKey != "" {
			req.IdempotencyKey = headerKey
		}
		if req.IdempotencyKey == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required"))
			return
		}

		input, err := req.toInput(shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		transaction, created, err := svc.CreateTransaction(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, toTransactionResponse(transaction))
	}
}

func TransactionGet(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "transactionID"), "transactionID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		transaction, err := svc.GetTransaction(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if transaction.ShopID != shopID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found"))
			return
		}

		responses.WriteSuccess(w, toTransactionResponse(transaction))
	}
}

func TransactionList(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction service unavailable"))
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

		resp := listResponse[transactionResponse]{
			Items:      make([]transactionResponse, 0, len(items)),
			NextCursor: next,
		}
		for i := range items {
			resp.Items = append(resp.Items, toTransactionResponse(&items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}
