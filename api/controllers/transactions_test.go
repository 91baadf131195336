package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/api/middleware"
	"github.com/agrilinkhq/mandi-backend/internal/transactions"
	"github.com/agrilinkhq/mandi-backend/pkg/db/models"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
	"github.com/agrilinkhq/mandi-backend/pkg/pagination"
)

type testTransactionsService struct {
	createFn func(ctx context.Context, input transactions.CreateTransactionInput) (*models.Transaction, bool, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	listFn   func(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
}

func (s *testTransactionsService) CreateTransaction(ctx context.Context, input transactions.CreateTransactionInput) (*models.Transaction, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, false, nil
}

func (s *testTransactionsService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, nil
}

func (s *testTransactionsService) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID, params)
	}
	return nil, "", nil
}

func (s *testTransactionsService) PurgeStaleIdempotencyKeys(ctx context.Context) (int64, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return r
}

func withShop(r *http.Request, shopID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithShopID(r.Context(), shopID.String()))
}

func sampleTransaction(shopID uuid.UUID) *models.Transaction {
	return &models.Transaction{
		ID:               uuid.New(),
		ShopID:           shopID,
		FarmerID:         uuid.New(),
		BuyerID:          uuid.New(),
		ProductID:        uuid.New(),
		Quantity:         decimal.NewFromInt(100),
		UnitPrice:        decimal.NewFromInt(50),
		CommissionRate:   decimal.NewFromInt(5),
		TotalAmount:      decimal.NewFromInt(5000),
		CommissionAmount: decimal.NewFromInt(250),
		FarmerEarning:    decimal.NewFromInt(4750),
	}
}

func TestTransactionCreateReturns201OnFirstCommit(t *testing.T) {
	shopID := uuid.New()
	record := sampleTransaction(shopID)
	svc := &testTransactionsService{
		createFn: func(ctx context.Context, input transactions.CreateTransactionInput) (*models.Transaction, bool, error) {
			if input.ShopID != shopID {
				t.Fatalf("expected shop from token, got %s", input.ShopID)
			}
			if input.IdempotencyKey != "key-1234567890" {
				t.Fatalf("unexpected idempotency key %q", input.IdempotencyKey)
			}
			if !input.Quantity.Equal(decimal.NewFromInt(100)) {
				t.Fatalf("unexpected quantity %s", input.Quantity)
			}
			return record, true, nil
		},
	}

	body := `{"idempotency_key":"key-1234567890","farmer_id":"` + record.FarmerID.String() +
		`","buyer_id":"` + record.BuyerID.String() +
		`","product_id":"` + record.ProductID.String() +
		`","quantity":"100","unit_price":"50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req = withShop(req, shopID)

	resp := httptest.NewRecorder()
	TransactionCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data transactionResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.ID != record.ID {
		t.Fatalf("expected transaction %s got %s", record.ID, envelope.Data.ID)
	}
	if !envelope.Data.FarmerEarning.Equal(decimal.NewFromInt(4750)) {
		t.Fatalf("unexpected farmer earning %s", envelope.Data.FarmerEarning)
	}
}

func TestTransactionCreateReturns200OnReplay(t *testing.T) {
	shopID := uuid.New()
	record := sampleTransaction(shopID)
	svc := &testTransactionsService{
		createFn: func(ctx context.Context, input transactions.CreateTransactionInput) (*models.Transaction, bool, error) {
			return record, false, nil
		},
	}

	body := `{"idempotency_key":"key-1234567890","farmer_id":"` + record.FarmerID.String() +
		`","buyer_id":"` + record.BuyerID.String() +
		`","product_id":"` + record.ProductID.String() +
		`","quantity":"100","unit_price":"50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req = withShop(req, shopID)

	resp := httptest.NewRecorder()
	TransactionCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestTransactionCreateHeaderKeyWinsOverBody(t *testing.T) {
	shopID := uuid.New()
	record := sampleTransaction(shopID)
	svc := &testTransactionsService{
		createFn: func(ctx context.Context, input transactions.CreateTransactionInput) (*models.Transaction, bool, error) {
			if input.IdempotencyKey != "header-key-123" {
				t.Fatalf("expected header key, got %q", input.IdempotencyKey)
			}
			return record, true, nil
		},
	}

	body := `{"idempotency_key":"body-key-1234","farmer_id":"` + record.FarmerID.String() +
		`","buyer_id":"` + record.BuyerID.String() +
		`","product_id":"` + record.ProductID.String() +
		`","quantity":"100","unit_price":"50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "header-key-123")
	req = withShop(req, shopID)

	resp := httptest.NewRecorder()
	TransactionCreate(svc, testLogger())(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestTransactionCreateMissingIdempotencyKey(t *testing.T) {
	shopID := uuid.New()
	body := `{"farmer_id":"` + uuid.NewString() +
		`","buyer_id":"` + uuid.NewString() +
		`","product_id":"` + uuid.NewString() +
		`","quantity":"100","unit_price":"50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req = withShop(req, shopID)

	resp := httptest.NewRecorder()
	TransactionCreate(&testTransactionsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTransactionCreateMissingShopContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	TransactionCreate(&testTransactionsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestTransactionCreateRejectsMalformedAmount(t *testing.T) {
	shopID := uuid.New()
	body := `{"idempotency_key":"key-1234567890","farmer_id":"` + uuid.NewString() +
		`","buyer_id":"` + uuid.NewString() +
		`","product_id":"` + uuid.NewString() +
		`","quantity":"abc","unit_price":"50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req = withShop(req, shopID)

	resp := httptest.NewRecorder()
	TransactionCreate(&testTransactionsService{
		createFn: func(ctx context.Context, input transactions.CreateTransactionInput) (*models.Transaction, bool, error) {
			t.Fatal("service should not be reached")
			return nil, false, nil
		},
	}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTransactionGetHidesOtherShops(t *testing.T) {
	owner := uuid.New()
	record := sampleTransaction(owner)
	svc := &testTransactionsService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
			return record, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+record.ID.String(), nil)
	req = withShop(req, uuid.New())
	req = addRouteParam(req, "transactionID", record.ID.String())

	resp := httptest.NewRecorder()
	TransactionGet(svc, testLogger())(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestTransactionListPassesCursor(t *testing.T) {
	shopID := uuid.New()
	svc := &testTransactionsService{
		listFn: func(ctx context.Context, sid uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
			if sid != shopID {
				t.Fatalf("unexpected shop %s", sid)
			}
			if params.Limit != 10 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			return []models.Transaction{*sampleTransaction(shopID)}, "next-token", nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?limit=10", nil)
	req = withShop(req, shopID)

	resp := httptest.NewRecorder()
	TransactionList(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data listResponse[transactionResponse] `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected 1 item got %d", len(envelope.Data.Items))
	}
	if envelope.Data.NextCursor != "next-token" {
		t.Fatalf("unexpected cursor %q", envelope.Data.NextCursor)
	}
}
