package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrilinkhq/mandi-backend/internal/balances"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
)

type testBalancesService struct {
	getFn          func(ctx context.Context, userID, shopID uuid.UUID) (*balances.BalanceView, error)
	reconcileFn    func(ctx context.Context, userID, shopID uuid.UUID) (*balances.ReconcileResult, error)
	reconcileAllFn func(ctx context.Context) (*balances.ReconcileAllResult, error)
}

func (s *testBalancesService) GetBalance(ctx context.Context, userID, shopID uuid.UUID) (*balances.BalanceView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, shopID)
	}
	return nil, nil
}

func (s *testBalancesService) Reconcile(ctx context.Context, userID, shopID uuid.UUID) (*balances.ReconcileResult, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, userID, shopID)
	}
	return nil, nil
}

func (s *testBalancesService) ReconcileAll(ctx context.Context) (*balances.ReconcileAllResult, error) {
	if s.reconcileAllFn != nil {
		return s.reconcileAllFn(ctx)
	}
	return &balances.ReconcileAllResult{}, nil
}

func TestBalanceGetReturnsBreakdown(t *testing.T) {
	shopID := uuid.New()
	userID := uuid.New()
	svc := &testBalancesService{
		getFn: func(ctx context.Context, uid, sid uuid.UUID) (*balances.BalanceView, error) {
			if uid != userID || sid != shopID {
				t.Fatalf("unexpected pair %s/%s", uid, sid)
			}
			return &balances.BalanceView{
				UserID:           userID,
				ShopID:           shopID,
				Balance:          decimal.NewFromInt(750),
				FarmerReceivable: decimal.NewFromInt(750),
				Version:          2,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/balance", nil)
	req = withShop(req, shopID)
	req = addRouteParam(req, "userID", userID.String())

	resp := httptest.NewRecorder()
	BalanceGet(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data balanceResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Balance.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("unexpected balance %s", envelope.Data.Balance)
	}
	if envelope.Data.Version != 2 {
		t.Fatalf("unexpected version %d", envelope.Data.Version)
	}
}

func TestBalanceGetStaleCacheMapsTo409(t *testing.T) {
	shopID := uuid.New()
	userID := uuid.New()
	svc := &testBalancesService{
		getFn: func(ctx context.Context, uid, sid uuid.UUID) (*balances.BalanceView, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStaleBalance, "balance changed concurrently, retry")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/balance", nil)
	req = withShop(req, shopID)
	req = addRouteParam(req, "userID", userID.String())

	resp := httptest.NewRecorder()
	BalanceGet(svc, testLogger())(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeStaleBalance) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestBalanceReconcileReportsCorrection(t *testing.T) {
	shopID := uuid.New()
	userID := uuid.New()
	svc := &testBalancesService{
		reconcileFn: func(ctx context.Context, uid, sid uuid.UUID) (*balances.ReconcileResult, error) {
			return &balances.ReconcileResult{
				UserID:     uid,
				ShopID:     sid,
				Stored:     decimal.NewFromInt(99999),
				Recomputed: decimal.NewFromInt(950),
				Corrected:  true,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/"+userID.String()+"/reconcile", nil)
	req = withShop(req, shopID)
	req = addRouteParam(req, "userID", userID.String())

	resp := httptest.NewRecorder()
	BalanceReconcile(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data reconcileResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Corrected {
		t.Fatal("expected correction flag")
	}
}
