package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/services"
)

type stubReturnService struct {
	createFn    func(context.Context, services.CreateReturnCommand) (services.Order, error)
	stockRoomFn func(context.Context) ([]services.StockRoomEntry, error)
	removeFn    func(context.Context, services.RemoveStockCommand) (services.RemoveStockResult, error)
}

func (s *stubReturnService) CreateReturn(ctx context.Context, cmd services.CreateReturnCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubReturnService) StockRoom(ctx context.Context) ([]services.StockRoomEntry, error) {
	if s.stockRoomFn != nil {
		return s.stockRoomFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (s *stubReturnService) RemoveStock(ctx context.Context, cmd services.RemoveStockCommand) (services.RemoveStockResult, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.RemoveStockResult{}, errors.New("not implemented")
}

var _ services.ReturnService = (*stubReturnService)(nil)

func returnRouter(returns services.ReturnService) chi.Router {
	router := chi.NewRouter()
	router.Route("/returns", NewReturnHandlers(returns).Routes)
	return router
}

func TestReturnHandlersCreateCartReturn(t *testing.T) {
	var captured services.CreateReturnCommand
	service := &stubReturnService{
		createFn: func(ctx context.Context, cmd services.CreateReturnCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:          "GR-1",
				Status:      domain.OrderStatusReturn,
				CustomerID:  cmd.CustomerID,
				TotalAmount: 300,
			}, nil
		},
	}

	body := `{"customerId":"cus_1","lines":[{"itemId":"inv_1","returnQty":3,"returnPrice":"10.0"}]}`
	router := returnRouter(service)
	req := authed(httptest.NewRequest(http.MethodPost, "/returns", bytes.NewBufferString(body)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cus_1" {
		t.Fatalf("unexpected customer: %q", captured.CustomerID)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].ReturnQty != 3 || captured.Lines[0].ReturnPrice != 100 {
		t.Fatalf("unexpected lines: %#v", captured.Lines)
	}

	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != "GR-1" || resp.TotalAmount != "30.0" {
		t.Fatalf("unexpected payload: %#v", resp)
	}
}

func TestReturnHandlersCreateDirectReturn(t *testing.T) {
	var captured services.CreateReturnCommand
	service := &stubReturnService{
		createFn: func(ctx context.Context, cmd services.CreateReturnCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "GR-2", Status: domain.OrderStatusReturn, TotalAmount: cmd.Amount}, nil
		},
	}

	router := returnRouter(service)
	req := authed(httptest.NewRequest(http.MethodPost, "/returns", bytes.NewBufferString(`{"customerId":"cus_1","amount":"50.0","remarks":"breakage credit"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Amount != 500 || captured.Remarks != "breakage credit" || len(captured.Lines) != 0 {
		t.Fatalf("unexpected command: %#v", captured)
	}
}

func TestReturnHandlersStockRoom(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	service := &stubReturnService{
		stockRoomFn: func(ctx context.Context) ([]services.StockRoomEntry, error) {
			return []services.StockRoomEntry{
				{
					Brand:    "Acme",
					Model:    "X1",
					Quality:  "A",
					Quantity: 6,
					TotalVal: 600,
					History: []services.StockContribution{
						{OrderID: "GR-1", CustomerName: "Sharma Traders", Date: date, Qty: 6},
					},
				},
			}, nil
		},
	}

	router := returnRouter(service)
	req := authed(httptest.NewRequest(http.MethodGet, "/returns/stock-room", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp stockRoomResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.Entries))
	}
	entry := resp.Entries[0]
	if entry.Quantity != 6 || entry.TotalVal != "60.0" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
	if len(entry.History) != 1 || entry.History[0].OrderID != "GR-1" {
		t.Fatalf("unexpected history: %#v", entry.History)
	}
}

func TestReturnHandlersRemoveStock(t *testing.T) {
	var captured services.RemoveStockCommand
	service := &stubReturnService{
		removeFn: func(ctx context.Context, cmd services.RemoveStockCommand) (services.RemoveStockResult, error) {
			captured = cmd
			return services.RemoveStockResult{
				Removed:       7,
				UpdatedOrders: []string{"GR-2"},
				DeletedOrders: []string{"GR-1"},
			}, nil
		},
	}

	router := returnRouter(service)
	req := authed(httptest.NewRequest(http.MethodPost, "/returns/stock-room/remove", bytes.NewBufferString(`{"brand":"Acme","model":"X1","quality":"A","quantity":7}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Brand != "Acme" || captured.Quantity != 7 {
		t.Fatalf("unexpected command: %#v", captured)
	}

	var resp removeStockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Removed != 7 || len(resp.DeletedOrders) != 1 || resp.DeletedOrders[0] != "GR-1" {
		t.Fatalf("unexpected result: %#v", resp)
	}
}

func TestReturnHandlersRemoveStockInsufficient(t *testing.T) {
	service := &stubReturnService{
		removeFn: func(ctx context.Context, cmd services.RemoveStockCommand) (services.RemoveStockResult, error) {
			return services.RemoveStockResult{}, services.ErrReturnInsufficientStock
		},
	}

	router := returnRouter(service)
	req := authed(httptest.NewRequest(http.MethodPost, "/returns/stock-room/remove", bytes.NewBufferString(`{"brand":"Acme","model":"X1","quality":"A","quantity":99}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
