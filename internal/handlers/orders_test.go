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
	"github.com/apexflow/api/internal/platform/auth"
	"github.com/apexflow/api/internal/services"
)

type stubOrderService struct {
	createFn        func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn           func(context.Context, string, services.OrderReadOptions) (services.Order, error)
	listFn          func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	assignFn        func(context.Context, services.AssignPickerCommand) (services.Order, error)
	progressFn      func(context.Context, services.ProgressOrderCommand) (services.Order, error)
	rejectFn        func(context.Context, services.RejectOrderCommand) (services.Order, error)
	invoiceStatusFn func(context.Context, services.SetInvoiceStatusCommand) (services.Order, error)
	remarksFn       func(context.Context, services.UpdateRemarksCommand) (services.Order, error)
	deleteFn        func(context.Context, services.DeleteOrderCommand) error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, opts services.OrderReadOptions) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID, opts)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) AssignPicker(ctx context.Context, cmd services.AssignPickerCommand) (services.Order, error) {
	if s.assignFn != nil {
		return s.assignFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Progress(ctx context.Context, cmd services.ProgressOrderCommand) (services.Order, error) {
	if s.progressFn != nil {
		return s.progressFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Reject(ctx context.Context, cmd services.RejectOrderCommand) (services.Order, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) SetInvoiceStatus(ctx context.Context, cmd services.SetInvoiceStatusCommand) (services.Order, error) {
	if s.invoiceStatusFn != nil {
		return s.invoiceStatusFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateRemarks(ctx context.Context, cmd services.UpdateRemarksCommand) (services.Order, error) {
	if s.remarksFn != nil {
		return s.remarksFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, cmd services.DeleteOrderCommand) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return errors.New("not implemented")
}

var _ services.OrderService = (*stubOrderService)(nil)

type stubFulfillmentService struct {
	getItemsFn   func(context.Context, string) ([]services.OrderItem, error)
	fulfillQtyFn func(context.Context, services.SetFulfillQtyCommand) (services.Order, error)
	finalPriceFn func(context.Context, services.SetFinalPriceCommand) (services.Order, error)
	fulfillAllFn func(context.Context, services.FulfillAllCommand) (services.Order, error)
	discountFn   func(context.Context, services.BulkDiscountCommand) (services.Order, error)
}

func (s *stubFulfillmentService) GetItems(ctx context.Context, orderID string) ([]services.OrderItem, error) {
	if s.getItemsFn != nil {
		return s.getItemsFn(ctx, orderID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubFulfillmentService) SetFulfillQty(ctx context.Context, cmd services.SetFulfillQtyCommand) (services.Order, error) {
	if s.fulfillQtyFn != nil {
		return s.fulfillQtyFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubFulfillmentService) SetFinalPrice(ctx context.Context, cmd services.SetFinalPriceCommand) (services.Order, error) {
	if s.finalPriceFn != nil {
		return s.finalPriceFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubFulfillmentService) FulfillAll(ctx context.Context, cmd services.FulfillAllCommand) (services.Order, error) {
	if s.fulfillAllFn != nil {
		return s.fulfillAllFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubFulfillmentService) ApplyBulkDiscount(ctx context.Context, cmd services.BulkDiscountCommand) (services.Order, error) {
	if s.discountFn != nil {
		return s.discountFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

var _ services.FulfillmentService = (*stubFulfillmentService)(nil)

func authed(req *http.Request) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		StaffID: "staff-1",
		Name:    "Asha",
		Role:    domain.RoleAdmin,
	}))
}

func orderRouter(orders services.OrderService, fulfillment services.FulfillmentService) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", NewOrderHandlers(orders, fulfillment).Routes)
	return router
}

func TestOrderHandlersListOrdersAppliesFilters(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	var captured services.OrderListFilter
	service := &stubOrderService{
		listFn: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items: []services.Order{
					{
						ID:            "ord_123",
						OrderNumber:   "AF-2026-00123",
						Status:        domain.OrderStatusAssigned,
						CustomerID:    "cus_1",
						CustomerName:  "Sharma Traders",
						TotalAmount:   3050,
						InvoiceStatus: domain.InvoiceStatusPending,
						CreatedAt:     now,
					},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodGet, "/orders?status=assigned&status=packed&customerId=cus_1&pageSize=10&from=2026-03-01&to=2026-04-01", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cus_1" {
		t.Fatalf("expected customer filter cus_1, got %q", captured.CustomerID)
	}
	if captured.Pagination.PageSize != 10 {
		t.Fatalf("expected page size 10, got %d", captured.Pagination.PageSize)
	}
	if len(captured.Status) != 2 || captured.Status[0] != domain.OrderStatusAssigned || captured.Status[1] != domain.OrderStatusPacked {
		t.Fatalf("unexpected status filter: %#v", captured.Status)
	}
	if captured.From == nil || captured.To == nil {
		t.Fatalf("expected date bounds, got from=%v to=%v", captured.From, captured.To)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp.Items))
	}
	if resp.Items[0].OrderNumber != "AF-2026-00123" {
		t.Fatalf("unexpected order number: %s", resp.Items[0].OrderNumber)
	}
	if resp.Items[0].TotalAmount != "305.0" {
		t.Fatalf("expected total 305.0, got %s", resp.Items[0].TotalAmount)
	}
	if resp.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token tok-next, got %s", resp.NextPageToken)
	}
}

func TestOrderHandlersListOrdersUnknownStatus(t *testing.T) {
	router := orderRouter(&stubOrderService{}, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodGet, "/orders?status=shipped", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListOrdersUnauthenticated(t *testing.T) {
	router := orderRouter(&stubOrderService{}, &stubFulfillmentService{})
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "ord_1", Status: domain.OrderStatusFresh, CustomerID: cmd.CustomerID}, nil
		},
	}

	body := `{"customerId":"cus_1","remarks":"urgent","lines":[{"itemId":"inv_1","orderQty":3}]}`
	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.CustomerID != "cus_1" || captured.Remarks != "urgent" {
		t.Fatalf("unexpected command: %#v", captured)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].ItemID != "inv_1" || captured.Lines[0].OrderQty != 3 {
		t.Fatalf("unexpected lines: %#v", captured.Lines)
	}
	if captured.Actor.ID != "staff-1" || captured.Actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %#v", captured.Actor)
	}
}

func TestOrderHandlersProgressInvalidTransition(t *testing.T) {
	service := &stubOrderService{
		progressFn: func(ctx context.Context, cmd services.ProgressOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidTransition
		},
	}

	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodPost, "/orders/ord_1/progress", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestOrderHandlersProgressForbidden(t *testing.T) {
	service := &stubOrderService{
		progressFn: func(ctx context.Context, cmd services.ProgressOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderForbidden
		},
	}

	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodPost, "/orders/ord_1/progress", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestOrderHandlersRejectPassesReason(t *testing.T) {
	var captured services.RejectOrderCommand
	service := &stubOrderService{
		rejectFn: func(ctx context.Context, cmd services.RejectOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusRejected}, nil
		},
	}

	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodPost, "/orders/ord_9/reject", bytes.NewBufferString(`{"reason":"out of stock"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_9" || captured.Reason != "out of stock" {
		t.Fatalf("unexpected command: %#v", captured)
	}
}

func TestOrderHandlersDeleteOrder(t *testing.T) {
	var captured services.DeleteOrderCommand
	service := &stubOrderService{
		deleteFn: func(ctx context.Context, cmd services.DeleteOrderCommand) error {
			captured = cmd
			return nil
		},
	}

	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodDelete, "/orders/ord_7", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if captured.OrderID != "ord_7" {
		t.Fatalf("expected order ord_7, got %q", captured.OrderID)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(ctx context.Context, orderID string, opts services.OrderReadOptions) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	router := orderRouter(service, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodGet, "/orders/ord_missing", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersSetFulfillQty(t *testing.T) {
	var captured services.SetFulfillQtyCommand
	fulfillment := &stubFulfillmentService{
		fulfillQtyFn: func(ctx context.Context, cmd services.SetFulfillQtyCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, TotalAmount: 500}, nil
		},
	}

	router := orderRouter(&stubOrderService{}, fulfillment)
	req := authed(httptest.NewRequest(http.MethodPut, "/orders/ord_1/items/2/fulfill-qty", bytes.NewBufferString(`{"fulfillQty":4}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_1" || captured.LineIndex != 2 || captured.FulfillQty != 4 {
		t.Fatalf("unexpected command: %#v", captured)
	}
}

func TestOrderHandlersSetFulfillQtyBadIndex(t *testing.T) {
	router := orderRouter(&stubOrderService{}, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodPut, "/orders/ord_1/items/two/fulfill-qty", bytes.NewBufferString(`{"fulfillQty":4}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersSetFinalPriceParsesDecimal(t *testing.T) {
	var captured services.SetFinalPriceCommand
	fulfillment := &stubFulfillmentService{
		finalPriceFn: func(ctx context.Context, cmd services.SetFinalPriceCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID}, nil
		},
	}

	router := orderRouter(&stubOrderService{}, fulfillment)
	req := authed(httptest.NewRequest(http.MethodPut, "/orders/ord_1/items/0/final-price", bytes.NewBufferString(`{"finalPrice":"30.5"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.FinalPrice != 305 {
		t.Fatalf("expected price 305 tenths, got %d", captured.FinalPrice)
	}
}

func TestOrderHandlersSetFinalPriceRejectsTwoDecimals(t *testing.T) {
	router := orderRouter(&stubOrderService{}, &stubFulfillmentService{})
	req := authed(httptest.NewRequest(http.MethodPut, "/orders/ord_1/items/0/final-price", bytes.NewBufferString(`{"finalPrice":"30.55"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersFulfillAllConfirmRequired(t *testing.T) {
	fulfillment := &stubFulfillmentService{
		fulfillAllFn: func(ctx context.Context, cmd services.FulfillAllCommand) (services.Order, error) {
			return services.Order{}, services.ErrFulfillmentConfirmRequired
		},
	}

	router := orderRouter(&stubOrderService{}, fulfillment)
	req := authed(httptest.NewRequest(http.MethodPost, "/orders/ord_1/items/fulfill-all", bytes.NewBufferString(`{"confirm":false}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Error != "confirmation_required" {
		t.Fatalf("expected confirmation_required code, got %q", resp.Error)
	}
}

func TestOrderHandlersListItemsSummarises(t *testing.T) {
	fulfillment := &stubFulfillmentService{
		getItemsFn: func(ctx context.Context, orderID string) ([]services.OrderItem, error) {
			return []services.OrderItem{
				{Brand: "Acme", Model: "X1", OrderQty: 5, FulfillQty: 3, FinalPrice: 100},
				{Brand: "Acme", Model: "X2", OrderQty: 2, FulfillQty: 2, FinalPrice: 250},
			}, nil
		},
	}

	router := orderRouter(&stubOrderService{}, fulfillment)
	req := authed(httptest.NewRequest(http.MethodGet, "/orders/ord_1/items", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderItemsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.TotalFulfilled != 5 {
		t.Fatalf("expected 5 fulfilled, got %d", resp.TotalFulfilled)
	}
	if resp.InvoiceAmount != "80.0" {
		t.Fatalf("expected invoice amount 80.0, got %s", resp.InvoiceAmount)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
}
