package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/services"
)

var orderStatusValues = map[string]domain.OrderStatus{
	"fresh":      domain.OrderStatusFresh,
	"assigned":   domain.OrderStatusAssigned,
	"packed":     domain.OrderStatusPacked,
	"checked":    domain.OrderStatusChecked,
	"dispatched": domain.OrderStatusDispatched,
	"pending":    domain.OrderStatusPending,
	"cancelled":  domain.OrderStatusCancelled,
	"rejected":   domain.OrderStatusRejected,
	"Payment":    domain.OrderStatusPayment,
	"Return":     domain.OrderStatusReturn,
}

// OrderHandlers exposes the order pipeline and line-item endpoints.
type OrderHandlers struct {
	orders      services.OrderService
	fulfillment services.FulfillmentService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, fulfillment services.FulfillmentService) *OrderHandlers {
	return &OrderHandlers{
		orders:      orders,
		fulfillment: fulfillment,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Delete("/{orderID}", h.deleteOrder)
	r.Post("/{orderID}/assign", h.assignPicker)
	r.Post("/{orderID}/progress", h.progressOrder)
	r.Post("/{orderID}/reject", h.rejectOrder)
	r.Put("/{orderID}/invoice-status", h.setInvoiceStatus)
	r.Put("/{orderID}/remarks", h.updateRemarks)

	r.Get("/{orderID}/items", h.listItems)
	r.Put("/{orderID}/items/{lineIndex}/fulfill-qty", h.setFulfillQty)
	r.Put("/{orderID}/items/{lineIndex}/final-price", h.setFinalPrice)
	r.Post("/{orderID}/items/fulfill-all", h.fulfillAll)
	r.Post("/{orderID}/items/bulk-discount", h.applyBulkDiscount)
}

type createOrderRequest struct {
	CustomerID string `json:"customerId"`
	Remarks    string `json:"remarks"`
	Lines      []struct {
		ItemID   string `json:"itemId"`
		OrderQty int    `json:"orderQty"`
	} `json:"lines"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createOrderRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.CreateOrderCommand{
		CustomerID: req.CustomerID,
		Remarks:    req.Remarks,
		Actor:      actor,
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.NewOrderLine{ItemID: line.ItemID, OrderQty: line.OrderQty})
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, buildOrderPayload(order))
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	pager, ok := pagerFromRequest(ctx, w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		CustomerID:   strings.TrimSpace(query.Get("customerId")),
		AssignedToID: strings.TrimSpace(query.Get("assignedToId")),
		From:         timeBound(pager.From),
		To:           timeBound(pager.To),
		Pagination: services.Pagination{
			PageSize:  pager.PageSize,
			PageToken: pager.PageToken,
		},
	}
	for _, raw := range query["status"] {
		status, ok := orderStatusValues[strings.TrimSpace(raw)]
		if !ok {
			writeInvalidRequest(ctx, w, "unknown status "+strconv.Quote(raw))
			return
		}
		filter.Status = append(filter.Status, status)
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := orderListResponse{NextPageToken: page.NextPageToken}
	for _, order := range page.Items {
		response.Items = append(response.Items, buildOrderPayload(order))
	}
	if response.Items == nil {
		response.Items = []orderPayload{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, orderID, services.OrderReadOptions{IncludeItems: true})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignPickerRequest struct {
	PickerID   string `json:"pickerId"`
	PickerName string `json:"pickerName"`
}

func (h *OrderHandlers) assignPicker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req assignPickerRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.AssignPicker(ctx, services.AssignPickerCommand{
		OrderID:    strings.TrimSpace(chi.URLParam(r, "orderID")),
		PickerID:   req.PickerID,
		PickerName: req.PickerName,
		Actor:      actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) progressOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.Progress(ctx, services.ProgressOrderCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type rejectOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) rejectOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req rejectOrderRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.Reject(ctx, services.RejectOrderCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Reason:  req.Reason,
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type invoiceStatusRequest struct {
	InvoiceStatus string `json:"invoiceStatus"`
}

func (h *OrderHandlers) setInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req invoiceStatusRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.SetInvoiceStatus(ctx, services.SetInvoiceStatusCommand{
		OrderID:       strings.TrimSpace(chi.URLParam(r, "orderID")),
		InvoiceStatus: domain.InvoiceStatus(strings.TrimSpace(req.InvoiceStatus)),
		Actor:         actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type remarksRequest struct {
	Remarks string `json:"remarks"`
}

func (h *OrderHandlers) updateRemarks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req remarksRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.UpdateRemarks(ctx, services.UpdateRemarksCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Remarks: req.Remarks,
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type orderItemsResponse struct {
	Items          []orderItemPayload `json:"items"`
	TotalFulfilled int                `json:"totalFulfilled"`
	InvoiceAmount  string             `json:"invoiceAmount"`
}

func (h *OrderHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	items, err := h.fulfillment.GetItems(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := orderItemsResponse{
		TotalFulfilled: services.TotalFulfilled(items),
		InvoiceAmount:  domain.FormatTenths(services.TotalInvoiceAmount(items)),
	}
	for _, item := range items {
		response.Items = append(response.Items, buildOrderItemPayload(item))
	}
	if response.Items == nil {
		response.Items = []orderItemPayload{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}

func lineIndexParam(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "lineIndex")))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

type fulfillQtyRequest struct {
	FulfillQty int `json:"fulfillQty"`
}

func (h *OrderHandlers) setFulfillQty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	index, ok := lineIndexParam(r)
	if !ok {
		writeInvalidRequest(ctx, w, "lineIndex must be a non-negative integer")
		return
	}
	var req fulfillQtyRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.fulfillment.SetFulfillQty(ctx, services.SetFulfillQtyCommand{
		OrderID:    strings.TrimSpace(chi.URLParam(r, "orderID")),
		LineIndex:  index,
		FulfillQty: req.FulfillQty,
		Actor:      actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type finalPriceRequest struct {
	FinalPrice string `json:"finalPrice"`
}

func (h *OrderHandlers) setFinalPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	index, ok := lineIndexParam(r)
	if !ok {
		writeInvalidRequest(ctx, w, "lineIndex must be a non-negative integer")
		return
	}
	var req finalPriceRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	price, err := parseAmount(req.FinalPrice)
	if err != nil {
		writeInvalidRequest(ctx, w, "finalPrice must be a decimal with at most one fractional digit")
		return
	}

	order, err := h.fulfillment.SetFinalPrice(ctx, services.SetFinalPriceCommand{
		OrderID:    strings.TrimSpace(chi.URLParam(r, "orderID")),
		LineIndex:  index,
		FinalPrice: price,
		Actor:      actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type fulfillAllRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *OrderHandlers) fulfillAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req fulfillAllRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	order, err := h.fulfillment.FulfillAll(ctx, services.FulfillAllCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Confirm: req.Confirm,
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}

type bulkDiscountRequest struct {
	Amount string `json:"amount"`
}

func (h *OrderHandlers) applyBulkDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req bulkDiscountRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeInvalidRequest(ctx, w, "amount must be a decimal with at most one fractional digit")
		return
	}

	order, err := h.fulfillment.ApplyBulkDiscount(ctx, services.BulkDiscountCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Amount:  amount,
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildOrderPayload(order))
}
