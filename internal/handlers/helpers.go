package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/auth"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/platform/pagination"
	"github.com/apexflow/api/internal/services"
)

const maxBodySize = 64 * 1024

// actorFromContext converts the authenticated identity into a service actor.
func actorFromContext(ctx context.Context) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.StaffID) == "" {
		return services.Actor{}, false
	}
	return services.Actor{
		ID:   identity.StaffID,
		Name: identity.Name,
		Role: identity.Role,
	}, true
}

func writeUnauthenticated(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
}

func writeInvalidRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst, maxBodySize); err != nil {
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		writeInvalidRequest(ctx, w, "invalid JSON body")
		return false
	}
	return true
}

func pagerFromRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (pagination.Params, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		writeInvalidRequest(ctx, w, err.Error())
		return pagination.Params{}, false
	}
	return params, true
}

// timeBound converts a parsed date bound into the optional form filters use.
func timeBound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// writeServiceError maps service sentinel errors onto the HTTP error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var partial *services.PartialWriteError
	if errors.As(err, &partial) {
		httpx.WriteError(ctx, w, httpx.NewError("partial_write", partial.Error(), http.StatusInternalServerError).
			WithDetails(map[string]any{
				"failedStep": partial.FailedStep,
				"completed":  partial.Completed,
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrFulfillmentInvalidInput),
		errors.Is(err, services.ErrLedgerInvalidInput),
		errors.Is(err, services.ErrReturnInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput),
		errors.Is(err, services.ErrCustomerInvalidInput),
		errors.Is(err, services.ErrReturnInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrFulfillmentNotFound),
		errors.Is(err, services.ErrLedgerNotFound),
		errors.Is(err, services.ErrReturnNotFound),
		errors.Is(err, services.ErrInventoryNotFound),
		errors.Is(err, services.ErrCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden),
		errors.Is(err, services.ErrFulfillmentForbidden),
		errors.Is(err, services.ErrLedgerForbidden),
		errors.Is(err, services.ErrReturnForbidden),
		errors.Is(err, services.ErrInventoryForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrOrderInvalidTransition),
		errors.Is(err, services.ErrFulfillmentLocked):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrFulfillmentConfirmRequired):
		httpx.WriteError(ctx, w, httpx.NewError("confirmation_required", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict),
		errors.Is(err, services.ErrFulfillmentConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

// parseAmount converts a decimal string with at most one fractional digit
// into tenths.
func parseAmount(raw string) (int64, error) {
	return domain.ParseTenths(raw)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Shared response payload shapes ---------------------------------------------

type orderItemPayload struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Quality      string `json:"quality"`
	Category     string `json:"category"`
	OrderQty     int    `json:"orderQty"`
	DisplayPrice string `json:"displayPrice"`
	FulfillQty   int    `json:"fulfillQty"`
	FinalPrice   string `json:"finalPrice"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"orderNumber,omitempty"`
	Status          string             `json:"status"`
	CustomerID      string             `json:"customerId"`
	CustomerName    string             `json:"customerName"`
	CustomerSubtext string             `json:"customerSubtext,omitempty"`
	AssignedTo      string             `json:"assignedTo,omitempty"`
	AssignedToID    string             `json:"assignedToId,omitempty"`
	TotalAmount     string             `json:"totalAmount"`
	InvoiceStatus   string             `json:"invoiceStatus"`
	Remarks         string             `json:"remarks,omitempty"`
	Revision        int64              `json:"revision"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
	Items           []orderItemPayload `json:"items,omitempty"`
}

func buildOrderItemPayload(item services.OrderItem) orderItemPayload {
	return orderItemPayload{
		Brand:        item.Brand,
		Model:        item.Model,
		Quality:      item.Quality,
		Category:     item.Category,
		OrderQty:     item.OrderQty,
		DisplayPrice: domain.FormatTenths(item.DisplayPrice),
		FulfillQty:   item.FulfillQty,
		FinalPrice:   domain.FormatTenths(item.FinalPrice),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		CustomerID:      order.CustomerID,
		CustomerName:    order.CustomerName,
		CustomerSubtext: order.CustomerSubtext,
		AssignedTo:      derefOrEmpty(order.AssignedTo),
		AssignedToID:    derefOrEmpty(order.AssignedToID),
		TotalAmount:     domain.FormatTenths(order.TotalAmount),
		InvoiceStatus:   string(order.InvoiceStatus),
		Remarks:         order.Remarks,
		Revision:        order.Revision,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, buildOrderItemPayload(item))
	}
	return payload
}

type customerPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subtext   string `json:"subtext,omitempty"`
	FirmID    string `json:"firmId,omitempty"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func buildCustomerPayload(customer services.Customer) customerPayload {
	return customerPayload{
		ID:        customer.ID,
		Name:      customer.Name,
		Subtext:   customer.Subtext,
		FirmID:    customer.FirmID,
		Balance:   domain.FormatTenths(customer.Balance),
		CreatedAt: formatTime(customer.CreatedAt),
		UpdatedAt: formatTime(customer.UpdatedAt),
	}
}
