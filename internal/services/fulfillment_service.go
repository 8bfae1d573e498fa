package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

var (
	// ErrFulfillmentInvalidInput signals the caller provided invalid data.
	ErrFulfillmentInvalidInput = errors.New("fulfillment: invalid input")
	// ErrFulfillmentNotFound indicates the order or line could not be located.
	ErrFulfillmentNotFound = errors.New("fulfillment: not found")
	// ErrFulfillmentLocked indicates the order passed the structural lock.
	ErrFulfillmentLocked = errors.New("fulfillment: order is locked")
	// ErrFulfillmentForbidden indicates the actor's role does not permit line edits.
	ErrFulfillmentForbidden = errors.New("fulfillment: forbidden")
	// ErrFulfillmentConfirmRequired indicates fulfill-all would discard existing edits.
	ErrFulfillmentConfirmRequired = errors.New("fulfillment: confirmation required")
	// ErrFulfillmentConflict indicates an optimistic concurrency conflict.
	ErrFulfillmentConflict = errors.New("fulfillment: conflict")
)

// TotalFulfilled sums the fulfilled quantity across lines.
func TotalFulfilled(items []OrderItem) int {
	total := 0
	for _, item := range items {
		total += item.FulfillQty
	}
	return total
}

// TotalInvoiceAmount sums fulfillQty×finalPrice across lines, in tenths.
func TotalInvoiceAmount(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.FulfillQty) * item.FinalPrice
	}
	return total
}

// WouldDiscardEdits reports whether fulfilling all lines would overwrite a
// prior partial-fulfillment or discount edit.
func WouldDiscardEdits(items []OrderItem) bool {
	for _, item := range items {
		if item.FulfillQty > 0 && item.FulfillQty != item.OrderQty {
			return true
		}
		if item.FinalPrice != item.DisplayPrice {
			return true
		}
	}
	return false
}

// fulfillAllLines accepts every line as requested at catalog price.
func fulfillAllLines(items []OrderItem) {
	for i := range items {
		items[i].FulfillQty = items[i].OrderQty
		items[i].FinalPrice = items[i].DisplayPrice
	}
}

// applyBulkDiscountLines subtracts amount (tenths) from each line's display
// price to produce new final prices, floored at zero.
func applyBulkDiscountLines(items []OrderItem, amount int64) {
	for i := range items {
		price := items[i].DisplayPrice - amount
		if price < 0 {
			price = 0
		}
		items[i].FinalPrice = price
	}
}

// FulfillmentServiceDeps bundles collaborators for the fulfillment service.
type FulfillmentServiceDeps struct {
	Orders     repositories.OrderRepository
	OrderItems repositories.OrderItemRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
	// StrictQuantities rejects fulfillQty above orderQty instead of storing
	// the raw value.
	StrictQuantities bool
}

type fulfillmentService struct {
	orders     repositories.OrderRepository
	orderItems repositories.OrderItemRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
	strict     bool
}

// NewFulfillmentService wires dependencies into a concrete FulfillmentService.
func NewFulfillmentService(deps FulfillmentServiceDeps) (FulfillmentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment service: order repository is required")
	}
	if deps.OrderItems == nil {
		return nil, errors.New("fulfillment service: order item repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &fulfillmentService{
		orders:     deps.Orders,
		orderItems: deps.OrderItems,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		strict: deps.StrictQuantities,
	}, nil
}

func (s *fulfillmentService) GetItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrFulfillmentInvalidInput)
	}
	items, err := s.orderItems.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return items, nil
}

func (s *fulfillmentService) SetFulfillQty(ctx context.Context, cmd SetFulfillQtyCommand) (Order, error) {
	if cmd.FulfillQty < 0 {
		return Order{}, fmt.Errorf("%w: fulfill quantity must not be negative", ErrFulfillmentInvalidInput)
	}

	return s.mutateLines(ctx, cmd.OrderID, cmd.Actor, ActionEditItems, func(items []OrderItem) error {
		if cmd.LineIndex < 0 || cmd.LineIndex >= len(items) {
			return fmt.Errorf("%w: line %d does not exist", ErrFulfillmentNotFound, cmd.LineIndex)
		}
		if s.strict && cmd.FulfillQty > items[cmd.LineIndex].OrderQty {
			return fmt.Errorf("%w: fulfill quantity %d exceeds ordered %d", ErrFulfillmentInvalidInput, cmd.FulfillQty, items[cmd.LineIndex].OrderQty)
		}
		items[cmd.LineIndex].FulfillQty = cmd.FulfillQty
		return nil
	})
}

func (s *fulfillmentService) SetFinalPrice(ctx context.Context, cmd SetFinalPriceCommand) (Order, error) {
	if cmd.FinalPrice < 0 {
		return Order{}, fmt.Errorf("%w: final price must not be negative", ErrFulfillmentInvalidInput)
	}

	return s.mutateLines(ctx, cmd.OrderID, cmd.Actor, ActionEditPrices, func(items []OrderItem) error {
		if cmd.LineIndex < 0 || cmd.LineIndex >= len(items) {
			return fmt.Errorf("%w: line %d does not exist", ErrFulfillmentNotFound, cmd.LineIndex)
		}
		items[cmd.LineIndex].FinalPrice = cmd.FinalPrice
		return nil
	})
}

func (s *fulfillmentService) FulfillAll(ctx context.Context, cmd FulfillAllCommand) (Order, error) {
	return s.mutateLines(ctx, cmd.OrderID, cmd.Actor, ActionEditItems, func(items []OrderItem) error {
		if WouldDiscardEdits(items) && !cmd.Confirm {
			return fmt.Errorf("%w: fulfilling all lines would discard existing edits", ErrFulfillmentConfirmRequired)
		}
		fulfillAllLines(items)
		return nil
	})
}

func (s *fulfillmentService) ApplyBulkDiscount(ctx context.Context, cmd BulkDiscountCommand) (Order, error) {
	if cmd.Amount < 0 {
		return Order{}, fmt.Errorf("%w: discount amount must not be negative", ErrFulfillmentInvalidInput)
	}

	return s.mutateLines(ctx, cmd.OrderID, cmd.Actor, ActionEditPrices, func(items []OrderItem) error {
		applyBulkDiscountLines(items, cmd.Amount)
		return nil
	})
}

// mutateLines loads the order and its lines, applies the mutation, recomputes
// the order total, and persists both records. The total is always derived from
// the lines; ledger records carry no lines and are rejected up front.
func (s *fulfillmentService) mutateLines(ctx context.Context, orderID string, actor Actor, action Action, mutate func([]OrderItem) error) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrFulfillmentInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !CanPerform(actor, action, order) {
		return Order{}, fmt.Errorf("%w: role %s cannot edit order lines", ErrFulfillmentForbidden, actor.Role)
	}
	if order.Ledger() {
		return Order{}, fmt.Errorf("%w: ledger records have no line items", ErrFulfillmentInvalidInput)
	}
	switch order.Status {
	case domain.OrderStatusChecked, domain.OrderStatusDispatched:
		return Order{}, fmt.Errorf("%w: order %s is at status %s", ErrFulfillmentLocked, order.ID, order.Status)
	}

	items, err := s.orderItems.Get(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if err := mutate(items); err != nil {
		return Order{}, err
	}

	order.TotalAmount = TotalInvoiceAmount(items)
	order.UpdatedAt = s.clock()
	if actorID := strings.TrimSpace(actor.ID); actorID != "" {
		order.Audit.UpdatedBy = &actorID
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orderItems.Put(txCtx, id, items); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	order.Revision++
	order.Items = items
	s.logger(ctx, "fulfillment.lines_updated", map[string]any{
		"orderId": order.ID,
		"action":  string(action),
		"total":   order.TotalAmount,
	})
	return order, nil
}

func (s *fulfillmentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrFulfillmentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrFulfillmentConflict, err)
		}
	}
	return err
}
