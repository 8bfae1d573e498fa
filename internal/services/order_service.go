package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventAssigned      = "order.assigned"
	orderEventStatusChanged = "order.status.changed"
	orderEventRejected      = "order.rejected"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix = "ord_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates a status change that violates the pipeline guards.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderForbidden indicates the actor's role does not permit the operation.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates an optimistic concurrency conflict.
	ErrOrderConflict = errors.New("order: conflict")
)

// remarksPolicy strips all markup from free-text fields before storage.
var remarksPolicy = bluemonday.StrictPolicy()

// orderStatusTransitions is the total transition table for the "progress"
// action. Terminal statuses map to themselves.
var orderStatusTransitions = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusFresh:      domain.OrderStatusAssigned,
	domain.OrderStatusAssigned:   domain.OrderStatusPacked,
	domain.OrderStatusPacked:     domain.OrderStatusChecked,
	domain.OrderStatusChecked:    domain.OrderStatusDispatched,
	domain.OrderStatusDispatched: domain.OrderStatusDispatched,
	domain.OrderStatusPending:    domain.OrderStatusAssigned,
	domain.OrderStatusCancelled:  domain.OrderStatusFresh,
	domain.OrderStatusRejected:   domain.OrderStatusFresh,
	domain.OrderStatusPayment:    domain.OrderStatusPayment,
	domain.OrderStatusReturn:     domain.OrderStatusReturn,
}

// NextStatus returns the status an order moves to on the progress action.
// Total over the status domain; unknown statuses map to themselves.
func NextStatus(status OrderStatus) OrderStatus {
	if next, ok := orderStatusTransitions[status]; ok {
		return next
	}
	return status
}

// CanProgress reports whether the progress action is available for an order
// in the given status. Fresh orders advance via picker assignment, rejected
// orders via reassignment, and dispatched/ledger statuses are terminal.
func CanProgress(status OrderStatus) bool {
	switch status {
	case domain.OrderStatusAssigned, domain.OrderStatusPacked, domain.OrderStatusChecked,
		domain.OrderStatusPending, domain.OrderStatusCancelled:
		return true
	}
	return false
}

// CanAssign reports whether a picker may be assigned to an order in the given
// status. Once an order is checked the manifest is locked and assignment is
// blocked; ledger records are never assignable.
func CanAssign(status OrderStatus) bool {
	switch status {
	case domain.OrderStatusChecked, domain.OrderStatusDispatched,
		domain.OrderStatusPayment, domain.OrderStatusReturn:
		return false
	}
	return true
}

// reactivationStatuses are the parked states a picker assignment pulls back
// into the active pipeline.
var reactivationStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusFresh:    true,
	domain.OrderStatusPending:  true,
	domain.OrderStatusRejected: true,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	OrderItems    repositories.OrderItemRepository
	ReturnDetails repositories.ReturnDetailRepository
	Customers     repositories.CustomerRepository
	Inventory     repositories.InventoryRepository
	Counters      repositories.CounterRepository
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	IDGenerator   func() string
	Events        EventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	orderItems    repositories.OrderItemRepository
	returnDetails repositories.ReturnDetailRepository
	customers     repositories.CustomerRepository
	inventory     repositories.InventoryRepository
	counters      repositories.CounterRepository
	unitOfWork    repositories.UnitOfWork
	clock         func() time.Time
	newID         func() string
	events        EventPublisher
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.OrderItems == nil {
		return nil, errors.New("order service: order item repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		orderItems:    deps.OrderItems,
		returnDetails: deps.ReturnDetails,
		customers:     deps.Customers,
		inventory:     deps.Inventory,
		counters:      deps.Counters,
		unitOfWork:    unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: at least one line is required", ErrOrderInvalidInput)
	}
	if s.customers == nil || s.inventory == nil {
		return Order{}, errors.New("order service: customer and inventory repositories are required for order creation")
	}
	if !CanPerform(cmd.Actor, ActionEditItems, Order{}) {
		return Order{}, fmt.Errorf("%w: role %s cannot place orders", ErrOrderForbidden, cmd.Actor.Role)
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	items := make([]OrderItem, 0, len(cmd.Lines))
	for i, line := range cmd.Lines {
		if line.OrderQty <= 0 {
			return Order{}, fmt.Errorf("%w: line %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		item, err := s.inventory.FindByID(ctx, strings.TrimSpace(line.ItemID))
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		items = append(items, OrderItem{
			Brand:        item.Brand,
			Model:        item.Model,
			Quality:      item.Quality,
			Category:     item.Category,
			OrderQty:     line.OrderQty,
			DisplayPrice: item.Price,
			FulfillQty:   0,
			FinalPrice:   item.Price,
		})
	}

	now := s.clock()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     number,
		Status:          domain.OrderStatusFresh,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerSubtext: customer.Subtext,
		TotalAmount:     0,
		InvoiceStatus:   domain.InvoiceStatusPending,
		Remarks:         remarksPolicy.Sanitize(strings.TrimSpace(cmd.Remarks)),
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actor := strings.TrimSpace(cmd.Actor.ID); actor != "" {
		order.Audit.CreatedBy = &actor
		order.Audit.UpdatedBy = &actor
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orderItems.Put(txCtx, order.ID, items); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	order.Items = items
	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventCreated,
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		ActorID:    cmd.Actor.ID,
		OccurredAt: now,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if opts.IncludeItems {
		items, err := s.orderItems.Get(ctx, id)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		order.Items = items
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	repoFilter := repositories.OrderListFilter{
		CustomerID:   strings.TrimSpace(filter.CustomerID),
		AssignedToID: strings.TrimSpace(filter.AssignedToID),
		Status:       filter.Status,
		DateRange:    domain.RangeQuery[time.Time]{From: filter.From, To: filter.To},
		Pagination:   filter.Pagination,
	}

	page, err := s.orders.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) AssignPicker(ctx context.Context, cmd AssignPickerCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	pickerID := strings.TrimSpace(cmd.PickerID)
	pickerName := strings.TrimSpace(cmd.PickerName)
	if pickerID == "" || pickerName == "" {
		return Order{}, fmt.Errorf("%w: picker id and name are required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !CanPerform(cmd.Actor, ActionAssign, order) {
		return Order{}, fmt.Errorf("%w: role %s cannot assign pickers", ErrOrderForbidden, cmd.Actor.Role)
	}
	if order.Ledger() {
		return Order{}, fmt.Errorf("%w: ledger records cannot be assigned", ErrOrderInvalidInput)
	}
	if !CanAssign(order.Status) {
		return Order{}, fmt.Errorf("%w: order %s is locked at status %s", ErrOrderInvalidTransition, order.ID, order.Status)
	}

	previous := order.Status
	order.AssignedTo = &pickerName
	order.AssignedToID = &pickerID
	if reactivationStatuses[order.Status] {
		order.Status = domain.OrderStatusAssigned
	}

	if err := s.persist(ctx, &order, cmd.Actor); err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventAssigned,
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		ActorID:    cmd.Actor.ID,
		OccurredAt: order.UpdatedAt,
	})
	s.logger(ctx, "order.assigned", map[string]any{
		"orderId":  order.ID,
		"pickerId": pickerID,
		"from":     string(previous),
		"to":       string(order.Status),
	})
	return order, nil
}

func (s *orderService) Progress(ctx context.Context, cmd ProgressOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !CanPerform(cmd.Actor, ActionProgress, order) {
		return Order{}, fmt.Errorf("%w: role %s cannot progress order %s at status %s", ErrOrderForbidden, cmd.Actor.Role, order.ID, order.Status)
	}
	if !CanProgress(order.Status) {
		return Order{}, fmt.Errorf("%w: order %s cannot progress from %s", ErrOrderInvalidTransition, order.ID, order.Status)
	}

	previous := order.Status
	order.Status = NextStatus(order.Status)

	if err := s.persist(ctx, &order, cmd.Actor); err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventStatusChanged,
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		ActorID:    cmd.Actor.ID,
		OccurredAt: order.UpdatedAt,
	})
	s.logger(ctx, "order.progressed", map[string]any{
		"orderId": order.ID,
		"from":    string(previous),
		"to":      string(order.Status),
	})
	return order, nil
}

func (s *orderService) Reject(ctx context.Context, cmd RejectOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !CanPerform(cmd.Actor, ActionReject, order) {
		return Order{}, fmt.Errorf("%w: role %s cannot reject orders", ErrOrderForbidden, cmd.Actor.Role)
	}
	switch order.Status {
	case domain.OrderStatusRejected:
		return Order{}, fmt.Errorf("%w: order %s is already rejected", ErrOrderInvalidTransition, order.ID)
	case domain.OrderStatusDispatched, domain.OrderStatusPayment, domain.OrderStatusReturn:
		return Order{}, fmt.Errorf("%w: order %s is terminal at status %s", ErrOrderInvalidTransition, order.ID, order.Status)
	}

	order.Status = domain.OrderStatusRejected
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		order.Remarks = remarksPolicy.Sanitize(reason)
	}

	if err := s.persist(ctx, &order, cmd.Actor); err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventRejected,
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		ActorID:    cmd.Actor.ID,
		OccurredAt: order.UpdatedAt,
	})
	return order, nil
}

func (s *orderService) SetInvoiceStatus(ctx context.Context, cmd SetInvoiceStatusCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	switch cmd.InvoiceStatus {
	case domain.InvoiceStatusPending, domain.InvoiceStatusSent, domain.InvoiceStatusPaid, domain.InvoiceStatusOverdue:
	default:
		return Order{}, fmt.Errorf("%w: unknown invoice status %q", ErrOrderInvalidInput, cmd.InvoiceStatus)
	}

	order, err := s.orders.FindByID(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !CanPerform(cmd.Actor, ActionSetInvoiceStatus, order) {
		return Order{}, fmt.Errorf("%w: role %s cannot set invoice status", ErrOrderForbidden, cmd.Actor.Role)
	}

	order.InvoiceStatus = cmd.InvoiceStatus
	if err := s.persist(ctx, &order, cmd.Actor); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) UpdateRemarks(ctx context.Context, cmd UpdateRemarksCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !CanPerform(cmd.Actor, ActionEditRemarks, order) {
		return Order{}, fmt.Errorf("%w: role %s cannot edit remarks", ErrOrderForbidden, cmd.Actor.Role)
	}

	order.Remarks = remarksPolicy.Sanitize(strings.TrimSpace(cmd.Remarks))
	if err := s.persist(ctx, &order, cmd.Actor); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if !CanPerform(cmd.Actor, ActionDelete, order) {
		return fmt.Errorf("%w: role %s cannot delete orders", ErrOrderForbidden, cmd.Actor.Role)
	}

	// Side records cascade with the parent in one transaction so a failed
	// delete never leaves an order without its line items.
	if err := s.orders.DeleteCascade(ctx, id); err != nil {
		return s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventDeleted,
		OrderID:    order.ID,
		Status:     order.Status,
		CustomerID: order.CustomerID,
		ActorID:    cmd.Actor.ID,
		OccurredAt: s.clock(),
	})
	return nil
}

// persist stamps audit fields and writes the order back, translating revision
// conflicts into ErrOrderConflict.
func (s *orderService) persist(ctx context.Context, order *Order, actor Actor) error {
	order.UpdatedAt = s.clock()
	if id := strings.TrimSpace(actor.ID); id != "" {
		order.Audit.UpdatedBy = &id
	}
	if err := s.orders.Update(ctx, *order); err != nil {
		return s.mapRepositoryError(err)
	}
	order.Revision++
	return nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	counterID := fmt.Sprintf("orders-%d", now.Year())
	seq, err := s.counters.Next(ctx, counterID, 1)
	if err != nil {
		return "", fmt.Errorf("order number: %w", err)
	}
	return fmt.Sprintf("AF-%d-%05d", now.Year(), seq), nil
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish_failed", map[string]any{
			"orderId":   message.OrderID,
			"eventType": message.EventType,
			"error":     err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return err
}
