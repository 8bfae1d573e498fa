package services

import (
	"context"
	"time"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination            = domain.Pagination
	SortOrder             = domain.SortOrder
	Order                 = domain.Order
	OrderStatus           = domain.OrderStatus
	OrderItem             = domain.OrderItem
	OrderAudit            = domain.OrderAudit
	InvoiceStatus         = domain.InvoiceStatus
	Role                  = domain.Role
	Customer              = domain.Customer
	CustomerStatement     = domain.CustomerStatement
	FirmStatement         = domain.FirmStatement
	InventoryItem         = domain.InventoryItem
	InventoryItemSnapshot = domain.InventoryItemSnapshot
	InventoryLog          = domain.InventoryLog
	ReturnLine            = domain.ReturnLine
	StockRoomKey          = domain.StockRoomKey
	StockRoomEntry        = domain.StockRoomEntry
	StockContribution     = domain.StockContribution
	StoreLink             = domain.StoreLink
	SystemHealthReport    = domain.SystemHealthReport
)

// Actor identifies the authenticated staff member performing an operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// OrderService drives the pick/pack/check/dispatch pipeline for customer orders.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	AssignPicker(ctx context.Context, cmd AssignPickerCommand) (Order, error)
	Progress(ctx context.Context, cmd ProgressOrderCommand) (Order, error)
	Reject(ctx context.Context, cmd RejectOrderCommand) (Order, error)
	SetInvoiceStatus(ctx context.Context, cmd SetInvoiceStatusCommand) (Order, error)
	UpdateRemarks(ctx context.Context, cmd UpdateRemarksCommand) (Order, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
}

// NewOrderLine is one requested line at order placement time. Descriptive
// fields and prices are snapshotted from inventory.
type NewOrderLine struct {
	ItemID   string
	OrderQty int
}

// CreateOrderCommand places a fresh order for a customer.
type CreateOrderCommand struct {
	CustomerID string
	Lines      []NewOrderLine
	Remarks    string
	Actor      Actor
}

// OrderReadOptions tunes a single-order read.
type OrderReadOptions struct {
	IncludeItems bool
}

// OrderListFilter narrows and pages order listings.
type OrderListFilter struct {
	CustomerID   string
	AssignedToID string
	Status       []OrderStatus
	From         *time.Time
	To           *time.Time
	Pagination   Pagination
}

// AssignPickerCommand assigns (or reassigns) the picker working an order.
type AssignPickerCommand struct {
	OrderID    string
	PickerID   string
	PickerName string
	Actor      Actor
}

// ProgressOrderCommand advances an order one step along the pipeline.
type ProgressOrderCommand struct {
	OrderID string
	Actor   Actor
}

// RejectOrderCommand marks an order rejected while keeping it on record.
type RejectOrderCommand struct {
	OrderID string
	Reason  string
	Actor   Actor
}

// SetInvoiceStatusCommand updates the invoicing state independently of the pipeline.
type SetInvoiceStatusCommand struct {
	OrderID       string
	InvoiceStatus InvoiceStatus
	Actor         Actor
}

// UpdateRemarksCommand replaces the free-text remarks on an order.
type UpdateRemarksCommand struct {
	OrderID string
	Remarks string
	Actor   Actor
}

// DeleteOrderCommand removes an order together with its side records.
type DeleteOrderCommand struct {
	OrderID string
	Actor   Actor
}

// FulfillmentService mutates line items and keeps order totals consistent.
type FulfillmentService interface {
	GetItems(ctx context.Context, orderID string) ([]OrderItem, error)
	SetFulfillQty(ctx context.Context, cmd SetFulfillQtyCommand) (Order, error)
	SetFinalPrice(ctx context.Context, cmd SetFinalPriceCommand) (Order, error)
	FulfillAll(ctx context.Context, cmd FulfillAllCommand) (Order, error)
	ApplyBulkDiscount(ctx context.Context, cmd BulkDiscountCommand) (Order, error)
}

// SetFulfillQtyCommand sets the fulfilled quantity on one line, addressed by index.
type SetFulfillQtyCommand struct {
	OrderID    string
	LineIndex  int
	FulfillQty int
	Actor      Actor
}

// SetFinalPriceCommand sets the charged per-unit price on one line, in tenths.
type SetFinalPriceCommand struct {
	OrderID    string
	LineIndex  int
	FinalPrice int64
	Actor      Actor
}

// FulfillAllCommand resets every line to the requested quantity at catalog
// price. Destructive when prior edits exist; Confirm acknowledges the loss.
type FulfillAllCommand struct {
	OrderID string
	Confirm bool
	Actor   Actor
}

// BulkDiscountCommand subtracts Amount (tenths) from every line's display
// price to produce new final prices, floored at zero.
type BulkDiscountCommand struct {
	OrderID string
	Amount  int64
	Actor   Actor
}

// LedgerService keeps customer balances consistent with payments, returns and
// rejections, and produces statement views.
type LedgerService interface {
	RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Order, error)
	CustomerStatement(ctx context.Context, customerID string) (CustomerStatement, error)
	FirmStatement(ctx context.Context, firmID string) (FirmStatement, error)
}

// RecordPaymentCommand credits a customer's balance and logs the payment.
type RecordPaymentCommand struct {
	CustomerID string
	Amount     int64
	Remarks    string
	Actor      Actor
}

// ReturnService records goods returns as customer credit and manages the
// derived returned-stock aggregate.
type ReturnService interface {
	CreateReturn(ctx context.Context, cmd CreateReturnCommand) (Order, error)
	StockRoom(ctx context.Context) ([]StockRoomEntry, error)
	RemoveStock(ctx context.Context, cmd RemoveStockCommand) (RemoveStockResult, error)
}

// ReturnCartLine is one returned item in a cart-mode goods return.
type ReturnCartLine struct {
	ItemID      string
	ReturnQty   int
	ReturnPrice int64
}

// CreateReturnCommand records a goods return. Cart mode carries Lines; direct
// mode carries Amount and no lines.
type CreateReturnCommand struct {
	CustomerID string
	Lines      []ReturnCartLine
	Amount     int64
	Remarks    string
	Actor      Actor
}

// RemoveStockCommand removes quantity from a returned-stock aggregate bucket,
// consuming the oldest contributing returns first.
type RemoveStockCommand struct {
	Brand    string
	Model    string
	Quality  string
	Quantity int
	Actor    Actor
}

// RemoveStockResult reports which return orders the removal touched.
type RemoveStockResult struct {
	Removed       int
	UpdatedOrders []string
	DeletedOrders []string
}

// InventoryService owns authoritative stock records and their audit trail.
type InventoryService interface {
	CreateItem(ctx context.Context, cmd CreateInventoryItemCommand) (InventoryItem, error)
	GetItem(ctx context.Context, itemID string) (InventoryItem, error)
	ListItems(ctx context.Context, filter InventoryListFilter) (domain.CursorPage[InventoryItem], error)
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (InventoryItem, error)
	ListLogs(ctx context.Context, itemID string, pager Pagination) (domain.CursorPage[InventoryLog], error)
}

// CreateInventoryItemCommand registers a new product variant.
type CreateInventoryItemCommand struct {
	Brand    string
	Model    string
	Quality  string
	Category string
	Quantity int
	Price    int64
	Actor    Actor
}

// InventoryListFilter narrows and pages inventory listings.
type InventoryListFilter struct {
	Brand      string
	Category   string
	Pagination Pagination
}

// AdjustStockCommand applies a signed quantity change to an inventory item.
type AdjustStockCommand struct {
	ItemID  string
	Delta   int
	Remarks string
	Actor   Actor
}

// CustomerService manages customer accounts. Balances are mutated only through
// the ledger and return flows.
type CustomerService interface {
	CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (Customer, error)
	GetCustomer(ctx context.Context, customerID string) (Customer, error)
	ListCustomers(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[Customer], error)
}

// CreateCustomerCommand registers a customer account.
type CreateCustomerCommand struct {
	Name    string
	Subtext string
	FirmID  string
	Actor   Actor
}

// CustomerListFilter narrows and pages customer listings.
type CustomerListFilter struct {
	FirmID     string
	Pagination Pagination
}

// EventPublisher fans pipeline, ledger and stock events out to downstream
// consumers. Implementations return the broker-assigned message id.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
	PublishLedgerEvent(ctx context.Context, message LedgerEventMessage) (string, error)
	PublishStockEvent(ctx context.Context, message StockEventMessage) (string, error)
}

// OrderEventMessage describes an order lifecycle event.
type OrderEventMessage struct {
	EventType  string             `json:"eventType"`
	OrderID    string             `json:"orderId"`
	Status     domain.OrderStatus `json:"status"`
	CustomerID string             `json:"customerId,omitempty"`
	ActorID    string             `json:"actorId,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// LedgerEventMessage describes a customer-balance mutation event.
type LedgerEventMessage struct {
	EventType  string             `json:"eventType"`
	EntryID    string             `json:"entryId"`
	CustomerID string             `json:"customerId"`
	Amount     int64              `json:"amount"`
	Status     domain.OrderStatus `json:"status"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// StockEventMessage describes a returned-stock or inventory mutation event.
type StockEventMessage struct {
	EventType string `json:"eventType"`
	OrderID   string `json:"orderId,omitempty"`
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	Quality   string `json:"quality,omitempty"`
	Category  string `json:"category,omitempty"`
	Qty       int    `json:"qty"`
}

// noopUnitOfWork satisfies repositories.UnitOfWork when no transactional
// boundary is configured.
type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

var _ repositories.UnitOfWork = noopUnitOfWork{}
