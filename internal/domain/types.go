package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates the lifecycle states of an order record. The physical
// fulfillment pipeline runs fresh → assigned → packed → checked → dispatched;
// Payment and Return are terminal ledger statuses carried by audit records.
// The capitalised values match the strings stored by existing tenant data.
type OrderStatus string

const (
	// OrderStatusFresh indicates a newly placed order awaiting picker assignment.
	OrderStatusFresh OrderStatus = "fresh"
	// OrderStatusAssigned indicates a picker has been assigned.
	OrderStatusAssigned OrderStatus = "assigned"
	// OrderStatusPacked indicates the picker has packed the order.
	OrderStatusPacked OrderStatus = "packed"
	// OrderStatusChecked indicates the checker has verified the packed order.
	// From this point the item manifest and assignment are locked.
	OrderStatusChecked OrderStatus = "checked"
	// OrderStatusDispatched indicates the order left the warehouse. Terminal.
	OrderStatusDispatched OrderStatus = "dispatched"
	// OrderStatusPending indicates an order parked before re-entering the pipeline.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCancelled indicates a cancelled order that may be reactivated.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRejected marks an order excluded from financial summaries but
	// retained for display. Reactivated by reassigning a picker.
	OrderStatusRejected OrderStatus = "rejected"
	// OrderStatusPayment marks a ledger audit record for a customer payment. Terminal.
	OrderStatusPayment OrderStatus = "Payment"
	// OrderStatusReturn marks a ledger audit record for a goods return. Terminal.
	OrderStatusReturn OrderStatus = "Return"
)

// InvoiceStatus tracks invoicing independently of the fulfillment pipeline.
type InvoiceStatus string

const (
	// InvoiceStatusPending indicates no invoice has been issued yet.
	InvoiceStatusPending InvoiceStatus = "Pending"
	// InvoiceStatusSent indicates the invoice has been sent to the customer.
	InvoiceStatusSent InvoiceStatus = "Sent"
	// InvoiceStatusPaid indicates the invoice has been settled.
	InvoiceStatusPaid InvoiceStatus = "Paid"
	// InvoiceStatusOverdue indicates the invoice passed its due date unpaid.
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

// Role enumerates staff roles. Picker, checker and dispatcher are restricted
// roles limited to progressing orders at their own pipeline station.
type Role string

const (
	// RoleAdmin has unrestricted access to every operation.
	RoleAdmin Role = "admin"
	// RoleManager mirrors admin for order and ledger operations.
	RoleManager Role = "manager"
	// RolePicker may progress assigned orders that are assigned to them.
	RolePicker Role = "picker"
	// RoleChecker may progress packed orders.
	RoleChecker Role = "checker"
	// RoleDispatcher may progress checked orders.
	RoleDispatcher Role = "dispatcher"
)

// Valid reports whether the role is one of the known staff roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RolePicker, RoleChecker, RoleDispatcher:
		return true
	}
	return false
}

// Restricted reports whether the role is limited to station-level progression.
func (r Role) Restricted() bool {
	switch r {
	case RolePicker, RoleChecker, RoleDispatcher:
		return true
	}
	return false
}

// Order captures a single customer transaction: a pipeline order, or a
// Payment/Return ledger audit record. Monetary fields are int64 tenths of a
// rupee, the ledger's smallest unit (one decimal place by domain convention).
type Order struct {
	ID              string
	OrderNumber     string
	Status          OrderStatus
	CustomerID      string
	CustomerName    string
	CustomerSubtext string
	AssignedTo      *string
	AssignedToID    *string
	TotalAmount     int64
	InvoiceStatus   InvoiceStatus
	Remarks         string
	// Revision increments on every write; updates carrying a stale revision
	// are rejected as conflicts.
	Revision  int64
	Audit     OrderAudit
	CreatedAt time.Time
	UpdatedAt time.Time

	// Items is populated on demand from the line-item side collection.
	Items []OrderItem
}

// OrderAudit records the actors responsible for creating/updating the order.
type OrderAudit struct {
	CreatedBy *string
	UpdatedBy *string
}

// Ledger reports whether the order is a Payment/Return audit record rather
// than a physical pipeline order.
func (o Order) Ledger() bool {
	return o.Status == OrderStatusPayment || o.Status == OrderStatusReturn
}

// OrderItem is one line of an order, persisted in a side collection keyed by
// the order id. Descriptive fields are copied from inventory at add time.
type OrderItem struct {
	Brand        string
	Model        string
	Quality      string
	Category     string
	OrderQty     int
	DisplayPrice int64
	FulfillQty   int
	FinalPrice   int64
}

// Customer carries the running signed balance ledger (positive = credit owed
// to the customer). FirmID groups accounts sharing a consolidated view.
type Customer struct {
	ID        string
	Name      string
	Subtext   string
	FirmID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerStatement aggregates a customer's transaction history. Rejected
// orders appear in Orders with their amounts intact but contribute nothing
// to the totals.
type CustomerStatement struct {
	TotalPurchases int64
	TotalPayments  int64
	TotalReturns   int64
	Balance        int64
	Orders         []Order
}

// FirmStatement is the view-time aggregation over every customer sharing a
// firm: summed balances and the union of member transactions. Never stored.
type FirmStatement struct {
	FirmID  string
	Members []Customer
	Balance int64
	Orders  []Order
}

// InventoryItem is the authoritative stock record for one product variant.
type InventoryItem struct {
	ID        string
	Brand     string
	Model     string
	Quality   string
	Category  string
	Quantity  int
	Price     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot freezes the descriptive fields for embedding in return lines.
func (i InventoryItem) Snapshot() InventoryItemSnapshot {
	return InventoryItemSnapshot{
		ItemID:   i.ID,
		Brand:    i.Brand,
		Model:    i.Model,
		Quality:  i.Quality,
		Category: i.Category,
	}
}

// InventoryItemSnapshot is a point-in-time copy of an item's identity,
// embedded in return lines so history survives item edits.
type InventoryItemSnapshot struct {
	ItemID   string
	Brand    string
	Model    string
	Quality  string
	Category string
}

// InventoryLogStatus labels the direction of a stock adjustment.
type InventoryLogStatus string

const (
	// InventoryLogAdded records a stock increase.
	InventoryLogAdded InventoryLogStatus = "Added"
	// InventoryLogRemoved records a stock decrease.
	InventoryLogRemoved InventoryLogStatus = "Removed"
)

// InventoryLog is one append-only audit entry per stock adjustment event.
type InventoryLog struct {
	ID             string
	ItemID         string
	QuantityChange int
	CurrentStock   int
	Status         InventoryLogStatus
	Remarks        string
	CreatedAt      time.Time
}

// ReturnLine is one entry of a goods-return (GR) order's detail, persisted in
// a side collection keyed by the GR order id. The sum of ReturnQty×ReturnPrice
// across an order's lines equals the order's TotalAmount.
type ReturnLine struct {
	Item        InventoryItemSnapshot
	ReturnQty   int
	ReturnPrice int64
}

// StockRoomKey identifies a stock-room aggregate bucket. Components are
// Unicode case-folded so "Acme"/"ACME" land in the same bucket.
type StockRoomKey struct {
	Brand   string
	Model   string
	Quality string
}

// StockContribution is one historical GR contribution to an aggregate bucket,
// listed oldest first.
type StockContribution struct {
	OrderID      string
	CustomerName string
	Date         time.Time
	Qty          int
}

// StockRoomEntry is the derived "returned stock" aggregate for one product
// variant, recomputed from the full Return-order set.
type StockRoomEntry struct {
	Brand    string
	Model    string
	Quality  string
	Quantity int
	TotalVal int64
	History  []StockContribution
}

// StoreLink is a published portal link whitelisting inventory items by id.
// Items whose stock reaches zero are delisted automatically.
type StoreLink struct {
	ID        string
	Slug      string
	ItemIDs   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
