package repositories

import (
	"context"
	"time"

	domain "github.com/apexflow/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Customers() CustomerRepository
	Inventory() InventoryRepository
	InventoryLogs() InventoryLogRepository
	ReturnDetails() ReturnDetailRepository
	Links() LinkRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers and provides query helpers.
// Update compares the stored revision against the one carried by the order
// and must fail with a conflict when they diverge.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// ListByStatus returns every order with the given status ordered by
	// creation time ascending. Used by the stock-room aggregation, which
	// must consume goods-return records oldest first.
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	// DeleteCascade removes the order and its line-item and return-detail
	// side documents atomically, so a failed delete never orphans either.
	DeleteCascade(ctx context.Context, orderID string) error
}

// OrderItemRepository owns the line-item side collection keyed by order id.
// Deletion goes through OrderRepository.DeleteCascade with the parent.
type OrderItemRepository interface {
	Get(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	Put(ctx context.Context, orderID string, items []domain.OrderItem) error
}

// CustomerRepository stores customer accounts and their running balances.
type CustomerRepository interface {
	Insert(ctx context.Context, customer domain.Customer) error
	Update(ctx context.Context, customer domain.Customer) error
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	ListByFirm(ctx context.Context, firmID string) ([]domain.Customer, error)
	List(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

// InventoryRepository stores authoritative stock records.
type InventoryRepository interface {
	Insert(ctx context.Context, item domain.InventoryItem) error
	Update(ctx context.Context, item domain.InventoryItem) error
	// AdjustQuantity atomically applies delta to the stored quantity and
	// returns the updated item. Failures surface as *StockError.
	AdjustQuantity(ctx context.Context, itemID string, delta int) (domain.InventoryItem, error)
	FindByID(ctx context.Context, itemID string) (domain.InventoryItem, error)
	List(ctx context.Context, filter InventoryListFilter) (domain.CursorPage[domain.InventoryItem], error)
}

// InventoryLogRepository appends immutable stock-adjustment audit entries.
type InventoryLogRepository interface {
	Append(ctx context.Context, entry domain.InventoryLog) error
	ListByItem(ctx context.Context, itemID string, pager domain.Pagination) (domain.CursorPage[domain.InventoryLog], error)
}

// ReturnDetailRepository owns the goods-return line side collection keyed by
// the GR order id.
type ReturnDetailRepository interface {
	Get(ctx context.Context, orderID string) ([]domain.ReturnLine, error)
	Put(ctx context.Context, orderID string, lines []domain.ReturnLine) error
}

// LinkRepository stores published store-portal links and supports the
// zero-stock delisting side effect.
type LinkRepository interface {
	Put(ctx context.Context, link domain.StoreLink) error
	FindByID(ctx context.Context, linkID string) (domain.StoreLink, error)
	ListReferencingItem(ctx context.Context, itemID string) ([]domain.StoreLink, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	CustomerID   string
	AssignedToID string
	Status       []domain.OrderStatus
	DateRange    domain.RangeQuery[time.Time]
	Pagination   domain.Pagination
}

type CustomerListFilter struct {
	FirmID     string
	Pagination domain.Pagination
}

type InventoryListFilter struct {
	Brand      string
	Category   string
	Pagination domain.Pagination
}
