package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/apexflow/api/internal/platform/firestore"
	"github.com/apexflow/api/internal/repositories"
)

// Registry wires every Firestore-backed repository over a shared provider.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	orderItems    *OrderItemRepository
	customers     *CustomerRepository
	inventory     *InventoryRepository
	inventoryLogs *InventoryLogRepository
	returnDetails *ReturnDetailRepository
	links         *LinkRepository
	counters      *CounterRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the full repository set backed by the given provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	orderItems, err := NewOrderItemRepository(provider)
	if err != nil {
		return nil, err
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, err
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	inventoryLogs, err := NewInventoryLogRepository(provider)
	if err != nil {
		return nil, err
	}
	returnDetails, err := NewReturnDetailRepository(provider)
	if err != nil {
		return nil, err
	}
	links, err := NewLinkRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		orders:        orders,
		orderItems:    orderItems,
		customers:     customers,
		inventory:     inventory,
		inventoryLogs: inventoryLogs,
		returnDetails: returnDetails,
		links:         links,
		counters:      counters,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) OrderItems() repositories.OrderItemRepository { return r.orderItems }
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }
func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }
func (r *Registry) InventoryLogs() repositories.InventoryLogRepository { return r.inventoryLogs }
func (r *Registry) ReturnDetails() repositories.ReturnDetailRepository { return r.returnDetails }
func (r *Registry) Links() repositories.LinkRepository { return r.links }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// RunInTx executes fn as a best-effort sequential unit. Repositories that need
// atomicity (order revision checks, counters) open their own Firestore
// transactions internally, and Firestore transactions do not nest, so this
// boundary runs the steps in order and stops at the first failure.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
