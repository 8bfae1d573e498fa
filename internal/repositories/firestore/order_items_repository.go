package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/apexflow/api/internal/domain"
	pfirestore "github.com/apexflow/api/internal/platform/firestore"
	"github.com/apexflow/api/internal/repositories"
)

const orderDetailsCollection = "orderDetails"

// orderDetailDocument holds the full line set for one order as a single
// side-collection document keyed by the order id.
type orderDetailDocument struct {
	Items     []orderItemEntry `firestore:"items"`
	UpdatedAt time.Time        `firestore:"updatedAt"`
}

type orderItemEntry struct {
	Brand        string `firestore:"brand"`
	Model        string `firestore:"model"`
	Quality      string `firestore:"quality,omitempty"`
	Category     string `firestore:"category,omitempty"`
	OrderQty     int    `firestore:"orderQty"`
	DisplayPrice int64  `firestore:"displayPrice"`
	FulfillQty   int    `firestore:"fulfillQty"`
	FinalPrice   int64  `firestore:"finalPrice"`
}

func newOrderItemEntry(item domain.OrderItem) orderItemEntry {
	return orderItemEntry(item)
}

func (e orderItemEntry) toDomain() domain.OrderItem {
	return domain.OrderItem(e)
}

// OrderItemRepository implements repositories.OrderItemRepository backed by Firestore.
type OrderItemRepository struct {
	details *pfirestore.Collection[orderDetailDocument]
}

// NewOrderItemRepository constructs a Firestore-backed order item repository.
func NewOrderItemRepository(provider *pfirestore.Provider) (*OrderItemRepository, error) {
	if provider == nil {
		return nil, errors.New("order item repository requires firestore provider")
	}
	return &OrderItemRepository{
		details: pfirestore.NewCollection[orderDetailDocument](provider, orderDetailsCollection),
	}, nil
}

// Get returns the order's lines. Orders without a detail document, such as
// ledger audit records, yield an empty slice.
func (r *OrderItemRepository) Get(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	doc, err := r.details.Get(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	items := make([]domain.OrderItem, 0, len(doc.Data.Items))
	for _, entry := range doc.Data.Items {
		items = append(items, entry.toDomain())
	}
	return items, nil
}

// Put replaces the order's full line set.
func (r *OrderItemRepository) Put(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.New("order items put: order id is required")
	}
	entries := make([]orderItemEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, newOrderItemEntry(item))
	}
	_, err := r.details.Set(ctx, orderID, orderDetailDocument{
		Items:     entries,
		UpdatedAt: time.Now().UTC(),
	})
	return err
}
