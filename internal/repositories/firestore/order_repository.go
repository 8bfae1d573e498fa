package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/apexflow/api/internal/domain"
	pfirestore "github.com/apexflow/api/internal/platform/firestore"
	"github.com/apexflow/api/internal/platform/pagination"
	"github.com/apexflow/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber     string    `firestore:"orderNumber"`
	Status          string    `firestore:"status"`
	CustomerID      string    `firestore:"customerId"`
	CustomerName    string    `firestore:"customerName"`
	CustomerSubtext string    `firestore:"customerSubtext,omitempty"`
	AssignedTo      *string   `firestore:"assignedTo"`
	AssignedToID    *string   `firestore:"assignedToId"`
	TotalAmount     int64     `firestore:"totalAmount"`
	InvoiceStatus   string    `firestore:"invoiceStatus,omitempty"`
	Remarks         string    `firestore:"remarks,omitempty"`
	Revision        int64     `firestore:"revision"`
	CreatedBy       *string   `firestore:"createdBy,omitempty"`
	UpdatedBy       *string   `firestore:"updatedBy,omitempty"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	return orderDocument{
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		CustomerID:      order.CustomerID,
		CustomerName:    order.CustomerName,
		CustomerSubtext: order.CustomerSubtext,
		AssignedTo:      order.AssignedTo,
		AssignedToID:    order.AssignedToID,
		TotalAmount:     order.TotalAmount,
		InvoiceStatus:   string(order.InvoiceStatus),
		Remarks:         order.Remarks,
		Revision:        order.Revision,
		CreatedBy:       order.Audit.CreatedBy,
		UpdatedBy:       order.Audit.UpdatedBy,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:              id,
		OrderNumber:     d.OrderNumber,
		Status:          domain.OrderStatus(d.Status),
		CustomerID:      d.CustomerID,
		CustomerName:    d.CustomerName,
		CustomerSubtext: d.CustomerSubtext,
		AssignedTo:      d.AssignedTo,
		AssignedToID:    d.AssignedToID,
		TotalAmount:     d.TotalAmount,
		InvoiceStatus:   domain.InvoiceStatus(d.InvoiceStatus),
		Remarks:         d.Remarks,
		Revision:        d.Revision,
		Audit:           domain.OrderAudit{CreatedBy: d.CreatedBy, UpdatedBy: d.UpdatedBy},
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
	}, nil
}

// Insert creates the order document, failing when the id is already taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: id is required")
	}
	_, err := r.orders.Create(ctx, order.ID, newOrderDocument(order))
	return err
}

// Update rewrites the order document, rejecting writes whose revision does
// not match the stored one. The caller's revision is the one it read; the
// stored document ends up one ahead.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: id is required")
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocRef(ctx, order.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var stored orderDocument
		if err := snap.DataTo(&stored); err != nil {
			return fmt.Errorf("decode order %s: %w", order.ID, err)
		}
		if stored.Revision != order.Revision {
			return pfirestore.ConflictError("orders.update",
				fmt.Errorf("order %s revision %d does not match stored %d", order.ID, order.Revision, stored.Revision))
		}

		doc := newOrderDocument(order)
		doc.Revision = stored.Revision + 1
		return tx.Set(ref, doc)
	})
}

// FindByID fetches a single order by document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns a page of orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.CustomerID != "" {
			query = query.Where("customerId", "==", filter.CustomerID)
		}
		if filter.AssignedToID != "" {
			query = query.Where("assignedToId", "==", filter.AssignedToID)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			query = query.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			query = query.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListByStatus returns every order with the given status, oldest first.
func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("status", "==", string(status)).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

// ListByCustomer returns every order belonging to the customer, oldest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("order list: customer id is required")
	}
	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("customerId", "==", customerID).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

// DeleteCascade removes the order together with its line-item and
// return-detail documents in one transaction. Either all three documents go
// or none do; documents that never existed are deleted as no-ops.
func (r *OrderRepository) DeleteCascade(ctx context.Context, orderID string) error {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order delete: id is required")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		for _, name := range []string{ordersCollection, orderDetailsCollection, returnDetailsCollection} {
			if err := tx.Delete(client.Collection(name).Doc(id)); err != nil {
				return err
			}
		}
		return nil
	})
}
