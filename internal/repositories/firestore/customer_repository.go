package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/apexflow/api/internal/domain"
	pfirestore "github.com/apexflow/api/internal/platform/firestore"
	"github.com/apexflow/api/internal/platform/pagination"
	"github.com/apexflow/api/internal/repositories"
)

const customersCollection = "customers"

type customerDocument struct {
	Name      string    `firestore:"name"`
	Subtext   string    `firestore:"subtext,omitempty"`
	FirmID    string    `firestore:"firmId,omitempty"`
	Balance   int64     `firestore:"balance"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newCustomerDocument(customer domain.Customer) customerDocument {
	return customerDocument{
		Name:      customer.Name,
		Subtext:   customer.Subtext,
		FirmID:    customer.FirmID,
		Balance:   customer.Balance,
		CreatedAt: customer.CreatedAt.UTC(),
		UpdatedAt: customer.UpdatedAt.UTC(),
	}
}

func (d customerDocument) toDomain(id string) domain.Customer {
	return domain.Customer{
		ID:        id,
		Name:      d.Name,
		Subtext:   d.Subtext,
		FirmID:    d.FirmID,
		Balance:   d.Balance,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CustomerRepository implements repositories.CustomerRepository backed by Firestore.
type CustomerRepository struct {
	customers *pfirestore.Collection[customerDocument]
}

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	return &CustomerRepository{
		customers: pfirestore.NewCollection[customerDocument](provider, customersCollection),
	}, nil
}

// Insert creates the customer document.
func (r *CustomerRepository) Insert(ctx context.Context, customer domain.Customer) error {
	if strings.TrimSpace(customer.ID) == "" {
		return errors.New("customer insert: id is required")
	}
	_, err := r.customers.Create(ctx, customer.ID, newCustomerDocument(customer))
	return err
}

// Update rewrites the customer document.
func (r *CustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	if strings.TrimSpace(customer.ID) == "" {
		return errors.New("customer update: id is required")
	}
	_, err := r.customers.Set(ctx, customer.ID, newCustomerDocument(customer))
	return err
}

// FindByID fetches a single customer by document id.
func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	doc, err := r.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByFirm returns every customer sharing the firm, oldest first.
func (r *CustomerRepository) ListByFirm(ctx context.Context, firmID string) ([]domain.Customer, error) {
	if strings.TrimSpace(firmID) == "" {
		return nil, errors.New("customer list: firm id is required")
	}
	docs, err := r.customers.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("firmId", "==", firmID).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	customers := make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		customers = append(customers, doc.Data.toDomain(doc.ID))
	}
	return customers, nil
}

// List returns a page of customers, newest first.
func (r *CustomerRepository) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, err
	}

	docs, err := r.customers.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.FirmID != "" {
			query = query.Where("firmId", "==", filter.FirmID)
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			query = query.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, err
	}

	page := domain.CursorPage[domain.Customer]{}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Customer]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
