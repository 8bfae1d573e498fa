package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/apexflow/api/internal/domain"
	pfirestore "github.com/apexflow/api/internal/platform/firestore"
	"github.com/apexflow/api/internal/platform/pagination"
	"github.com/apexflow/api/internal/repositories"
)

const inventoryCollection = "inventory"

type inventoryDocument struct {
	Brand     string    `firestore:"brand"`
	Model     string    `firestore:"model"`
	Quality   string    `firestore:"quality,omitempty"`
	Category  string    `firestore:"category,omitempty"`
	Quantity  int       `firestore:"quantity"`
	Price     int64     `firestore:"price"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newInventoryDocument(item domain.InventoryItem) inventoryDocument {
	return inventoryDocument{
		Brand:     item.Brand,
		Model:     item.Model,
		Quality:   item.Quality,
		Category:  item.Category,
		Quantity:  item.Quantity,
		Price:     item.Price,
		CreatedAt: item.CreatedAt.UTC(),
		UpdatedAt: item.UpdatedAt.UTC(),
	}
}

func (d inventoryDocument) toDomain(id string) domain.InventoryItem {
	return domain.InventoryItem{
		ID:        id,
		Brand:     d.Brand,
		Model:     d.Model,
		Quality:   d.Quality,
		Category:  d.Category,
		Quantity:  d.Quantity,
		Price:     d.Price,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// InventoryRepository implements repositories.InventoryRepository backed by Firestore.
type InventoryRepository struct {
	provider *pfirestore.Provider
	items    *pfirestore.Collection[inventoryDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider: provider,
		items:    pfirestore.NewCollection[inventoryDocument](provider, inventoryCollection),
	}, nil
}

// Insert creates the inventory document.
func (r *InventoryRepository) Insert(ctx context.Context, item domain.InventoryItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("inventory insert: id is required")
	}
	_, err := r.items.Create(ctx, item.ID, newInventoryDocument(item))
	return err
}

// Update rewrites the inventory document.
func (r *InventoryRepository) Update(ctx context.Context, item domain.InventoryItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("inventory update: id is required")
	}
	_, err := r.items.Set(ctx, item.ID, newInventoryDocument(item))
	return err
}

// AdjustQuantity applies delta to the stored quantity inside a transaction so
// concurrent adjustments never drop stock below zero.
func (r *InventoryRepository) AdjustQuantity(ctx context.Context, itemID string, delta int) (domain.InventoryItem, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.InventoryItem{}, repositories.NewStockError(repositories.StockErrorInvalidInput, "item id is required", nil)
	}

	var updated domain.InventoryItem
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.items.DocRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return repositories.NewStockError(repositories.StockErrorItemNotFound, fmt.Sprintf("inventory item %s not found", id), err)
		}
		if err != nil {
			return err
		}

		var doc inventoryDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore inventory decode %s: %w", id, err)
		}
		next := doc.Quantity + delta
		if next < 0 {
			return repositories.NewStockError(repositories.StockErrorInsufficient,
				fmt.Sprintf("adjustment of %d exceeds available quantity %d", delta, doc.Quantity), nil)
		}

		doc.Quantity = next
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(id)
		return nil
	})
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			if stockErr.Op == "" {
				stockErr.Op = "inventory.adjust"
			}
			return domain.InventoryItem{}, stockErr
		}
		return domain.InventoryItem{}, pfirestore.WrapError("inventory.adjust", err)
	}
	return updated, nil
}

// FindByID fetches a single inventory item by document id.
func (r *InventoryRepository) FindByID(ctx context.Context, itemID string) (domain.InventoryItem, error) {
	doc, err := r.items.Get(ctx, itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns a page of inventory items, newest first.
func (r *InventoryRepository) List(ctx context.Context, filter repositories.InventoryListFilter) (domain.CursorPage[domain.InventoryItem], error) {
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.InventoryItem]{}, err
	}

	docs, err := r.items.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Brand != "" {
			query = query.Where("brand", "==", filter.Brand)
		}
		if filter.Category != "" {
			query = query.Where("category", "==", filter.Category)
		}
		query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			query = query.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.InventoryItem]{}, err
	}

	page := domain.CursorPage[domain.InventoryItem]{}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.InventoryItem]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
