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
)

const inventoryLogsCollection = "inventoryLogs"

type inventoryLogDocument struct {
	ItemID         string    `firestore:"itemId"`
	QuantityChange int       `firestore:"quantityChange"`
	CurrentStock   int       `firestore:"currentStock"`
	Status         string    `firestore:"status"`
	Remarks        string    `firestore:"remarks,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func (d inventoryLogDocument) toDomain(id string) domain.InventoryLog {
	return domain.InventoryLog{
		ID:             id,
		ItemID:         d.ItemID,
		QuantityChange: d.QuantityChange,
		CurrentStock:   d.CurrentStock,
		Status:         domain.InventoryLogStatus(d.Status),
		Remarks:        d.Remarks,
		CreatedAt:      d.CreatedAt,
	}
}

// InventoryLogRepository implements repositories.InventoryLogRepository backed by Firestore.
type InventoryLogRepository struct {
	logs *pfirestore.Collection[inventoryLogDocument]
}

// NewInventoryLogRepository constructs a Firestore-backed inventory log repository.
func NewInventoryLogRepository(provider *pfirestore.Provider) (*InventoryLogRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory log repository requires firestore provider")
	}
	return &InventoryLogRepository{
		logs: pfirestore.NewCollection[inventoryLogDocument](provider, inventoryLogsCollection),
	}, nil
}

// Append creates the immutable audit entry.
func (r *InventoryLogRepository) Append(ctx context.Context, entry domain.InventoryLog) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("inventory log append: id is required")
	}
	_, err := r.logs.Create(ctx, entry.ID, inventoryLogDocument{
		ItemID:         entry.ItemID,
		QuantityChange: entry.QuantityChange,
		CurrentStock:   entry.CurrentStock,
		Status:         string(entry.Status),
		Remarks:        entry.Remarks,
		CreatedAt:      entry.CreatedAt.UTC(),
	})
	return err
}

// ListByItem returns a page of audit entries for the item, newest first.
func (r *InventoryLogRepository) ListByItem(ctx context.Context, itemID string, pager domain.Pagination) (domain.CursorPage[domain.InventoryLog], error) {
	if strings.TrimSpace(itemID) == "" {
		return domain.CursorPage[domain.InventoryLog]{}, errors.New("inventory log list: item id is required")
	}
	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.InventoryLog]{}, err
	}

	docs, err := r.logs.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.
			Where("itemId", "==", itemID).
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			query = query.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.InventoryLog]{}, err
	}

	page := domain.CursorPage[domain.InventoryLog]{}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	if len(page.Items) > pageSize {
		page.Items = page.Items[:pageSize]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.InventoryLog]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}
