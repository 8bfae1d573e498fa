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

const returnDetailsCollection = "returnDetails"

// returnDetailDocument holds the full line set of one goods-return order,
// keyed by the GR order id.
type returnDetailDocument struct {
	Lines     []returnLineEntry `firestore:"lines"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

type returnLineEntry struct {
	ItemID      string `firestore:"itemId"`
	Brand       string `firestore:"brand"`
	Model       string `firestore:"model"`
	Quality     string `firestore:"quality,omitempty"`
	Category    string `firestore:"category,omitempty"`
	ReturnQty   int    `firestore:"returnQty"`
	ReturnPrice int64  `firestore:"returnPrice"`
}

func newReturnLineEntry(line domain.ReturnLine) returnLineEntry {
	return returnLineEntry{
		ItemID:      line.Item.ItemID,
		Brand:       line.Item.Brand,
		Model:       line.Item.Model,
		Quality:     line.Item.Quality,
		Category:    line.Item.Category,
		ReturnQty:   line.ReturnQty,
		ReturnPrice: line.ReturnPrice,
	}
}

func (e returnLineEntry) toDomain() domain.ReturnLine {
	return domain.ReturnLine{
		Item: domain.InventoryItemSnapshot{
			ItemID:   e.ItemID,
			Brand:    e.Brand,
			Model:    e.Model,
			Quality:  e.Quality,
			Category: e.Category,
		},
		ReturnQty:   e.ReturnQty,
		ReturnPrice: e.ReturnPrice,
	}
}

// ReturnDetailRepository implements repositories.ReturnDetailRepository backed by Firestore.
type ReturnDetailRepository struct {
	details *pfirestore.Collection[returnDetailDocument]
}

// NewReturnDetailRepository constructs a Firestore-backed return detail repository.
func NewReturnDetailRepository(provider *pfirestore.Provider) (*ReturnDetailRepository, error) {
	if provider == nil {
		return nil, errors.New("return detail repository requires firestore provider")
	}
	return &ReturnDetailRepository{
		details: pfirestore.NewCollection[returnDetailDocument](provider, returnDetailsCollection),
	}, nil
}

// Get returns the GR order's lines. A missing document yields an empty slice.
func (r *ReturnDetailRepository) Get(ctx context.Context, orderID string) ([]domain.ReturnLine, error) {
	doc, err := r.details.Get(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	lines := make([]domain.ReturnLine, 0, len(doc.Data.Lines))
	for _, entry := range doc.Data.Lines {
		lines = append(lines, entry.toDomain())
	}
	return lines, nil
}

// Put replaces the GR order's full line set.
func (r *ReturnDetailRepository) Put(ctx context.Context, orderID string, lines []domain.ReturnLine) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.New("return detail put: order id is required")
	}
	entries := make([]returnLineEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, newReturnLineEntry(line))
	}
	_, err := r.details.Set(ctx, orderID, returnDetailDocument{
		Lines:     entries,
		UpdatedAt: time.Now().UTC(),
	})
	return err
}
