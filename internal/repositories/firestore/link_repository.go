package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/apexflow/api/internal/domain"
	pfirestore "github.com/apexflow/api/internal/platform/firestore"
)

const storeLinksCollection = "storeLinks"

type storeLinkDocument struct {
	Slug      string    `firestore:"slug"`
	ItemIDs   []string  `firestore:"itemIds"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d storeLinkDocument) toDomain(id string) domain.StoreLink {
	return domain.StoreLink{
		ID:        id,
		Slug:      d.Slug,
		ItemIDs:   append([]string(nil), d.ItemIDs...),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// LinkRepository implements repositories.LinkRepository backed by Firestore.
type LinkRepository struct {
	links *pfirestore.Collection[storeLinkDocument]
}

// NewLinkRepository constructs a Firestore-backed store link repository.
func NewLinkRepository(provider *pfirestore.Provider) (*LinkRepository, error) {
	if provider == nil {
		return nil, errors.New("link repository requires firestore provider")
	}
	return &LinkRepository{
		links: pfirestore.NewCollection[storeLinkDocument](provider, storeLinksCollection),
	}, nil
}

// Put upserts the link document.
func (r *LinkRepository) Put(ctx context.Context, link domain.StoreLink) error {
	if strings.TrimSpace(link.ID) == "" {
		return errors.New("link put: id is required")
	}
	_, err := r.links.Set(ctx, link.ID, storeLinkDocument{
		Slug:      link.Slug,
		ItemIDs:   append([]string(nil), link.ItemIDs...),
		CreatedAt: link.CreatedAt.UTC(),
		UpdatedAt: link.UpdatedAt.UTC(),
	})
	return err
}

// FindByID fetches a single link by document id.
func (r *LinkRepository) FindByID(ctx context.Context, linkID string) (domain.StoreLink, error) {
	doc, err := r.links.Get(ctx, linkID)
	if err != nil {
		return domain.StoreLink{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListReferencingItem returns every link whitelisting the given item.
func (r *LinkRepository) ListReferencingItem(ctx context.Context, itemID string) ([]domain.StoreLink, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, errors.New("link list: item id is required")
	}
	docs, err := r.links.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("itemIds", "array-contains", itemID)
	})
	if err != nil {
		return nil, err
	}
	links := make([]domain.StoreLink, 0, len(docs))
	for _, doc := range docs {
		links = append(links, doc.Data.toDomain(doc.ID))
	}
	return links, nil
}
