package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Document represents a strongly typed Firestore document with metadata timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// MutationResult captures the update timestamp returned by Firestore mutations.
type MutationResult struct {
	UpdateTime time.Time
}

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection provides typed helpers wrapping Firestore collection access.
// Values are encoded and decoded with Firestore's native struct mapping.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection constructs a Collection bound to the named Firestore collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{
		provider: provider,
		name:     strings.TrimSpace(name),
	}
}

// Name returns the bound collection name.
func (c *Collection[T]) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Create inserts the value under the provided document ID, failing when the
// document already exists.
func (c *Collection[T]) Create(ctx context.Context, id string, value T) (MutationResult, error) {
	doc, err := c.docRef(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	result, err := doc.Create(ctx, value)
	if err != nil {
		return MutationResult{}, WrapError(c.op("create"), err)
	}
	return MutationResult{UpdateTime: result.UpdateTime}, nil
}

// Set upserts the given value under the provided document ID.
func (c *Collection[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) (MutationResult, error) {
	doc, err := c.docRef(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	result, err := doc.Set(ctx, value, opts...)
	if err != nil {
		return MutationResult{}, WrapError(c.op("set"), err)
	}
	return MutationResult{UpdateTime: result.UpdateTime}, nil
}

// Update applies partial updates to the document.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update, opts ...firestore.Precondition) (MutationResult, error) {
	doc, err := c.docRef(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	result, err := doc.Update(ctx, updates, opts...)
	if err != nil {
		return MutationResult{}, WrapError(c.op("update"), err)
	}
	return MutationResult{UpdateTime: result.UpdateTime}, nil
}

// Get fetches the document by ID and decodes it into the strongly typed entity.
func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	doc, err := c.docRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := doc.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.op("get"), err)
	}
	return decodeSnapshot[T](snapshot, c.op("get"))
}

// Delete removes the document. Deleting a missing document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string, opts ...firestore.Precondition) error {
	doc, err := c.docRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Delete(ctx, opts...); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

// Query executes a collection query and returns the decoded documents.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var docs []Document[T]
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		decoded, err := decodeSnapshot[T](snapshot, c.op("query"))
		if err != nil {
			return nil, err
		}
		docs = append(docs, decoded)
	}
	return docs, nil
}

// Ref exposes the underlying collection reference for advanced scenarios.
func (c *Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError(c.op("collection"), errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError(c.op("collection"), errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

// DocRef exposes the underlying document reference for transactional access.
func (c *Collection[T]) DocRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	return c.docRef(ctx, id)
}

func (c *Collection[T]) docRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("document"), errors.New("firestore: document id is required"))
	}
	coll, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) op(action string) string {
	name := "firestore"
	if c != nil && c.name != "" {
		name = c.name
	}
	return fmt.Sprintf("%s.%s", name, action)
}

func decodeSnapshot[T any](snapshot *firestore.DocumentSnapshot, op string) (Document[T], error) {
	var data T
	if err := snapshot.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("%s: decode document %s: %w", op, snapshot.Ref.ID, err)
	}
	return Document[T]{
		ID:         snapshot.Ref.ID,
		Data:       data,
		CreateTime: snapshot.CreateTime,
		UpdateTime: snapshot.UpdateTime,
	}, nil
}
