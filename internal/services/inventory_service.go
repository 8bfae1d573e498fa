package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

const (
	stockEventAdjusted = "stock.adjusted"

	inventoryIDPrefix    = "inv_"
	inventoryLogIDPrefix = "ilog_"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound indicates the inventory item could not be located.
	ErrInventoryNotFound = errors.New("inventory: not found")
	// ErrInventoryForbidden indicates the actor's role does not permit the operation.
	ErrInventoryForbidden = errors.New("inventory: forbidden")
)

// InventoryServiceDeps bundles collaborators for the inventory service.
type InventoryServiceDeps struct {
	Inventory   repositories.InventoryRepository
	Logs        repositories.InventoryLogRepository
	Links       repositories.LinkRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	inventory repositories.InventoryRepository
	logs      repositories.InventoryLogRepository
	links     repositories.LinkRepository
	clock     func() time.Time
	newID     func() string
	events    EventPublisher
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}
	if deps.Logs == nil {
		return nil, errors.New("inventory service: inventory log repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		inventory: deps.Inventory,
		logs:      deps.Logs,
		links:     deps.Links,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *inventoryService) CreateItem(ctx context.Context, cmd CreateInventoryItemCommand) (InventoryItem, error) {
	brand := strings.TrimSpace(cmd.Brand)
	model := strings.TrimSpace(cmd.Model)
	if brand == "" || model == "" {
		return InventoryItem{}, fmt.Errorf("%w: brand and model are required", ErrInventoryInvalidInput)
	}
	if cmd.Quantity < 0 {
		return InventoryItem{}, fmt.Errorf("%w: quantity must not be negative", ErrInventoryInvalidInput)
	}
	if cmd.Price < 0 {
		return InventoryItem{}, fmt.Errorf("%w: price must not be negative", ErrInventoryInvalidInput)
	}
	if !CanPerform(cmd.Actor, ActionAdjustStock, Order{}) {
		return InventoryItem{}, fmt.Errorf("%w: role %s cannot manage inventory", ErrInventoryForbidden, cmd.Actor.Role)
	}

	now := s.clock()
	item := InventoryItem{
		ID:        inventoryIDPrefix + s.newID(),
		Brand:     brand,
		Model:     model,
		Quality:   strings.TrimSpace(cmd.Quality),
		Category:  strings.TrimSpace(cmd.Category),
		Quantity:  cmd.Quantity,
		Price:     cmd.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.inventory.Insert(ctx, item); err != nil {
		return InventoryItem{}, s.mapRepositoryError(err)
	}

	if item.Quantity > 0 {
		if err := s.logs.Append(ctx, domain.InventoryLog{
			ID:             inventoryLogIDPrefix + s.newID(),
			ItemID:         item.ID,
			QuantityChange: item.Quantity,
			CurrentStock:   item.Quantity,
			Status:         domain.InventoryLogAdded,
			Remarks:        "initial stock",
			CreatedAt:      now,
		}); err != nil {
			return InventoryItem{}, s.mapRepositoryError(err)
		}
	}
	return item, nil
}

func (s *inventoryService) GetItem(ctx context.Context, itemID string) (InventoryItem, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return InventoryItem{}, fmt.Errorf("%w: item id is required", ErrInventoryInvalidInput)
	}
	item, err := s.inventory.FindByID(ctx, id)
	if err != nil {
		return InventoryItem{}, s.mapRepositoryError(err)
	}
	return item, nil
}

func (s *inventoryService) ListItems(ctx context.Context, filter InventoryListFilter) (domain.CursorPage[InventoryItem], error) {
	page, err := s.inventory.List(ctx, repositories.InventoryListFilter{
		Brand:      strings.TrimSpace(filter.Brand),
		Category:   strings.TrimSpace(filter.Category),
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[InventoryItem]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// AdjustStock applies a signed quantity change, appends one audit log entry,
// and delists the item from store links when its stock reaches zero.
func (s *inventoryService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (InventoryItem, error) {
	id := strings.TrimSpace(cmd.ItemID)
	if id == "" {
		return InventoryItem{}, fmt.Errorf("%w: item id is required", ErrInventoryInvalidInput)
	}
	if cmd.Delta == 0 {
		return InventoryItem{}, fmt.Errorf("%w: delta must not be zero", ErrInventoryInvalidInput)
	}
	if !CanPerform(cmd.Actor, ActionAdjustStock, Order{}) {
		return InventoryItem{}, fmt.Errorf("%w: role %s cannot adjust stock", ErrInventoryForbidden, cmd.Actor.Role)
	}

	item, err := s.inventory.AdjustQuantity(ctx, id, cmd.Delta)
	if err != nil {
		return InventoryItem{}, s.mapStockError(err)
	}

	now := s.clock()
	status := domain.InventoryLogAdded
	if cmd.Delta < 0 {
		status = domain.InventoryLogRemoved
	}
	if err := s.logs.Append(ctx, domain.InventoryLog{
		ID:             inventoryLogIDPrefix + s.newID(),
		ItemID:         item.ID,
		QuantityChange: cmd.Delta,
		CurrentStock:   item.Quantity,
		Status:         status,
		Remarks:        remarksPolicy.Sanitize(strings.TrimSpace(cmd.Remarks)),
		CreatedAt:      now,
	}); err != nil {
		return InventoryItem{}, s.mapRepositoryError(err)
	}

	if item.Quantity == 0 {
		if err := s.delistItem(ctx, item.ID); err != nil {
			return InventoryItem{}, err
		}
	}

	if s.events != nil {
		if _, err := s.events.PublishStockEvent(ctx, StockEventMessage{
			EventType: stockEventAdjusted,
			Brand:     item.Brand,
			Model:     item.Model,
			Quality:   item.Quality,
			Category:  item.Category,
			Qty:       cmd.Delta,
		}); err != nil {
			s.logger(ctx, "inventory.event.publish_failed", map[string]any{
				"itemId": item.ID,
				"error":  err.Error(),
			})
		}
	}
	return item, nil
}

func (s *inventoryService) ListLogs(ctx context.Context, itemID string, pager Pagination) (domain.CursorPage[InventoryLog], error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.CursorPage[InventoryLog]{}, fmt.Errorf("%w: item id is required", ErrInventoryInvalidInput)
	}
	page, err := s.logs.ListByItem(ctx, id, pager)
	if err != nil {
		return domain.CursorPage[InventoryLog]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// delistItem removes the item id from every store link whitelisting it.
func (s *inventoryService) delistItem(ctx context.Context, itemID string) error {
	if s.links == nil {
		return nil
	}
	links, err := s.links.ListReferencingItem(ctx, itemID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	for _, link := range links {
		kept := link.ItemIDs[:0]
		for _, id := range link.ItemIDs {
			if id != itemID {
				kept = append(kept, id)
			}
		}
		link.ItemIDs = kept
		link.UpdatedAt = s.clock()
		if err := s.links.Put(ctx, link); err != nil {
			return s.mapRepositoryError(err)
		}
		s.logger(ctx, "inventory.delisted", map[string]any{
			"itemId": itemID,
			"linkId": link.ID,
		})
	}
	return nil
}

func (s *inventoryService) mapStockError(err error) error {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorItemNotFound:
			return fmt.Errorf("%w: %v", ErrInventoryNotFound, err)
		case repositories.StockErrorInsufficient, repositories.StockErrorInvalidInput:
			return fmt.Errorf("%w: %v", ErrInventoryInvalidInput, err)
		}
	}
	return s.mapRepositoryError(err)
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrInventoryNotFound, err)
	}
	return err
}
