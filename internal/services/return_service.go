package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

const (
	stockEventRemoved = "stock.removed"

	returnIDPrefix = "GR-"
)

var (
	// ErrReturnInvalidInput signals the caller provided invalid data.
	ErrReturnInvalidInput = errors.New("return: invalid input")
	// ErrReturnNotFound indicates a referenced record could not be located.
	ErrReturnNotFound = errors.New("return: not found")
	// ErrReturnForbidden indicates the actor's role does not permit the operation.
	ErrReturnForbidden = errors.New("return: forbidden")
	// ErrReturnInsufficientStock indicates a removal exceeding the aggregate quantity.
	ErrReturnInsufficientStock = errors.New("return: insufficient stock")
)

// keyFolder case-folds aggregate key components so "Acme" and "ACME" share a bucket.
var keyFolder = cases.Fold()

func foldKey(brand, model, quality string) StockRoomKey {
	return StockRoomKey{
		Brand:   keyFolder.String(strings.TrimSpace(brand)),
		Model:   keyFolder.String(strings.TrimSpace(model)),
		Quality: keyFolder.String(strings.TrimSpace(quality)),
	}
}

// ReturnServiceDeps bundles collaborators for the return service.
type ReturnServiceDeps struct {
	Orders        repositories.OrderRepository
	ReturnDetails repositories.ReturnDetailRepository
	Customers     repositories.CustomerRepository
	Inventory     repositories.InventoryRepository
	Clock         func() time.Time
	IDGenerator   func() string
	Events        EventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type returnService struct {
	orders        repositories.OrderRepository
	returnDetails repositories.ReturnDetailRepository
	customers     repositories.CustomerRepository
	inventory     repositories.InventoryRepository
	clock         func() time.Time
	newID         func() string
	events        EventPublisher
	logger        func(context.Context, string, map[string]any)
}

// NewReturnService wires dependencies into a concrete ReturnService.
func NewReturnService(deps ReturnServiceDeps) (ReturnService, error) {
	if deps.Orders == nil {
		return nil, errors.New("return service: order repository is required")
	}
	if deps.ReturnDetails == nil {
		return nil, errors.New("return service: return detail repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("return service: customer repository is required")
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

	return &returnService{
		orders:        deps.Orders,
		returnDetails: deps.ReturnDetails,
		customers:     deps.Customers,
		inventory:     deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// CreateReturn records a goods return. Cart mode resolves each line against
// inventory and persists the detail under the new order; direct mode credits
// a bare amount with no lines. The balance write comes first and is not
// rolled back on later failures.
func (s *returnService) CreateReturn(ctx context.Context, cmd CreateReturnCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrReturnInvalidInput)
	}
	if !CanPerform(cmd.Actor, ActionCreateReturn, Order{}) {
		return Order{}, fmt.Errorf("%w: role %s cannot record returns", ErrReturnForbidden, cmd.Actor.Role)
	}

	cartMode := len(cmd.Lines) > 0
	if cartMode && cmd.Amount != 0 {
		return Order{}, fmt.Errorf("%w: a return carries either lines or a direct amount, not both", ErrReturnInvalidInput)
	}
	var total int64
	var lines []ReturnLine

	if cartMode {
		if s.inventory == nil {
			return Order{}, errors.New("return service: inventory repository is required for cart returns")
		}
		lines = make([]ReturnLine, 0, len(cmd.Lines))
		for i, line := range cmd.Lines {
			if line.ReturnQty <= 0 {
				return Order{}, fmt.Errorf("%w: line %d quantity must be positive", ErrReturnInvalidInput, i)
			}
			if line.ReturnPrice < 0 {
				return Order{}, fmt.Errorf("%w: line %d price must not be negative", ErrReturnInvalidInput, i)
			}
			item, err := s.inventory.FindByID(ctx, strings.TrimSpace(line.ItemID))
			if err != nil {
				return Order{}, s.mapRepositoryError(err)
			}
			lines = append(lines, ReturnLine{
				Item:        item.Snapshot(),
				ReturnQty:   line.ReturnQty,
				ReturnPrice: line.ReturnPrice,
			})
			total += int64(line.ReturnQty) * line.ReturnPrice
		}
	} else {
		if cmd.Amount <= 0 {
			return Order{}, fmt.Errorf("%w: direct adjustment amount must be positive", ErrReturnInvalidInput)
		}
		if strings.TrimSpace(cmd.Remarks) == "" {
			return Order{}, fmt.Errorf("%w: direct adjustment requires a remark", ErrReturnInvalidInput)
		}
		total = cmd.Amount
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	customer.Balance += total
	customer.UpdatedAt = now
	if err := s.customers.Update(ctx, customer); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	actorID := strings.TrimSpace(cmd.Actor.ID)
	order := Order{
		ID:              returnIDPrefix + s.newID(),
		Status:          domain.OrderStatusReturn,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerSubtext: customer.Subtext,
		TotalAmount:     total,
		InvoiceStatus:   domain.InvoiceStatusPaid,
		Remarks:         remarksPolicy.Sanitize(strings.TrimSpace(cmd.Remarks)),
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actorID != "" {
		order.Audit.CreatedBy = &actorID
		order.Audit.UpdatedBy = &actorID
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, &PartialWriteError{
			FailedStep: "append return record",
			Completed:  []string{"customer balance updated"},
			Err:        s.mapRepositoryError(err),
		}
	}

	if cartMode {
		if err := s.returnDetails.Put(ctx, order.ID, lines); err != nil {
			return Order{}, &PartialWriteError{
				FailedStep: "persist return detail",
				Completed:  []string{"customer balance updated", "return record appended"},
				Err:        s.mapRepositoryError(err),
			}
		}
	}

	if s.events != nil {
		if _, err := s.events.PublishLedgerEvent(ctx, LedgerEventMessage{
			EventType:  ledgerEventReturnRecorded,
			EntryID:    order.ID,
			CustomerID: customer.ID,
			Amount:     total,
			Status:     domain.OrderStatusReturn,
			OccurredAt: now,
		}); err != nil {
			s.logger(ctx, "return.event.publish_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}
	return order, nil
}

// StockRoom recomputes the returned-stock aggregate from the full Return
// order set. Contribution history is collected oldest first.
func (s *returnService) StockRoom(ctx context.Context) ([]StockRoomEntry, error) {
	orders, err := s.orders.ListByStatus(ctx, domain.OrderStatusReturn)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	entries := make(map[StockRoomKey]*StockRoomEntry)
	var keys []StockRoomKey

	for _, order := range orders {
		lines, err := s.returnDetails.Get(ctx, order.ID)
		if err != nil {
			return nil, s.mapRepositoryError(err)
		}
		for _, line := range lines {
			key := foldKey(line.Item.Brand, line.Item.Model, line.Item.Quality)
			entry, ok := entries[key]
			if !ok {
				entry = &StockRoomEntry{
					Brand:   line.Item.Brand,
					Model:   line.Item.Model,
					Quality: line.Item.Quality,
				}
				entries[key] = entry
				keys = append(keys, key)
			}
			entry.Quantity += line.ReturnQty
			entry.TotalVal += int64(line.ReturnQty) * line.ReturnPrice
			entry.History = append(entry.History, StockContribution{
				OrderID:      order.ID,
				CustomerName: order.CustomerName,
				Date:         order.CreatedAt,
				Qty:          line.ReturnQty,
			})
		}
	}

	result := make([]StockRoomEntry, 0, len(keys))
	for _, key := range keys {
		result = append(result, *entries[key])
	}
	return result, nil
}

// RemoveStock removes quantity from one aggregate bucket, consuming the
// oldest contributing return orders first. Per-order mutation is atomic; the
// loop across orders is not, so a mid-loop failure leaves earlier orders
// already adjusted.
func (s *returnService) RemoveStock(ctx context.Context, cmd RemoveStockCommand) (RemoveStockResult, error) {
	if cmd.Quantity <= 0 {
		return RemoveStockResult{}, fmt.Errorf("%w: removal quantity must be positive", ErrReturnInvalidInput)
	}
	if !CanPerform(cmd.Actor, ActionRemoveStock, Order{}) {
		return RemoveStockResult{}, fmt.Errorf("%w: role %s cannot remove stock", ErrReturnForbidden, cmd.Actor.Role)
	}

	target := foldKey(cmd.Brand, cmd.Model, cmd.Quality)

	orders, err := s.orders.ListByStatus(ctx, domain.OrderStatusReturn)
	if err != nil {
		return RemoveStockResult{}, s.mapRepositoryError(err)
	}
	// Consumption is defined oldest-first regardless of how the repository
	// happened to order the list.
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	details := make(map[string][]ReturnLine, len(orders))
	available := 0
	for _, order := range orders {
		lines, err := s.returnDetails.Get(ctx, order.ID)
		if err != nil {
			return RemoveStockResult{}, s.mapRepositoryError(err)
		}
		details[order.ID] = lines
		for _, line := range lines {
			if foldKey(line.Item.Brand, line.Item.Model, line.Item.Quality) == target {
				available += line.ReturnQty
			}
		}
	}
	if cmd.Quantity > available {
		return RemoveStockResult{}, fmt.Errorf("%w: requested %d, available %d", ErrReturnInsufficientStock, cmd.Quantity, available)
	}

	result := RemoveStockResult{}
	remaining := cmd.Quantity

	for _, order := range orders {
		if remaining == 0 {
			break
		}

		lines := details[order.ID]
		touched := false
		kept := lines[:0]
		for _, line := range lines {
			if remaining > 0 && foldKey(line.Item.Brand, line.Item.Model, line.Item.Quality) == target {
				deduct := line.ReturnQty
				if deduct > remaining {
					deduct = remaining
				}
				line.ReturnQty -= deduct
				remaining -= deduct
				touched = true
			}
			if line.ReturnQty > 0 {
				kept = append(kept, line)
			}
		}
		if !touched {
			continue
		}

		if len(kept) == 0 {
			if err := s.orders.DeleteCascade(ctx, order.ID); err != nil {
				return result, s.mapRepositoryError(err)
			}
			result.DeletedOrders = append(result.DeletedOrders, order.ID)
			continue
		}

		var total int64
		for _, line := range kept {
			total += int64(line.ReturnQty) * line.ReturnPrice
		}
		if err := s.returnDetails.Put(ctx, order.ID, kept); err != nil {
			return result, s.mapRepositoryError(err)
		}
		order.TotalAmount = total
		order.UpdatedAt = s.clock()
		if err := s.orders.Update(ctx, order); err != nil {
			return result, s.mapRepositoryError(err)
		}
		result.UpdatedOrders = append(result.UpdatedOrders, order.ID)
	}

	result.Removed = cmd.Quantity
	if s.events != nil {
		if _, err := s.events.PublishStockEvent(ctx, StockEventMessage{
			EventType: stockEventRemoved,
			Brand:     cmd.Brand,
			Model:     cmd.Model,
			Quality:   cmd.Quality,
			Qty:       cmd.Quantity,
		}); err != nil {
			s.logger(ctx, "stock.event.publish_failed", map[string]any{
				"brand": cmd.Brand,
				"model": cmd.Model,
				"error": err.Error(),
			})
		}
	}
	s.logger(ctx, "stock.removed", map[string]any{
		"brand":   cmd.Brand,
		"model":   cmd.Model,
		"quality": cmd.Quality,
		"qty":     cmd.Quantity,
		"updated": len(result.UpdatedOrders),
		"deleted": len(result.DeletedOrders),
	})
	return result, nil
}

func (s *returnService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrReturnNotFound, err)
	}
	return err
}
