package services

import (
	"context"
	"sync"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

// Function-field stubs shared by the service tests in this package.

type stubOrderRepository struct {
	mu               sync.Mutex
	insertFn         func(context.Context, domain.Order) error
	updateFn         func(context.Context, domain.Order) error
	findFn           func(context.Context, string) (domain.Order, error)
	listFn           func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listByStatusFn   func(context.Context, domain.OrderStatus) ([]domain.Order, error)
	listByCustomerFn func(context.Context, string) ([]domain.Order, error)
	deleteFn         func(context.Context, string) error

	inserts []domain.Order
	updates []domain.Order
	deletes []string
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	s.inserts = append(s.inserts, order)
	s.mu.Unlock()
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	s.updates = append(s.updates, order)
	s.mu.Unlock()
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, nil
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if s.listByStatusFn != nil {
		return s.listByStatusFn(ctx, status)
	}
	return nil, nil
}

func (s *stubOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	if s.listByCustomerFn != nil {
		return s.listByCustomerFn(ctx, customerID)
	}
	return nil, nil
}

func (s *stubOrderRepository) DeleteCascade(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		if err := s.deleteFn(ctx, orderID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.deletes = append(s.deletes, orderID)
	s.mu.Unlock()
	return nil
}

type stubOrderItemRepository struct {
	mu    sync.Mutex
	getFn func(context.Context, string) ([]domain.OrderItem, error)
	putFn func(context.Context, string, []domain.OrderItem) error

	puts map[string][]domain.OrderItem
}

func (s *stubOrderItemRepository) Get(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrderItemRepository) Put(ctx context.Context, orderID string, items []domain.OrderItem) error {
	s.mu.Lock()
	if s.puts == nil {
		s.puts = make(map[string][]domain.OrderItem)
	}
	s.puts[orderID] = append([]domain.OrderItem(nil), items...)
	s.mu.Unlock()
	if s.putFn != nil {
		return s.putFn(ctx, orderID, items)
	}
	return nil
}

type stubCustomerRepository struct {
	mu         sync.Mutex
	insertFn   func(context.Context, domain.Customer) error
	updateFn   func(context.Context, domain.Customer) error
	findFn     func(context.Context, string) (domain.Customer, error)
	listByFirm func(context.Context, string) ([]domain.Customer, error)
	listFn     func(context.Context, repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error)

	updates []domain.Customer
}

func (s *stubCustomerRepository) Insert(ctx context.Context, customer domain.Customer) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	s.mu.Lock()
	s.updates = append(s.updates, customer)
	s.mu.Unlock()
	if s.updateFn != nil {
		return s.updateFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	if s.findFn != nil {
		return s.findFn(ctx, customerID)
	}
	return domain.Customer{}, nil
}

func (s *stubCustomerRepository) ListByFirm(ctx context.Context, firmID string) ([]domain.Customer, error) {
	if s.listByFirm != nil {
		return s.listByFirm(ctx, firmID)
	}
	return nil, nil
}

func (s *stubCustomerRepository) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Customer]{}, nil
}

type stubInventoryRepository struct {
	mu       sync.Mutex
	insertFn func(context.Context, domain.InventoryItem) error
	updateFn func(context.Context, domain.InventoryItem) error
	adjustFn func(context.Context, string, int) (domain.InventoryItem, error)
	findFn   func(context.Context, string) (domain.InventoryItem, error)
	listFn   func(context.Context, repositories.InventoryListFilter) (domain.CursorPage[domain.InventoryItem], error)

	updates []domain.InventoryItem
}

func (s *stubInventoryRepository) Insert(ctx context.Context, item domain.InventoryItem) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, item)
	}
	return nil
}

func (s *stubInventoryRepository) Update(ctx context.Context, item domain.InventoryItem) error {
	s.mu.Lock()
	s.updates = append(s.updates, item)
	s.mu.Unlock()
	if s.updateFn != nil {
		return s.updateFn(ctx, item)
	}
	return nil
}

func (s *stubInventoryRepository) AdjustQuantity(ctx context.Context, itemID string, delta int) (domain.InventoryItem, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, itemID, delta)
	}
	return domain.InventoryItem{}, nil
}

func (s *stubInventoryRepository) FindByID(ctx context.Context, itemID string) (domain.InventoryItem, error) {
	if s.findFn != nil {
		return s.findFn(ctx, itemID)
	}
	return domain.InventoryItem{}, nil
}

func (s *stubInventoryRepository) List(ctx context.Context, filter repositories.InventoryListFilter) (domain.CursorPage[domain.InventoryItem], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.InventoryItem]{}, nil
}

type stubInventoryLogRepository struct {
	mu         sync.Mutex
	appendFn   func(context.Context, domain.InventoryLog) error
	listItemFn func(context.Context, string, domain.Pagination) (domain.CursorPage[domain.InventoryLog], error)

	appends []domain.InventoryLog
}

func (s *stubInventoryLogRepository) Append(ctx context.Context, entry domain.InventoryLog) error {
	s.mu.Lock()
	s.appends = append(s.appends, entry)
	s.mu.Unlock()
	if s.appendFn != nil {
		return s.appendFn(ctx, entry)
	}
	return nil
}

func (s *stubInventoryLogRepository) ListByItem(ctx context.Context, itemID string, pager domain.Pagination) (domain.CursorPage[domain.InventoryLog], error) {
	if s.listItemFn != nil {
		return s.listItemFn(ctx, itemID, pager)
	}
	return domain.CursorPage[domain.InventoryLog]{}, nil
}

type stubReturnDetailRepository struct {
	mu    sync.Mutex
	getFn func(context.Context, string) ([]domain.ReturnLine, error)
	putFn func(context.Context, string, []domain.ReturnLine) error

	puts map[string][]domain.ReturnLine
}

func (s *stubReturnDetailRepository) Get(ctx context.Context, orderID string) ([]domain.ReturnLine, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubReturnDetailRepository) Put(ctx context.Context, orderID string, lines []domain.ReturnLine) error {
	s.mu.Lock()
	if s.puts == nil {
		s.puts = make(map[string][]domain.ReturnLine)
	}
	s.puts[orderID] = append([]domain.ReturnLine(nil), lines...)
	s.mu.Unlock()
	if s.putFn != nil {
		return s.putFn(ctx, orderID, lines)
	}
	return nil
}

type stubLinkRepository struct {
	mu         sync.Mutex
	putFn      func(context.Context, domain.StoreLink) error
	findFn     func(context.Context, string) (domain.StoreLink, error)
	listItemFn func(context.Context, string) ([]domain.StoreLink, error)

	puts []domain.StoreLink
}

func (s *stubLinkRepository) Put(ctx context.Context, link domain.StoreLink) error {
	s.mu.Lock()
	s.puts = append(s.puts, link)
	s.mu.Unlock()
	if s.putFn != nil {
		return s.putFn(ctx, link)
	}
	return nil
}

func (s *stubLinkRepository) FindByID(ctx context.Context, linkID string) (domain.StoreLink, error) {
	if s.findFn != nil {
		return s.findFn(ctx, linkID)
	}
	return domain.StoreLink{}, nil
}

func (s *stubLinkRepository) ListReferencingItem(ctx context.Context, itemID string) ([]domain.StoreLink, error) {
	if s.listItemFn != nil {
		return s.listItemFn(ctx, itemID)
	}
	return nil, nil
}

type stubCounterRepository struct {
	mu     sync.Mutex
	nextFn func(context.Context, string, int64) (int64, error)
	calls  []string
	value  int64
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, counterID)
	s.value++
	value := s.value
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return value, nil
}

type stubEventPublisher struct {
	mu           sync.Mutex
	orderEvents  []OrderEventMessage
	ledgerEvents []LedgerEventMessage
	stockEvents  []StockEventMessage
	failWith     error
}

func (s *stubEventPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	s.mu.Lock()
	s.orderEvents = append(s.orderEvents, message)
	s.mu.Unlock()
	return "msg-1", s.failWith
}

func (s *stubEventPublisher) PublishLedgerEvent(ctx context.Context, message LedgerEventMessage) (string, error) {
	s.mu.Lock()
	s.ledgerEvents = append(s.ledgerEvents, message)
	s.mu.Unlock()
	return "msg-1", s.failWith
}

func (s *stubEventPublisher) PublishStockEvent(ctx context.Context, message StockEventMessage) (string, error) {
	s.mu.Lock()
	s.stockEvents = append(s.stockEvents, message)
	s.mu.Unlock()
	return "msg-1", s.failWith
}

func strPtr(v string) *string { return &v }
