package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/apexflow/api/internal/domain"
)

func newTestLedgerService(t *testing.T, deps LedgerServiceDeps) LedgerService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepository{}
	}
	if deps.Customers == nil {
		deps.Customers = &stubCustomerRepository{}
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time {
			return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		}
	}
	svc, err := NewLedgerService(deps)
	if err != nil {
		t.Fatalf("new ledger service: %v", err)
	}
	return svc
}

func TestRecordPaymentCreditsBalanceThenLogs(t *testing.T) {
	customers := &stubCustomerRepository{
		findFn: func(_ context.Context, customerID string) (domain.Customer, error) {
			return domain.Customer{ID: customerID, Name: "Sharma Traders", Balance: 250}, nil
		},
	}
	orders := &stubOrderRepository{}
	events := &stubEventPublisher{}
	svc := newTestLedgerService(t, LedgerServiceDeps{
		Orders:    orders,
		Customers: customers,
		Events:    events,
		IDGenerator: func() string {
			return "01TESTULID"
		},
	})

	entry, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{
		CustomerID: "cus_1",
		Amount:     1000,
		Actor:      adminActor(),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}

	if len(customers.updates) != 1 {
		t.Fatalf("expected one customer write, got %d", len(customers.updates))
	}
	if customers.updates[0].Balance != 1250 {
		t.Fatalf("expected balance 1250, got %d", customers.updates[0].Balance)
	}
	if entry.ID != "pay_01TESTULID" {
		t.Fatalf("unexpected entry id %s", entry.ID)
	}
	if entry.Status != domain.OrderStatusPayment || entry.TotalAmount != 1000 {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if len(orders.inserts) != 1 {
		t.Fatalf("expected one audit insert, got %d", len(orders.inserts))
	}
	if len(events.ledgerEvents) != 1 || events.ledgerEvents[0].EventType != ledgerEventPaymentRecorded {
		t.Fatalf("expected payment event, got %+v", events.ledgerEvents)
	}
}

func TestRecordPaymentPartialFailureNamesCompletedStep(t *testing.T) {
	customers := &stubCustomerRepository{
		findFn: func(_ context.Context, customerID string) (domain.Customer, error) {
			return domain.Customer{ID: customerID, Balance: 0}, nil
		},
	}
	orders := &stubOrderRepository{
		insertFn: func(context.Context, domain.Order) error {
			return errors.New("firestore unavailable")
		},
	}
	svc := newTestLedgerService(t, LedgerServiceDeps{Orders: orders, Customers: customers})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{CustomerID: "cus_1", Amount: 500, Actor: adminActor()})
	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialWriteError, got %v", err)
	}
	if partial.FailedStep != "append payment record" {
		t.Fatalf("unexpected failed step %q", partial.FailedStep)
	}
	if len(partial.Completed) != 1 || partial.Completed[0] != "customer balance updated" {
		t.Fatalf("unexpected completed steps %v", partial.Completed)
	}
	// The balance write happened before the failure and stays applied.
	if len(customers.updates) != 1 || customers.updates[0].Balance != 500 {
		t.Fatalf("expected balance write retained, got %+v", customers.updates)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := newTestLedgerService(t, LedgerServiceDeps{})

	if _, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{CustomerID: "cus_1", Amount: 0, Actor: adminActor()}); !errors.Is(err, ErrLedgerInvalidInput) {
		t.Fatalf("expected ErrLedgerInvalidInput for zero amount, got %v", err)
	}
	if _, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{Amount: 100, Actor: adminActor()}); !errors.Is(err, ErrLedgerInvalidInput) {
		t.Fatalf("expected ErrLedgerInvalidInput for missing customer, got %v", err)
	}
	picker := Actor{ID: "staff-7", Role: domain.RolePicker}
	if _, err := svc.RecordPayment(context.Background(), RecordPaymentCommand{CustomerID: "cus_1", Amount: 100, Actor: picker}); !errors.Is(err, ErrLedgerForbidden) {
		t.Fatalf("expected ErrLedgerForbidden for picker, got %v", err)
	}
}

func TestCustomerStatementExcludesRejectedFromTotals(t *testing.T) {
	customers := &stubCustomerRepository{
		findFn: func(_ context.Context, customerID string) (domain.Customer, error) {
			return domain.Customer{ID: customerID, Balance: 400}, nil
		},
	}
	orders := &stubOrderRepository{
		listByCustomerFn: func(context.Context, string) ([]domain.Order, error) {
			return []domain.Order{
				{ID: "ord_1", Status: domain.OrderStatusDispatched, TotalAmount: 5000},
				{ID: "ord_2", Status: domain.OrderStatusRejected, TotalAmount: 9999},
				{ID: "pay_1", Status: domain.OrderStatusPayment, TotalAmount: 2000},
				{ID: "GR-1", Status: domain.OrderStatusReturn, TotalAmount: 300},
			}, nil
		},
	}
	svc := newTestLedgerService(t, LedgerServiceDeps{Orders: orders, Customers: customers})

	statement, err := svc.CustomerStatement(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("customer statement: %v", err)
	}
	if statement.TotalPurchases != 5000 {
		t.Fatalf("expected purchases 5000, got %d", statement.TotalPurchases)
	}
	if statement.TotalPayments != 2000 {
		t.Fatalf("expected payments 2000, got %d", statement.TotalPayments)
	}
	if statement.TotalReturns != 300 {
		t.Fatalf("expected returns 300, got %d", statement.TotalReturns)
	}
	if statement.Balance != 400 {
		t.Fatalf("expected balance 400, got %d", statement.Balance)
	}
	// The rejected order still appears, amount intact.
	found := false
	for _, order := range statement.Orders {
		if order.ID == "ord_2" {
			found = true
			if order.TotalAmount != 9999 {
				t.Fatalf("rejected order amount mutated: %d", order.TotalAmount)
			}
		}
	}
	if !found {
		t.Fatalf("rejected order missing from statement list")
	}
}

func TestFirmStatementSumsMemberBalances(t *testing.T) {
	balances := map[string]int64{"cus_1": 500, "cus_2": 300}
	customers := &stubCustomerRepository{
		listByFirm: func(_ context.Context, firmID string) ([]domain.Customer, error) {
			return []domain.Customer{
				{ID: "cus_1", FirmID: firmID, Balance: balances["cus_1"]},
				{ID: "cus_2", FirmID: firmID, Balance: balances["cus_2"]},
			}, nil
		},
	}
	orders := &stubOrderRepository{
		listByCustomerFn: func(_ context.Context, customerID string) ([]domain.Order, error) {
			return []domain.Order{{ID: "ord_" + customerID, CustomerID: customerID, CreatedAt: time.Now()}}, nil
		},
	}
	svc := newTestLedgerService(t, LedgerServiceDeps{Orders: orders, Customers: customers})

	statement, err := svc.FirmStatement(context.Background(), "firm_1")
	if err != nil {
		t.Fatalf("firm statement: %v", err)
	}
	if statement.Balance != 800 {
		t.Fatalf("expected firm balance 800, got %d", statement.Balance)
	}
	if len(statement.Orders) != 2 {
		t.Fatalf("expected union of member orders, got %d", len(statement.Orders))
	}

	// No stored firm balance: changing a member balance changes the view.
	balances["cus_1"] = 600
	statement, err = svc.FirmStatement(context.Background(), "firm_1")
	if err != nil {
		t.Fatalf("firm statement after change: %v", err)
	}
	if statement.Balance != 900 {
		t.Fatalf("expected firm balance 900 after member change, got %d", statement.Balance)
	}
}
