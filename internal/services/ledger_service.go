package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/repositories"
)

const (
	ledgerEventPaymentRecorded = "ledger.payment.recorded"
	ledgerEventReturnRecorded  = "ledger.return.recorded"

	paymentIDPrefix = "pay_"
)

var (
	// ErrLedgerInvalidInput signals the caller provided invalid data.
	ErrLedgerInvalidInput = errors.New("ledger: invalid input")
	// ErrLedgerNotFound indicates the customer or order could not be located.
	ErrLedgerNotFound = errors.New("ledger: not found")
	// ErrLedgerForbidden indicates the actor's role does not permit the operation.
	ErrLedgerForbidden = errors.New("ledger: forbidden")
)

// PartialWriteError reports a multi-step balance flow that failed after
// earlier steps had already been persisted. The steps are not rolled back;
// callers can re-read the customer record and remediate manually.
type PartialWriteError struct {
	FailedStep string
	Completed  []string
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("ledger: step %q failed after %s: %v", e.FailedStep, strings.Join(e.Completed, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// LedgerServiceDeps bundles collaborators for the ledger service.
type LedgerServiceDeps struct {
	Orders      repositories.OrderRepository
	Customers   repositories.CustomerRepository
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type ledgerService struct {
	orders    repositories.OrderRepository
	customers repositories.CustomerRepository
	clock     func() time.Time
	newID     func() string
	events    EventPublisher
	logger    func(context.Context, string, map[string]any)
}

// NewLedgerService wires dependencies into a concrete LedgerService.
func NewLedgerService(deps LedgerServiceDeps) (LedgerService, error) {
	if deps.Orders == nil {
		return nil, errors.New("ledger service: order repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("ledger service: customer repository is required")
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

	return &ledgerService{
		orders:    deps.Orders,
		customers: deps.Customers,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// RecordPayment credits the customer's balance and appends a Payment audit
// order. The balance write comes first and is not rolled back if the audit
// write fails; that failure surfaces as a PartialWriteError.
func (s *ledgerService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrLedgerInvalidInput)
	}
	if cmd.Amount <= 0 {
		return Order{}, fmt.Errorf("%w: amount must be positive", ErrLedgerInvalidInput)
	}
	if !CanPerform(cmd.Actor, ActionRecordPayment, Order{}) {
		return Order{}, fmt.Errorf("%w: role %s cannot record payments", ErrLedgerForbidden, cmd.Actor.Role)
	}

	// Re-fetch so a balance changed since page load is not overwritten.
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	customer.Balance += cmd.Amount
	customer.UpdatedAt = now
	if err := s.customers.Update(ctx, customer); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	actorID := strings.TrimSpace(cmd.Actor.ID)
	entry := Order{
		ID:              paymentIDPrefix + s.newID(),
		Status:          domain.OrderStatusPayment,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerSubtext: customer.Subtext,
		TotalAmount:     cmd.Amount,
		InvoiceStatus:   domain.InvoiceStatusPaid,
		Remarks:         remarksPolicy.Sanitize(strings.TrimSpace(cmd.Remarks)),
		Revision:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if actorID != "" {
		entry.Audit.CreatedBy = &actorID
		entry.Audit.UpdatedBy = &actorID
	}

	if err := s.orders.Insert(ctx, entry); err != nil {
		return Order{}, &PartialWriteError{
			FailedStep: "append payment record",
			Completed:  []string{"customer balance updated"},
			Err:        s.mapRepositoryError(err),
		}
	}

	s.publishEvent(ctx, LedgerEventMessage{
		EventType:  ledgerEventPaymentRecorded,
		EntryID:    entry.ID,
		CustomerID: customer.ID,
		Amount:     cmd.Amount,
		Status:     domain.OrderStatusPayment,
		OccurredAt: now,
	})
	s.logger(ctx, "ledger.payment.recorded", map[string]any{
		"customerId": customer.ID,
		"entryId":    entry.ID,
		"amount":     cmd.Amount,
	})
	return entry, nil
}

// CustomerStatement aggregates a customer's history. Rejected orders appear
// in the list with their amounts intact but contribute nothing to the totals.
func (s *ledgerService) CustomerStatement(ctx context.Context, customerID string) (CustomerStatement, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return CustomerStatement{}, fmt.Errorf("%w: customer id is required", ErrLedgerInvalidInput)
	}

	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return CustomerStatement{}, s.mapRepositoryError(err)
	}
	orders, err := s.orders.ListByCustomer(ctx, id)
	if err != nil {
		return CustomerStatement{}, s.mapRepositoryError(err)
	}

	statement := CustomerStatement{
		Balance: customer.Balance,
		Orders:  orders,
	}
	for _, order := range orders {
		switch order.Status {
		case domain.OrderStatusRejected:
			// Shown, never summed.
		case domain.OrderStatusPayment:
			statement.TotalPayments += order.TotalAmount
		case domain.OrderStatusReturn:
			statement.TotalReturns += order.TotalAmount
		default:
			statement.TotalPurchases += order.TotalAmount
		}
	}
	return statement, nil
}

// FirmStatement is recomputed on every call as the sum of member balances and
// the union of member orders. Firms are never stored as their own ledger.
func (s *ledgerService) FirmStatement(ctx context.Context, firmID string) (FirmStatement, error) {
	id := strings.TrimSpace(firmID)
	if id == "" {
		return FirmStatement{}, fmt.Errorf("%w: firm id is required", ErrLedgerInvalidInput)
	}

	members, err := s.customers.ListByFirm(ctx, id)
	if err != nil {
		return FirmStatement{}, s.mapRepositoryError(err)
	}
	if len(members) == 0 {
		return FirmStatement{}, fmt.Errorf("%w: firm %s has no members", ErrLedgerNotFound, id)
	}

	statement := FirmStatement{FirmID: id, Members: members}
	for _, member := range members {
		statement.Balance += member.Balance
		orders, err := s.orders.ListByCustomer(ctx, member.ID)
		if err != nil {
			return FirmStatement{}, s.mapRepositoryError(err)
		}
		statement.Orders = append(statement.Orders, orders...)
	}
	sort.Slice(statement.Orders, func(i, j int) bool {
		return statement.Orders[i].CreatedAt.Before(statement.Orders[j].CreatedAt)
	})
	return statement, nil
}

func (s *ledgerService) publishEvent(ctx context.Context, message LedgerEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishLedgerEvent(ctx, message); err != nil {
		s.logger(ctx, "ledger.event.publish_failed", map[string]any{
			"entryId":   message.EntryID,
			"eventType": message.EventType,
			"error":     err.Error(),
		})
	}
}

func (s *ledgerService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrLedgerNotFound, err)
	}
	return err
}
