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

const customerIDPrefix = "cus_"

var (
	// ErrCustomerInvalidInput signals the caller provided invalid data.
	ErrCustomerInvalidInput = errors.New("customer: invalid input")
	// ErrCustomerNotFound indicates the customer could not be located.
	ErrCustomerNotFound = errors.New("customer: not found")
)

// CustomerServiceDeps bundles collaborators for the customer service.
type CustomerServiceDeps struct {
	Customers   repositories.CustomerRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type customerService struct {
	customers repositories.CustomerRepository
	clock     func() time.Time
	newID     func() string
}

// NewCustomerService wires dependencies into a concrete CustomerService.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
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

	return &customerService{
		customers: deps.Customers,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (Customer, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: name is required", ErrCustomerInvalidInput)
	}

	now := s.clock()
	customer := Customer{
		ID:        customerIDPrefix + s.newID(),
		Name:      name,
		Subtext:   strings.TrimSpace(cmd.Subtext),
		FirmID:    strings.TrimSpace(cmd.FirmID),
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.customers.Insert(ctx, customer); err != nil {
		return Customer{}, s.mapRepositoryError(err)
	}
	return customer, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrCustomerInvalidInput)
	}
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return Customer{}, s.mapRepositoryError(err)
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[Customer], error) {
	page, err := s.customers.List(ctx, repositories.CustomerListFilter{
		FirmID:     strings.TrimSpace(filter.FirmID),
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Customer]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *customerService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrCustomerNotFound, err)
	}
	return err
}
