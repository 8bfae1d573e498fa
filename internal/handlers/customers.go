package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/services"
)

// CustomerHandlers exposes customer records, statements and ledger postings.
type CustomerHandlers struct {
	customers services.CustomerService
	ledger    services.LedgerService
}

// NewCustomerHandlers constructs a new CustomerHandlers instance.
func NewCustomerHandlers(customers services.CustomerService, ledger services.LedgerService) *CustomerHandlers {
	return &CustomerHandlers{
		customers: customers,
		ledger:    ledger,
	}
}

// Routes registers the /customers endpoints.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCustomer)
	r.Get("/", h.listCustomers)
	r.Get("/{customerID}", h.getCustomer)
	r.Get("/{customerID}/statement", h.customerStatement)
	r.Post("/{customerID}/payments", h.recordPayment)
}

// FirmRoutes registers the /firms endpoints.
func (h *CustomerHandlers) FirmRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{firmID}/statement", h.firmStatement)
}

type createCustomerRequest struct {
	Name    string `json:"name"`
	Subtext string `json:"subtext"`
	FirmID  string `json:"firmId"`
}

func (h *CustomerHandlers) createCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createCustomerRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	customer, err := h.customers.CreateCustomer(ctx, services.CreateCustomerCommand{
		Name:    req.Name,
		Subtext: req.Subtext,
		FirmID:  req.FirmID,
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, buildCustomerPayload(customer))
}

type customerListResponse struct {
	Items         []customerPayload `json:"items"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

func (h *CustomerHandlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	pager, ok := pagerFromRequest(ctx, w, r)
	if !ok {
		return
	}

	page, err := h.customers.ListCustomers(ctx, services.CustomerListFilter{
		FirmID: strings.TrimSpace(r.URL.Query().Get("firmId")),
		Pagination: services.Pagination{
			PageSize:  pager.PageSize,
			PageToken: pager.PageToken,
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := customerListResponse{NextPageToken: page.NextPageToken}
	for _, customer := range page.Items {
		response.Items = append(response.Items, buildCustomerPayload(customer))
	}
	if response.Items == nil {
		response.Items = []customerPayload{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}

func (h *CustomerHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	customer, err := h.customers.GetCustomer(ctx, strings.TrimSpace(chi.URLParam(r, "customerID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCustomerPayload(customer))
}

type customerStatementPayload struct {
	TotalPurchases string         `json:"totalPurchases"`
	TotalPayments  string         `json:"totalPayments"`
	TotalReturns   string         `json:"totalReturns"`
	Balance        string         `json:"balance"`
	Orders         []orderPayload `json:"orders"`
}

func buildCustomerStatementPayload(statement domain.CustomerStatement) customerStatementPayload {
	payload := customerStatementPayload{
		TotalPurchases: domain.FormatTenths(statement.TotalPurchases),
		TotalPayments:  domain.FormatTenths(statement.TotalPayments),
		TotalReturns:   domain.FormatTenths(statement.TotalReturns),
		Balance:        domain.FormatTenths(statement.Balance),
		Orders:         []orderPayload{},
	}
	for _, order := range statement.Orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	return payload
}

func (h *CustomerHandlers) customerStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	statement, err := h.ledger.CustomerStatement(ctx, strings.TrimSpace(chi.URLParam(r, "customerID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildCustomerStatementPayload(statement))
}

type firmStatementPayload struct {
	FirmID  string            `json:"firmId"`
	Members []customerPayload `json:"members"`
	Balance string            `json:"balance"`
	Orders  []orderPayload    `json:"orders"`
}

func (h *CustomerHandlers) firmStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	statement, err := h.ledger.FirmStatement(ctx, strings.TrimSpace(chi.URLParam(r, "firmID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := firmStatementPayload{
		FirmID:  statement.FirmID,
		Members: []customerPayload{},
		Balance: domain.FormatTenths(statement.Balance),
		Orders:  []orderPayload{},
	}
	for _, member := range statement.Members {
		payload.Members = append(payload.Members, buildCustomerPayload(member))
	}
	for _, order := range statement.Orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, payload)
}

type recordPaymentRequest struct {
	Amount  string `json:"amount"`
	Remarks string `json:"remarks"`
}

func (h *CustomerHandlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req recordPaymentRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeInvalidRequest(ctx, w, "amount must be a decimal with at most one fractional digit")
		return
	}

	entry, err := h.ledger.RecordPayment(ctx, services.RecordPaymentCommand{
		CustomerID: strings.TrimSpace(chi.URLParam(r, "customerID")),
		Amount:     amount,
		Remarks:    req.Remarks,
		Actor:      actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, buildOrderPayload(entry))
}
