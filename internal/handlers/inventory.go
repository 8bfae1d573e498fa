package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/services"
)

// InventoryHandlers exposes the stock catalogue and its audit trail.
type InventoryHandlers struct {
	inventory services.InventoryService
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventory: inventory}
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createItem)
	r.Get("/", h.listItems)
	r.Get("/{itemID}", h.getItem)
	r.Post("/{itemID}/adjust", h.adjustStock)
	r.Get("/{itemID}/logs", h.listLogs)
}

type inventoryItemPayload struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	Quality   string `json:"quality,omitempty"`
	Category  string `json:"category,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func buildInventoryItemPayload(item domain.InventoryItem) inventoryItemPayload {
	return inventoryItemPayload{
		ID:        item.ID,
		Brand:     item.Brand,
		Model:     item.Model,
		Quality:   item.Quality,
		Category:  item.Category,
		Quantity:  item.Quantity,
		Price:     domain.FormatTenths(item.Price),
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

type createInventoryItemRequest struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Quality  string `json:"quality"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func (h *InventoryHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createInventoryItemRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeInvalidRequest(ctx, w, "price must be a decimal with at most one fractional digit")
		return
	}

	item, err := h.inventory.CreateItem(ctx, services.CreateInventoryItemCommand{
		Brand:    req.Brand,
		Model:    req.Model,
		Quality:  req.Quality,
		Category: req.Category,
		Quantity: req.Quantity,
		Price:    price,
		Actor:    actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, buildInventoryItemPayload(item))
}

type inventoryListResponse struct {
	Items         []inventoryItemPayload `json:"items"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
}

func (h *InventoryHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	pager, ok := pagerFromRequest(ctx, w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := h.inventory.ListItems(ctx, services.InventoryListFilter{
		Brand:    strings.TrimSpace(query.Get("brand")),
		Category: strings.TrimSpace(query.Get("category")),
		Pagination: services.Pagination{
			PageSize:  pager.PageSize,
			PageToken: pager.PageToken,
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := inventoryListResponse{NextPageToken: page.NextPageToken}
	for _, item := range page.Items {
		response.Items = append(response.Items, buildInventoryItemPayload(item))
	}
	if response.Items == nil {
		response.Items = []inventoryItemPayload{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}

func (h *InventoryHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	item, err := h.inventory.GetItem(ctx, strings.TrimSpace(chi.URLParam(r, "itemID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildInventoryItemPayload(item))
}

type adjustStockRequest struct {
	Delta   int    `json:"delta"`
	Remarks string `json:"remarks"`
}

func (h *InventoryHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req adjustStockRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	item, err := h.inventory.AdjustStock(ctx, services.AdjustStockCommand{
		ItemID:  strings.TrimSpace(chi.URLParam(r, "itemID")),
		Delta:   req.Delta,
		Remarks: req.Remarks,
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, buildInventoryItemPayload(item))
}

type inventoryLogPayload struct {
	ID             string `json:"id"`
	ItemID         string `json:"itemId"`
	QuantityChange int    `json:"quantityChange"`
	CurrentStock   int    `json:"currentStock"`
	Status         string `json:"status"`
	Remarks        string `json:"remarks,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type inventoryLogListResponse struct {
	Items         []inventoryLogPayload `json:"items"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

func (h *InventoryHandlers) listLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	pager, ok := pagerFromRequest(ctx, w, r)
	if !ok {
		return
	}

	page, err := h.inventory.ListLogs(ctx, strings.TrimSpace(chi.URLParam(r, "itemID")), services.Pagination{
		PageSize:  pager.PageSize,
		PageToken: pager.PageToken,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := inventoryLogListResponse{NextPageToken: page.NextPageToken}
	for _, log := range page.Items {
		response.Items = append(response.Items, inventoryLogPayload{
			ID:             log.ID,
			ItemID:         log.ItemID,
			QuantityChange: log.QuantityChange,
			CurrentStock:   log.CurrentStock,
			Status:         string(log.Status),
			Remarks:        log.Remarks,
			CreatedAt:      formatTime(log.CreatedAt),
		})
	}
	if response.Items == nil {
		response.Items = []inventoryLogPayload{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}
