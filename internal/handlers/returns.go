package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/apexflow/api/internal/domain"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/services"
)

// ReturnHandlers exposes goods-return postings and the stock-room view.
type ReturnHandlers struct {
	returns services.ReturnService
}

// NewReturnHandlers constructs a new ReturnHandlers instance.
func NewReturnHandlers(returns services.ReturnService) *ReturnHandlers {
	return &ReturnHandlers{returns: returns}
}

// Routes registers the /returns endpoints.
func (h *ReturnHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createReturn)
	r.Get("/stock-room", h.stockRoom)
	r.Post("/stock-room/remove", h.removeStock)
}

type createReturnRequest struct {
	CustomerID string `json:"customerId"`
	Amount     string `json:"amount"`
	Remarks    string `json:"remarks"`
	Lines      []struct {
		ItemID      string `json:"itemId"`
		ReturnQty   int    `json:"returnQty"`
		ReturnPrice string `json:"returnPrice"`
	} `json:"lines"`
}

func (h *ReturnHandlers) createReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createReturnRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.CreateReturnCommand{
		CustomerID: req.CustomerID,
		Remarks:    req.Remarks,
		Actor:      actor,
	}
	if req.Amount != "" {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			writeInvalidRequest(ctx, w, "amount must be a decimal with at most one fractional digit")
			return
		}
		cmd.Amount = amount
	}
	for _, line := range req.Lines {
		price, err := parseAmount(line.ReturnPrice)
		if err != nil {
			writeInvalidRequest(ctx, w, "returnPrice must be a decimal with at most one fractional digit")
			return
		}
		cmd.Lines = append(cmd.Lines, services.ReturnCartLine{
			ItemID:      line.ItemID,
			ReturnQty:   line.ReturnQty,
			ReturnPrice: price,
		})
	}

	entry, err := h.returns.CreateReturn(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusCreated, buildOrderPayload(entry))
}

type stockContributionPayload struct {
	OrderID      string `json:"orderId"`
	CustomerName string `json:"customerName"`
	Date         string `json:"date"`
	Qty          int    `json:"qty"`
}

type stockRoomEntryPayload struct {
	Brand    string                     `json:"brand"`
	Model    string                     `json:"model"`
	Quality  string                     `json:"quality"`
	Quantity int                        `json:"quantity"`
	TotalVal string                     `json:"totalValue"`
	History  []stockContributionPayload `json:"history"`
}

func buildStockRoomEntryPayload(entry domain.StockRoomEntry) stockRoomEntryPayload {
	payload := stockRoomEntryPayload{
		Brand:    entry.Brand,
		Model:    entry.Model,
		Quality:  entry.Quality,
		Quantity: entry.Quantity,
		TotalVal: domain.FormatTenths(entry.TotalVal),
		History:  []stockContributionPayload{},
	}
	for _, contribution := range entry.History {
		payload.History = append(payload.History, stockContributionPayload{
			OrderID:      contribution.OrderID,
			CustomerName: contribution.CustomerName,
			Date:         formatTime(contribution.Date),
			Qty:          contribution.Qty,
		})
	}
	return payload
}

type stockRoomResponse struct {
	Entries []stockRoomEntryPayload `json:"entries"`
}

func (h *ReturnHandlers) stockRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := actorFromContext(ctx); !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	entries, err := h.returns.StockRoom(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := stockRoomResponse{Entries: []stockRoomEntryPayload{}}
	for _, entry := range entries {
		response.Entries = append(response.Entries, buildStockRoomEntryPayload(entry))
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}

type removeStockRequest struct {
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Quality  string `json:"quality"`
	Quantity int    `json:"quantity"`
}

type removeStockResponse struct {
	Removed       int      `json:"removed"`
	UpdatedOrders []string `json:"updatedOrders"`
	DeletedOrders []string `json:"deletedOrders"`
}

func (h *ReturnHandlers) removeStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req removeStockRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	result, err := h.returns.RemoveStock(ctx, services.RemoveStockCommand{
		Brand:    req.Brand,
		Model:    req.Model,
		Quality:  req.Quality,
		Quantity: req.Quantity,
		Actor:    actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	response := removeStockResponse{
		Removed:       result.Removed,
		UpdatedOrders: result.UpdatedOrders,
		DeletedOrders: result.DeletedOrders,
	}
	if response.UpdatedOrders == nil {
		response.UpdatedOrders = []string{}
	}
	if response.DeletedOrders == nil {
		response.DeletedOrders = []string{}
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, response)
}
