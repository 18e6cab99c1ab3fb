// Package api implements the HTTP/JSON surface over the command handler
// (C3) and query service (C6), in the plain net/http.ServeMux idiom used
// elsewhere in the retrieved pack rather than a generated RPC gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/floroz/auction-core/internal/auction"
)

// CommandHandler is the subset of auction.Service the API depends on.
type CommandHandler interface {
	PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.Event, error)
	BuyNow(ctx context.Context, cmd auction.BuyNowCommand) (*auction.Event, error)
}

// QueryService is the subset of query.Service the API depends on.
type QueryService interface {
	GetItem(ctx context.Context, itemID uint64) (*auction.Item, error)
	ListItems(ctx context.Context) ([]*auction.Item, error)
	ListBids(ctx context.Context, itemID uint64) ([]*auction.Bid, error)
	TopBid(ctx context.Context, itemID uint64) (*auction.Bid, error)
	Status(ctx context.Context, itemID uint64) (auction.ItemStatus, error)
}

type Handler struct {
	commands CommandHandler
	queries  QueryService
	logger   *slog.Logger
}

func NewHandler(commands CommandHandler, queries QueryService, logger *slog.Logger) *Handler {
	return &Handler{commands: commands, queries: queries, logger: logger}
}

// Routes registers every endpoint from SPEC_FULL.md §6 onto mux, using the
// Go 1.22+ method+pattern ServeMux syntax.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /bid", h.placeBid)
	mux.HandleFunc("POST /buy-now", h.buyNow)
	mux.HandleFunc("GET /items", h.listItems)
	mux.HandleFunc("GET /items/{id}", h.getItem)
	mux.HandleFunc("GET /items/{id}/bids", h.listBids)
	mux.HandleFunc("GET /items/{id}/top-bid", h.topBid)
	mux.HandleFunc("GET /items/{id}/status", h.status)
	mux.HandleFunc("GET /health", h.health)
}

type placeBidRequest struct {
	ItemID    uint64    `json:"item_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	BidAmount int64     `json:"bid_amount"`
}

type buyNowRequest struct {
	ItemID  uint64    `json:"item_id"`
	BuyerID uuid.UUID `json:"buyer_id"`
}

type eventResponse struct {
	Message   string `json:"message"`
	EventType string `json:"event_type"`
	Version   int64  `json:"version"`
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	event, err := h.commands.PlaceBid(r.Context(), auction.PlaceBidCommand{
		ItemID:    req.ItemID,
		BidderID:  req.BidderID,
		BidAmount: req.BidAmount,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{Message: "bid accepted", EventType: string(event.EventType), Version: event.Version})
}

func (h *Handler) buyNow(w http.ResponseWriter, r *http.Request) {
	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	event, err := h.commands.BuyNow(r.Context(), auction.BuyNowCommand{
		ItemID:  req.ItemID,
		BuyerID: req.BuyerID,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{Message: "buy-now executed", EventType: string(event.EventType), Version: event.Version})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.queries.ListItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	item, err := h.queries.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) listBids(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	bids, err := h.queries.ListBids(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list bids")
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (h *Handler) topBid(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	bid, err := h.queries.TopBid(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to fetch top bid")
		return
	}
	if bid == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathItemID(w, r)
	if !ok {
		return
	}
	status, err := h.queries.Status(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusNotFound, codeNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stable machine codes clients key on (spec.md §6 table, §7). Upper-case,
// independent of the sentinel's human-readable message.
const (
	codeNotFound       = "NOT_FOUND"
	codeNotStarted     = "NOT_STARTED"
	codeAlreadyEnded   = "ALREADY_ENDED"
	codeLowBid         = "LOW_BID"
	codeConflict       = "CONFLICT"
	codeInternal       = "INTERNAL"
	codeInvalidRequest = "INVALID_REQUEST"
)

// writeCommandError maps the auction package's sentinel error taxonomy to
// HTTP status codes and machine codes per SPEC_FULL.md §7.
func (h *Handler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, auction.ErrNotStarted):
		writeError(w, http.StatusBadRequest, codeNotStarted, err.Error())
	case errors.Is(err, auction.ErrAlreadyEnded):
		writeError(w, http.StatusBadRequest, codeAlreadyEnded, err.Error())
	case errors.Is(err, auction.ErrLowBid):
		writeError(w, http.StatusBadRequest, codeLowBid, err.Error())
	case errors.Is(err, auction.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	default:
		h.logger.Error("command failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func pathItemID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "error": message})
}
