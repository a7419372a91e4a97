package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/service"
)

// TradeHandler handles HTTP requests for trade endpoints.
type TradeHandler struct {
	svc    *service.TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(svc *service.TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/trades.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, "Trades fetched successfully", newTradeViews(h.svc.ListUserTrades(UserID(r))))
}

// Stats handles GET /api/v1/trades/stats.
func (h *TradeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, "Trade statistics fetched successfully", newTradeStatsView(h.svc.GetTradeStats(UserID(r))))
}

// ListByOrder handles GET /api/v1/trades/order/{orderID}.
func (h *TradeHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.ListOrderTrades(chi.URLParam(r, "orderID"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Trades fetched successfully", newTradeViews(trades))
}
