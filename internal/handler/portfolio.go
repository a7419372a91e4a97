package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/service"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints.
type PortfolioHandler struct {
	svc    *service.PortfolioService
	logger *slog.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(svc *service.PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/portfolio.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, "Portfolio fetched successfully", newHoldingViews(h.svc.GetUserPortfolio(UserID(r))))
}

// Summary handles GET /api/v1/portfolio/summary.
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, "Portfolio summary fetched successfully", newSummaryView(h.svc.GetPortfolioSummary(UserID(r))))
}

// Get handles GET /api/v1/portfolio/{symbol}.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	holding, err := h.svc.GetHolding(UserID(r), symbol)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Holding fetched successfully", newHoldingView(holding))
}
