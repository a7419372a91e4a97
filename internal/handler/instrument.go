package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
)

// maxDepthLevels caps the levels query parameter of the book endpoint.
const maxDepthLevels = 100

// InstrumentHandler handles HTTP requests for instrument endpoints.
type InstrumentHandler struct {
	svc    *service.InstrumentService
	logger *slog.Logger
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(svc *service.InstrumentService, logger *slog.Logger) *InstrumentHandler {
	return &InstrumentHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/instruments.
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	instruments := h.svc.List()
	out := make([]instrumentView, len(instruments))
	for i, in := range instruments {
		out[i] = newInstrumentView(in)
	}
	WriteSuccess(w, http.StatusOK, "Instruments fetched successfully", out)
}

// Get handles GET /api/v1/instruments/{symbol}.
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	in, err := h.svc.Get(chi.URLParam(r, "symbol"))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Instrument fetched successfully", newInstrumentView(in))
}

// Book handles GET /api/v1/instruments/{symbol}/book?levels=N.
func (h *InstrumentHandler) Book(w http.ResponseWriter, r *http.Request) {
	levels := 0
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDepthLevels {
			WriteError(w, http.StatusBadRequest, domain.KindValidation,
				"levels must be an integer between 1 and "+strconv.Itoa(maxDepthLevels))
			return
		}
		levels = n
	}

	depth, err := h.svc.Depth(chi.URLParam(r, "symbol"), levels)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteSuccess(w, http.StatusOK, "Order book fetched successfully", newDepthView(depth))
}
