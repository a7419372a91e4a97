package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/service"
)

// SimulationHandler controls the price simulator.
type SimulationHandler struct {
	svc *service.SimulationService
}

// NewSimulationHandler creates a new SimulationHandler.
func NewSimulationHandler(svc *service.SimulationService) *SimulationHandler {
	return &SimulationHandler{svc: svc}
}

// Status handles GET /api/v1/simulation.
func (h *SimulationHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, "Simulation status fetched successfully", newSimulationView(h.svc.Status()))
}

// Start handles POST /api/v1/simulation/start. Starting a running
// simulator succeeds without side effects.
func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	message := "Price simulation started"
	if !h.svc.Start() {
		message = "Price simulation already running"
	}
	WriteSuccess(w, http.StatusOK, message, newSimulationView(h.svc.Status()))
}

// Stop handles POST /api/v1/simulation/stop.
func (h *SimulationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	message := "Price simulation stopped"
	if !h.svc.Stop() {
		message = "Price simulation not running"
	}
	WriteSuccess(w, http.StatusOK, message, newSimulationView(h.svc.Status()))
}

// Tick handles POST /api/v1/simulation/tick.
func (h *SimulationHandler) Tick(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, "Prices updated", newTickView(h.svc.Tick()))
}
