package service

import (
	"context"

	"github.com/efreitasn/papertrade/internal/engine"
)

// SimulationStatus describes the price simulator and the resting book.
type SimulationStatus struct {
	engine.SimulatorStatus
	RestingOrders int
}

// SimulationService starts, stops and inspects the price simulator.
type SimulationService struct {
	ctx       context.Context
	simulator *engine.Simulator
	matcher   *engine.Matcher
}

// NewSimulationService creates a SimulationService. ctx bounds every loop
// started through Start; cancelling it stops the simulator.
func NewSimulationService(ctx context.Context, simulator *engine.Simulator, matcher *engine.Matcher) *SimulationService {
	return &SimulationService{ctx: ctx, simulator: simulator, matcher: matcher}
}

// Start starts the simulator. It reports false if it was already running.
func (s *SimulationService) Start() bool {
	return s.simulator.Start(s.ctx)
}

// Stop stops the simulator. It reports false if it was not running.
func (s *SimulationService) Stop() bool {
	return s.simulator.Stop()
}

// Tick runs one price update and matching pass immediately.
func (s *SimulationService) Tick() engine.TickResult {
	return s.simulator.Tick()
}

// Status returns the simulator state.
func (s *SimulationService) Status() SimulationStatus {
	return SimulationStatus{
		SimulatorStatus: s.simulator.Status(),
		RestingOrders:   s.matcher.RestingCount(),
	}
}
