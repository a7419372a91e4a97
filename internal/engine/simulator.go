package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

// RandSource yields uniform values in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// SimulatorStatus is a snapshot of the simulator's state.
type SimulatorStatus struct {
	Running    bool
	Interval   time.Duration
	Volatility float64
	Ticks      int64
	LastTickAt *time.Time
}

// Simulator random-walks every instrument price on a fixed interval and
// runs matching once after each tick.
type Simulator struct {
	matcher    *Matcher
	interval   time.Duration
	volatility float64
	rand       RandSource // only used under the matcher lock
	logger     *slog.Logger

	// lifecycle serializes Start, Stop and loop teardown, including the
	// state events they emit.
	lifecycle sync.Mutex

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	ticks      int64
	lastTickAt *time.Time
}

// NewSimulator creates a stopped simulator. volatility is the per-tick
// bound δ: each price moves by a uniform percentage in [-δ, +δ).
// A nil rnd seeds a generator from the clock.
func NewSimulator(matcher *Matcher, interval time.Duration, volatility float64, rnd RandSource, logger *slog.Logger) *Simulator {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		matcher:    matcher,
		interval:   interval,
		volatility: volatility,
		rand:       rnd,
		logger:     logger,
	}
}

// Start launches the background loop: one tick immediately, then one per
// interval until Stop is called or ctx is cancelled. Starting a running
// simulator is a no-op and returns false.
func (s *Simulator) Start(ctx context.Context) bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	prev := s.done
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
			// The previous loop ended with its parent context.
			s.teardownLocked(prev, "context cancelled")
		default:
			s.logger.Warn("price simulation already running")
			return false
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("price simulation started",
		slog.Duration("interval", s.interval),
		slog.Float64("volatility", s.volatility),
	)
	s.matcher.listener.SimulationStateChanged(true)

	go s.run(ctx, done)
	go s.reap(done)
	return true
}

// Stop halts the loop and waits for it to exit. Stopping a stopped
// simulator is a no-op and returns false.
func (s *Simulator) Stop() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return s.teardownLocked(done, "stopped")
}

// Running reports whether the background loop is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Status returns a snapshot of the simulator.
func (s *Simulator) Status() SimulatorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SimulatorStatus{
		Running:    s.cancel != nil,
		Interval:   s.interval,
		Volatility: s.volatility,
		Ticks:      s.ticks,
	}
	if s.lastTickAt != nil {
		at := *s.lastTickAt
		st.LastTickAt = &at
	}
	return st
}

// Tick moves every price once and runs matching. It is safe to call whether
// or not the loop is running.
func (s *Simulator) Tick() TickResult {
	res := s.matcher.Tick(s.step)

	s.mu.Lock()
	s.ticks++
	at := res.At
	s.lastTickAt = &at
	s.mu.Unlock()

	s.logger.Debug("price tick",
		slog.Int("instruments", len(res.Changes)),
		slog.Int("executions", len(res.Executions)),
	)
	return res
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.Tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// reap clears the running state when the loop ends because its parent
// context was cancelled rather than through Stop.
func (s *Simulator) reap(done chan struct{}) {
	<-done
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.teardownLocked(done, "context cancelled")
}

// teardownLocked clears the running state owned by the loop behind done and
// emits the stop event. It reports false if another loop owns the state.
// The caller must hold s.lifecycle.
func (s *Simulator) teardownLocked(done chan struct{}, reason string) bool {
	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return false
	}
	cancel := s.cancel
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	s.logger.Info("price simulation stopped", slog.String("reason", reason))
	s.matcher.listener.SimulationStateChanged(false)
	return true
}

// step is called by the matcher with its lock held, which also serializes
// access to s.rand.
func (s *Simulator) step(in domain.Instrument) decimal.Decimal {
	return NextPrice(in.LastTradedPrice, s.rand.Float64(), s.volatility)
}

// NextPrice maps a uniform draw r in [0, 1) to a move in [-volatility,
// +volatility) and returns the new price rounded to 2 decimals. Rounding
// can carry the result up to half a cent past old*(1±volatility), so after
// n ticks a price is bounded by initial*(1+volatility)^n plus n half cents,
// not by the compounded factor alone.
func NextPrice(old decimal.Decimal, r, volatility float64) decimal.Decimal {
	pct := (r - 0.5) * 2 * volatility
	next := domain.Round2(old.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct))))
	if !next.IsPositive() {
		return old
	}
	return next
}
