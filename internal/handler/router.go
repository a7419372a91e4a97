package handler

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/events"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/efreitasn/papertrade/internal/store"
)

// Services groups everything the HTTP layer calls into.
type Services struct {
	Instruments *service.InstrumentService
	Orders      *service.OrderService
	Trades      *service.TradeService
	Portfolio   *service.PortfolioService
	Simulation  *service.SimulationService
	Events      *events.Broadcaster
	Stats       func() store.Stats
}

// NewRouter creates a chi router with all routes registered, request logging,
// mock authentication and Content-Type validation middleware.
func NewRouter(svc Services, defaultUserID string, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))

	instrumentH := NewInstrumentHandler(svc.Instruments, logger)
	orderH := NewOrderHandler(svc.Orders, logger)
	tradeH := NewTradeHandler(svc.Trades, logger)
	portfolioH := NewPortfolioHandler(svc.Portfolio, logger)
	simulationH := NewSimulationHandler(svc.Simulation)
	streamH := NewStreamHandler(svc.Events, logger)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"simulation":  svc.Simulation.Status().Running,
			"instruments": stats.Instruments,
			"orders":      stats.Orders,
			"trades":      stats.Trades,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mockAuth(defaultUserID))
		r.Use(contentTypeJSON)

		// Instrument routes.
		r.Get("/instruments", instrumentH.List)
		r.Get("/instruments/{symbol}", instrumentH.Get)
		r.Get("/instruments/{symbol}/book", instrumentH.Book)

		// Order routes.
		r.Post("/orders", orderH.PlaceOrder)
		r.Get("/orders", orderH.ListOrders)
		r.Get("/orders/{orderID}", orderH.GetOrder)
		r.Delete("/orders/{orderID}", orderH.CancelOrder)

		// Trade routes.
		r.Get("/trades", tradeH.List)
		r.Get("/trades/stats", tradeH.Stats)
		r.Get("/trades/order/{orderID}", tradeH.ListByOrder)

		// Portfolio routes.
		r.Get("/portfolio", portfolioH.List)
		r.Get("/portfolio/summary", portfolioH.Summary)
		r.Get("/portfolio/{symbol}", portfolioH.Get)

		// Simulation routes.
		r.Get("/simulation", simulationH.Status)
		r.Post("/simulation/start", simulationH.Start)
		r.Post("/simulation/stop", simulationH.Stop)
		r.Post("/simulation/tick", simulationH.Tick)
	})

	// Streams.
	r.With(mockAuth(defaultUserID)).Get("/ws/prices", streamH.Prices)
	r.With(mockAuth(defaultUserID)).Get("/ws/executions", streamH.Executions)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests that carry a body. Bodyless POSTs such as
// /simulation/start pass through.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && (ct == "" || !strings.HasPrefix(ct, "application/json")) {
				WriteError(w, http.StatusBadRequest, domain.KindValidation,
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

// userHeader lets a caller act as another user. There is no real
// authentication: every request is trusted.
const userHeader = "X-User-Id"

// mockAuth attaches the acting user to the request context.
func mockAuth(defaultUserID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userHeader))
			if userID == "" {
				userID = defaultUserID
			}
			ctx := context.WithValue(r.Context(), userKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the acting user of a request.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}
