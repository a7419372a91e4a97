package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
)

func init() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// envelope is the standard success response format.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// errorBody describes a failed request.
type errorBody struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// WriteSuccess wraps data in the success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// WriteError writes a standard error response with the given status code,
// error kind, and human-readable message.
func WriteError(w http.ResponseWriter, status int, kind domain.ErrorKind, message string, details ...string) {
	WriteJSON(w, status, errorResponse{
		Error: errorBody{
			Kind:    string(kind),
			Message: message,
			Errors:  details,
		},
	})
}

// statusFor maps an error kind to its HTTP status code.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError classifies err and writes the matching error response.
// Internal errors are logged and their details are not exposed.
func WriteServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := domain.KindOf(err)

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, statusFor(kind), kind, "Validation failed", validationErr.Messages()...)
		return
	}
	if kind == domain.KindInternal {
		logger.Error("request failed", slog.String("error", err.Error()))
	}
	WriteError(w, statusFor(kind), kind, errorMessage(err))
}

// errorMessage returns the client-facing message for a service error.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInstrumentNotFound):
		return "Instrument not found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, domain.ErrHoldingNotFound):
		return "No holdings found for symbol"
	case errors.Is(err, domain.ErrOrderNotOwned):
		return "Unauthorized to cancel this order"
	case errors.Is(err, domain.ErrOrderNotCancellable):
		return "Only PLACED orders can be cancelled"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Invalid order state"
	default:
		return "Internal server error"
	}
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}
