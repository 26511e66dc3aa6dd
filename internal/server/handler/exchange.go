package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// ExchangeCatalog is what the exchange endpoints read. It is declared locally
// so the handler package does not depend on the concrete service.
type ExchangeCatalog interface {
	VenueIDs() []string
	Markets(venueID string) (domain.VenueMarkets, error)
}

// ExchangeHandler serves venue listing endpoints.
type ExchangeHandler struct {
	catalog ExchangeCatalog
	logger  *slog.Logger
}

// NewExchangeHandler creates an ExchangeHandler.
func NewExchangeHandler(catalog ExchangeCatalog, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{catalog: catalog, logger: logger}
}

// ListExchanges returns the configured venue ids in configured order.
// GET /api/exchanges
func (h *ExchangeHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	ids := h.catalog.VenueIDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// ListMarkets returns the symbols a venue trades.
// GET /api/exchanges/{id}/markets
func (h *ExchangeHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	markets, err := h.catalog.Markets(id)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownVenue) {
			writeError(w, http.StatusNotFound, codeNotFound, "exchange not found")
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusServiceUnavailable, codeUpstream, "exchange markets are not loaded")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("venue", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list markets")
		return
	}

	symbols := make([]string, 0, len(markets.Symbols))
	for _, s := range markets.Symbols {
		symbols = append(symbols, s.String())
	}
	writeJSON(w, http.StatusOK, symbols)
}
