package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsuggest/internal/domain"
)

// minAmount is the smallest amount a request may ask for.
var minAmount = decimal.New(1, -9)

// ArbitrageService defines the method the arbitrage handler requires.
type ArbitrageService interface {
	Execute(ctx context.Context, requests []domain.ArbitrageRequest) ([]domain.Suggestion, error)
}

// ArbitrageHandler serves the suggestion endpoint.
type ArbitrageHandler struct {
	svc       ArbitrageService
	bodyLimit int64
	logger    *slog.Logger
}

// NewArbitrageHandler creates an ArbitrageHandler. Bodies larger than
// bodyLimit bytes are rejected.
func NewArbitrageHandler(svc ArbitrageService, bodyLimit int64, logger *slog.Logger) *ArbitrageHandler {
	return &ArbitrageHandler{svc: svc, bodyLimit: bodyLimit, logger: logger}
}

// requestItem is one element of the request array. "amount" is accepted as an
// alias of "value".
type requestItem struct {
	Symbol *string      `json:"symbol"`
	Value  *json.Number `json:"value"`
	Amount *json.Number `json:"amount"`
}

type suggestionResponse struct {
	Exchange string      `json:"exchange"`
	Currency string      `json:"currency"`
	Amount   json.Number `json:"amount"`
}

// fieldError describes one invalid field of the request.
type fieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Suggest answers how much of each currency to source from each venue.
// POST /api/arbitrage
func (h *ArbitrageHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.bodyLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	}

	var items []requestItem
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&items); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "request body must contain a single JSON array")
		return
	}

	requests, details := parseRequests(items)
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    codeValidation,
			Message: "Invalid request data",
			Details: details,
		})
		return
	}

	suggestions, err := h.svc.Execute(r.Context(), requests)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]suggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionResponse{
			Exchange: s.VenueID,
			Currency: s.Currency,
			Amount:   json.Number(s.Amount.String()),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// parseRequests validates every item and reports all problems at once.
func parseRequests(items []requestItem) ([]domain.ArbitrageRequest, []fieldError) {
	var details []fieldError
	if len(items) == 0 {
		return nil, []fieldError{{Path: "body", Message: "must contain at least one request"}}
	}

	requests := make([]domain.ArbitrageRequest, 0, len(items))
	for i, item := range items {
		var req domain.ArbitrageRequest
		path := fmt.Sprintf("[%d]", i)

		if item.Symbol == nil {
			details = append(details, fieldError{Path: path + ".symbol", Message: "is required"})
		} else if sym, err := domain.ParseSymbol(*item.Symbol); err != nil {
			details = append(details, fieldError{Path: path + ".symbol", Message: err.Error()})
		} else {
			req.Symbol = sym
		}

		switch {
		case item.Value != nil && item.Amount != nil:
			details = append(details, fieldError{Path: path, Message: "set value or amount, not both"})
		case item.Value == nil && item.Amount == nil:
			details = append(details, fieldError{Path: path + ".value", Message: "is required"})
		default:
			raw, field := item.Value, ".value"
			if raw == nil {
				raw, field = item.Amount, ".amount"
			}
			amount, err := decimal.NewFromString(raw.String())
			switch {
			case err != nil:
				details = append(details, fieldError{Path: path + field, Message: "must be a number"})
			case amount.LessThan(minAmount):
				details = append(details, fieldError{Path: path + field, Message: "must be at least " + minAmount.String()})
			default:
				req.Amount = amount
			}
		}

		requests = append(requests, req)
	}
	return requests, details
}

func (h *ArbitrageHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyRequest),
		errors.Is(err, domain.ErrInvalidSymbol),
		errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	case errors.Is(err, domain.ErrSnapshotFetch):
		h.logger.WarnContext(r.Context(), "handler: order books unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, codeUpstream, "order books could not be fetched")
		return
	case errors.Is(err, domain.ErrUnknownVenue), errors.Is(err, domain.ErrUnknownCurrency):
		h.logger.ErrorContext(r.Context(), "handler: precision unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, codePrecision, "currency precision is unavailable for a suggested venue")
		return
	}

	h.logger.ErrorContext(r.Context(), "handler: arbitrage failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, codeInternal, "Unexpected error")
}
