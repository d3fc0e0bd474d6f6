// Package handler contains the JSON HTTP handlers for the auction API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// AuctionService defines what the handlers require from the service layer.
// Declared locally so the handler package does not depend on the concrete
// service implementation.
type AuctionService interface {
	ListAuctions(ctx context.Context) ([]domain.AuctionWithState, error)
	ServerTime() time.Time
}

// AuctionHandler serves the auction listing and clock endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given service and
// logger.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		logger:   logger,
	}
}

// ListAuctions returns every auction ordered by close time ascending,
// merged with its live price and leading bidder as of this request.
// GET /api/auctions
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.auctions.ListAuctions(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list auctions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch auctions")
		return
	}

	writeJSON(w, http.StatusOK, auctions)
}

// serverTimeResponse is the clock endpoint payload; the value is a Unix
// millisecond timestamp for offset computation by clients.
type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

// ServerTime returns the server's current clock reading.
// GET /api/time
func (h *AuctionHandler) ServerTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, serverTimeResponse{
		ServerTime: h.auctions.ServerTime().UnixMilli(),
	})
}
