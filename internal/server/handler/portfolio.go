package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielokoye/vestpool/internal/domain"
)

// PortfolioService defines the methods the portfolio handler requires.
type PortfolioService interface {
	GetPortfolio(ctx context.Context, investorID string) (domain.Portfolio, error)
}

// PortfolioHandler serves the investor portfolio endpoint.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio: portfolio,
		logger:    logger,
	}
}

// GetPortfolio returns the investor's holdings grouped by pool.
// GET /api/portfolio?investor_id=...
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	investorID := r.URL.Query().Get("investor_id")
	if investorID == "" {
		writeError(w, http.StatusBadRequest, "investor_id query parameter required")
		return
	}

	portfolio, err := h.portfolio.GetPortfolio(r.Context(), investorID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get portfolio failed",
			slog.String("investor", investorID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get portfolio")
		return
	}

	writeJSON(w, http.StatusOK, portfolio)
}
