package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielokoye/vestpool/internal/domain"
)

// FundingService defines the methods the pool handler requires.
type FundingService interface {
	ListPools(ctx context.Context, filter domain.PoolFilter, opts domain.ListOpts) ([]domain.PoolListing, int, error)
	ComputeFunding(ctx context.Context, poolID string) (domain.FundingSummary, error)
}

// PoolReader loads pool metadata for the detail endpoint.
type PoolReader interface {
	GetByID(ctx context.Context, id string) (domain.Pool, error)
}

// PoolHandler serves pool listing and detail endpoints.
type PoolHandler struct {
	funding FundingService
	pools   PoolReader
	logger  *slog.Logger
}

// NewPoolHandler creates a PoolHandler.
func NewPoolHandler(funding FundingService, pools PoolReader, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{
		funding: funding,
		pools:   pools,
		logger:  logger,
	}
}

// listPoolsResponse wraps the pool listing response.
type listPoolsResponse struct {
	Pools []domain.PoolListing `json:"pools"`
	Total int                  `json:"total"`
}

// ListPools returns pools with derived funding state.
// GET /api/pools?status=funding&search=harvest&limit=50&offset=0
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.PoolFilter{
		Search: q.Get("search"),
		Status: domain.FundingStatus(q.Get("status")),
	}

	pools, total, err := h.funding.ListPools(r.Context(), filter, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list pools failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list pools")
		return
	}

	if pools == nil {
		pools = []domain.PoolListing{}
	}
	writeJSON(w, http.StatusOK, listPoolsResponse{Pools: pools, Total: total})
}

// GetPool returns a single pool with its derived funding state.
// GET /api/pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "pool id required")
		return
	}

	pool, err := h.pools.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPoolNotFound) {
			writeError(w, http.StatusNotFound, "pool not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get pool failed",
			slog.String("pool", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get pool")
		return
	}

	funding, err := h.funding.ComputeFunding(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: compute funding failed",
			slog.String("pool", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute funding")
		return
	}

	writeJSON(w, http.StatusOK, domain.PoolListing{Pool: pool, Funding: funding})
}
