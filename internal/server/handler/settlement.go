package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// SettlementService defines the methods the settlement handler requires.
type SettlementService interface {
	SettleMatured(ctx context.Context) (int, error)
}

// SettlementHandler serves the manual settlement trigger.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logger,
	}
}

// settlementRunResponse reports how many investments a run settled.
type settlementRunResponse struct {
	Settled int `json:"settled"`
}

// RunSettlement settles every matured investment immediately, outside the
// scheduled cycle.
// POST /api/settlements/run
func (h *SettlementHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	settled, err := h.settlements.SettleMatured(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: settlement run failed",
			slog.Int("settled", settled),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "settlement run failed")
		return
	}

	writeJSON(w, http.StatusOK, settlementRunResponse{Settled: settled})
}
