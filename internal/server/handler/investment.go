package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielokoye/vestpool/internal/domain"
)

// InvestmentService defines the methods the investment handler requires.
type InvestmentService interface {
	RecordInvestment(ctx context.Context, investorID, investorAccount, poolID, depositReference string) (domain.Investment, error)
}

// InvestmentHandler serves the deposit-to-investment endpoint.
type InvestmentHandler struct {
	investments InvestmentService
	logger      *slog.Logger
}

// NewInvestmentHandler creates an InvestmentHandler.
func NewInvestmentHandler(investments InvestmentService, logger *slog.Logger) *InvestmentHandler {
	return &InvestmentHandler{
		investments: investments,
		logger:      logger,
	}
}

// recordInvestmentRequest is the body of POST /api/investments. The amount is
// intentionally absent; it is read from the verified ledger transfer.
type recordInvestmentRequest struct {
	InvestorID       string `json:"investor_id"`
	InvestorAccount  string `json:"investor_account"`
	PoolID           string `json:"pool_id"`
	DepositReference string `json:"deposit_reference"`
}

func (req recordInvestmentRequest) validate() string {
	switch {
	case strings.TrimSpace(req.InvestorID) == "":
		return "investor_id required"
	case strings.TrimSpace(req.InvestorAccount) == "":
		return "investor_account required"
	case strings.TrimSpace(req.PoolID) == "":
		return "pool_id required"
	case strings.TrimSpace(req.DepositReference) == "":
		return "deposit_reference required"
	default:
		return ""
	}
}

// recordInvestmentResponse wraps a recorded investment. AlreadyRecorded is
// true when the deposit reference had been recorded by an earlier request.
type recordInvestmentResponse struct {
	Investment      domain.Investment `json:"investment"`
	AlreadyRecorded bool              `json:"already_recorded"`
}

// RecordInvestment verifies a ledger deposit and records it as an investment.
// POST /api/investments
func (h *InvestmentHandler) RecordInvestment(w http.ResponseWriter, r *http.Request) {
	var req recordInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	inv, err := h.investments.RecordInvestment(r.Context(),
		req.InvestorID, req.InvestorAccount, req.PoolID, req.DepositReference)

	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, recordInvestmentResponse{Investment: inv})

	case errors.Is(err, domain.ErrAlreadyRecorded):
		// Replays are not failures; the caller gets the original record.
		writeJSON(w, http.StatusOK, recordInvestmentResponse{Investment: inv, AlreadyRecorded: true})

	case errors.Is(err, domain.ErrPoolNotFound):
		writeError(w, http.StatusNotFound, "pool not found")

	case errors.Is(err, domain.ErrPoolNotTokenized):
		writeError(w, http.StatusConflict, "pool is not tokenized yet")

	case errors.Is(err, domain.ErrTransactionNotFound):
		writeError(w, http.StatusUnprocessableEntity, "deposit not found on ledger")

	case errors.Is(err, domain.ErrNotConfirmed):
		writeError(w, http.StatusUnprocessableEntity, "deposit not confirmed on ledger")

	case errors.Is(err, domain.ErrAssetMismatch), errors.Is(err, domain.ErrTransferMismatch):
		writeError(w, http.StatusUnprocessableEntity, "deposit does not match expected transfer")

	case errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrAboveMaximum),
		errors.Is(err, domain.ErrNotFractional),
		errors.Is(err, domain.ErrZeroAllocation),
		errors.Is(err, domain.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, domain.ErrInconsistency):
		// Already escalated inside the service; the caller must not retry.
		writeError(w, http.StatusInternalServerError, "investment requires manual reconciliation")

	default:
		h.logger.ErrorContext(r.Context(), "handler: record investment failed",
			slog.String("pool", req.PoolID),
			slog.String("deposit_reference", req.DepositReference),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to record investment")
	}
}
