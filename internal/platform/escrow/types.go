package escrow

// releaseRequest asks the escrow to mint/release fractional tokens to an
// investor.
type releaseRequest struct {
	InvestorAccount string `json:"investor_account"`
	TokenID         string `json:"token_id"`
	Units           int64  `json:"units"`
}

// recordRequest registers an investment on the escrow-side contract ledger.
type recordRequest struct {
	InvestorAccount string `json:"investor_account"`
	EscrowAccount   string `json:"escrow_account"`
	PrincipalUnits  int64  `json:"principal_units"`
}

// settleRequest pays out yield for the contract at the given index.
type settleRequest struct {
	InvestorAccount string `json:"investor_account"`
	ContractIndex   int64  `json:"contract_index"`
	YieldUnits      int64  `json:"yield_units"`
}

// receiptResponse is the escrow's acknowledgement of a completed operation.
// ContractIndex is only populated for record operations.
type receiptResponse struct {
	Receipt       string `json:"receipt"`
	ContractIndex *int64 `json:"contract_index,omitempty"`
	Status        string `json:"status"`
}

// errorResponse is the escrow's error payload.
type errorResponse struct {
	Error string `json:"error"`
}
