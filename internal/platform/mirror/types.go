package mirror

import (
	"strconv"
	"strings"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
)

// apiTransaction is the mirror's wire representation of a transaction.
type apiTransaction struct {
	TransactionID      string             `json:"transaction_id"`
	Result             string             `json:"result"`
	ConsensusTimestamp string             `json:"consensus_timestamp"`
	TokenTransfers     []apiTokenTransfer `json:"token_transfers"`
}

// apiTokenTransfer is one signed token movement leg.
type apiTokenTransfer struct {
	TokenID string `json:"token_id"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// transactionsResponse wraps the mirror's transaction query payload. The
// mirror returns a list; callers take the first entry.
type transactionsResponse struct {
	Transactions []apiTransaction `json:"transactions"`
}

// toDomain converts the wire transaction into the domain representation.
func (t apiTransaction) toDomain() *domain.LedgerTransaction {
	out := &domain.LedgerTransaction{
		TransactionID: t.TransactionID,
		Result:        t.Result,
		ConsensusAt:   parseConsensusTimestamp(t.ConsensusTimestamp),
	}
	for _, tt := range t.TokenTransfers {
		out.TokenTransfers = append(out.TokenTransfers, domain.TokenTransfer{
			TokenID: tt.TokenID,
			Account: tt.Account,
			Amount:  tt.Amount,
		})
	}
	return out
}

// parseConsensusTimestamp parses the mirror's "seconds.nanos" timestamp.
// A malformed value yields the zero time rather than an error; consensus
// time is informational only.
func parseConsensusTimestamp(ts string) time.Time {
	secsStr, nanosStr, _ := strings.Cut(ts, ".")
	secs, err := strconv.ParseInt(secsStr, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nanos int64
	if nanosStr != "" {
		// Right-pad to nine digits so "5" means 500ms, matching the mirror.
		for len(nanosStr) < 9 {
			nanosStr += "0"
		}
		nanos, err = strconv.ParseInt(nanosStr[:9], 10, 64)
		if err != nil {
			nanos = 0
		}
	}
	return time.Unix(secs, nanos).UTC()
}
