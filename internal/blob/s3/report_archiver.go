package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/danielokoye/vestpool/internal/service"
)

// ReportArchiver writes settlement run reports as CSV objects, one per run,
// keyed by run timestamp. Reports are the offline record handed to finance;
// losing one is recoverable from the audit log.
type ReportArchiver struct {
	writer *Writer
	prefix string
}

// NewReportArchiver creates a ReportArchiver uploading under the given key
// prefix, for example "settlements".
func NewReportArchiver(c *Client, prefix string) *ReportArchiver {
	if prefix == "" {
		prefix = "settlements"
	}
	return &ReportArchiver{
		writer: NewWriter(c),
		prefix: prefix,
	}
}

// ArchiveSettlementRun uploads one run's rows as CSV and returns the object
// key.
func (a *ReportArchiver) ArchiveSettlementRun(ctx context.Context, runAt time.Time, rows []service.SettlementRow) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"investment_id", "investor_id", "pool_id", "contract_index", "yield_units", "receipt", "settled_at"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("s3blob: write report header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.InvestmentID,
			row.InvestorID,
			row.PoolID,
			strconv.FormatInt(row.ContractIndex, 10),
			strconv.FormatInt(row.YieldUnits, 10),
			row.Receipt,
			row.SettledAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("s3blob: write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("s3blob: flush report: %w", err)
	}

	key := fmt.Sprintf("%s/%s.csv", a.prefix, runAt.UTC().Format("2006-01-02T15-04-05Z"))
	if err := a.writer.Put(ctx, key, &buf, "text/csv"); err != nil {
		return "", err
	}
	return key, nil
}

// Compile-time interface check.
var _ service.ReportArchiver = (*ReportArchiver)(nil)
