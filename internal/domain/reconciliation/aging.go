package reconciliation

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/remitflow/backend/internal/domain/reconciliation/acl"
	"github.com/shopspring/decimal"
)

// AgingBuckets holds outstanding balances grouped by age. Ages are measured
// in whole days from the claim's service date to the report's as-of date.
type AgingBuckets struct {
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days_1_to_30"`
	Days31To60 decimal.Decimal `json:"days_31_to_60"`
	Days61To90 decimal.Decimal `json:"days_61_to_90"`
	Days91Plus decimal.Decimal `json:"days_91_plus"`
}

func newAgingBuckets() AgingBuckets {
	return AgingBuckets{
		Current:    decimal.Zero,
		Days1To30:  decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Days91Plus: decimal.Zero,
	}
}

func (b *AgingBuckets) add(ageDays int, amount decimal.Decimal) {
	switch {
	case ageDays <= 0:
		b.Current = b.Current.Add(amount)
	case ageDays <= 30:
		b.Days1To30 = b.Days1To30.Add(amount)
	case ageDays <= 60:
		b.Days31To60 = b.Days31To60.Add(amount)
	case ageDays <= 90:
		b.Days61To90 = b.Days61To90.Add(amount)
	default:
		b.Days91Plus = b.Days91Plus.Add(amount)
	}
}

// Total returns the sum across all buckets
func (b AgingBuckets) Total() decimal.Decimal {
	return b.Current.
		Add(b.Days1To30).
		Add(b.Days31To60).
		Add(b.Days61To90).
		Add(b.Days91Plus)
}

// AgingRow is one grouping row (payer or program) in an aging report
type AgingRow struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	Buckets AgingBuckets    `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

// AgingReport is a point-in-time snapshot of outstanding receivables by age
type AgingReport struct {
	AsOfDate         time.Time       `json:"as_of_date"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	Buckets          AgingBuckets    `json:"buckets"`
	ByPayer          []AgingRow      `json:"by_payer"`
	ByProgram        []AgingRow      `json:"by_program"`
	ClaimCount       int             `json:"claim_count"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// BuildAgingReport buckets the outstanding balance of each claim by the age
// of its service date relative to asOf. Claims with no outstanding balance
// are ignored. The grand total always equals the sum of the buckets, which in
// turn equals the sum of every grouping row.
func BuildAgingReport(asOf time.Time, claims []acl.ClaimRef) *AgingReport {
	report := &AgingReport{
		AsOfDate:    asOf,
		Buckets:     newAgingBuckets(),
		ByPayer:     []AgingRow{},
		ByProgram:   []AgingRow{},
		GeneratedAt: time.Now(),
	}

	payerRows := make(map[uuid.UUID]*AgingRow)
	programRows := make(map[uuid.UUID]*AgingRow)

	asOfDay := asOf.Truncate(24 * time.Hour)
	for _, claim := range claims {
		if !claim.HasOutstanding() {
			continue
		}
		ageDays := int(asOfDay.Sub(claim.ServiceDate.Truncate(24*time.Hour)).Hours() / 24)
		amount := claim.OutstandingAmount

		report.Buckets.add(ageDays, amount)
		report.ClaimCount++

		payerRow := payerRows[claim.PayerID]
		if payerRow == nil {
			payerRow = &AgingRow{ID: claim.PayerID, Name: claim.PayerName, Buckets: newAgingBuckets()}
			payerRows[claim.PayerID] = payerRow
		}
		payerRow.Buckets.add(ageDays, amount)

		programRow := programRows[claim.ProgramID]
		if programRow == nil {
			programRow = &AgingRow{ID: claim.ProgramID, Name: claim.ProgramName, Buckets: newAgingBuckets()}
			programRows[claim.ProgramID] = programRow
		}
		programRow.Buckets.add(ageDays, amount)
	}

	report.TotalOutstanding = report.Buckets.Total()
	report.ByPayer = collectRows(payerRows)
	report.ByProgram = collectRows(programRows)

	return report
}

func collectRows(rows map[uuid.UUID]*AgingRow) []AgingRow {
	out := make([]AgingRow, 0, len(rows))
	for _, row := range rows {
		row.Total = row.Buckets.Total()
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
