package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"hrpay/internal/domain/payroll"
)

// PeriodSummary is the dashboard view of one pay period.
type PeriodSummary struct {
	PayPeriod        string                        `json:"payPeriod"`
	Records          int                           `json:"records"`
	ByStatus         map[payroll.PaymentStatus]int `json:"byStatus"`
	GrossTotal       float64                       `json:"grossTotal"`
	DeductionsTotal  float64                       `json:"deductionsTotal"`
	NetTotal         float64                       `json:"netTotal"`
	AwaitingEmployee int                           `json:"awaitingEmployee"`
	AwaitingFinance  int                           `json:"awaitingFinance"`
}

type RecordLister interface {
	ListRecords(ctx context.Context, filter payroll.RecordFilter) ([]payroll.Record, error)
}

type Service struct {
	Records RecordLister
}

func NewService(records RecordLister) *Service {
	return &Service{Records: records}
}

// PayrollSummary summarizes one period, or every period when payPeriod is empty.
func (s *Service) PayrollSummary(ctx context.Context, payPeriod string) ([]PeriodSummary, error) {
	records, err := s.Records.ListRecords(ctx, payroll.RecordFilter{PayPeriod: payPeriod})
	if err != nil {
		return nil, fmt.Errorf("list payroll records: %w", err)
	}
	return Summarize(records), nil
}

type totals struct {
	summary    PeriodSummary
	gross      decimal.Decimal
	deductions decimal.Decimal
	net        decimal.Decimal
}

// Summarize groups records by pay period, newest period first.
func Summarize(records []payroll.Record) []PeriodSummary {
	byPeriod := map[string]*totals{}
	for _, rec := range records {
		t, ok := byPeriod[rec.PayPeriod]
		if !ok {
			t = &totals{summary: PeriodSummary{
				PayPeriod: rec.PayPeriod,
				ByStatus:  map[payroll.PaymentStatus]int{},
			}}
			byPeriod[rec.PayPeriod] = t
		}
		t.summary.Records++
		t.summary.ByStatus[rec.PaymentStatus]++
		switch rec.PaymentStatus {
		case payroll.StatusPendingEmployeeApproval:
			t.summary.AwaitingEmployee++
		case payroll.StatusEmployeeApproved, payroll.StatusPendingFinanceApproval:
			t.summary.AwaitingFinance++
		}
		t.gross = t.gross.Add(decimal.NewFromFloat(rec.GrossPay))
		t.net = t.net.Add(decimal.NewFromFloat(rec.NetPay))
		for _, d := range []float64{rec.Taxes, rec.SocialSecurity, rec.Pension, rec.OtherDeductions} {
			t.deductions = t.deductions.Add(decimal.NewFromFloat(d))
		}
	}

	out := make([]PeriodSummary, 0, len(byPeriod))
	for _, t := range byPeriod {
		t.summary.GrossTotal = t.gross.Round(2).InexactFloat64()
		t.summary.DeductionsTotal = t.deductions.Round(2).InexactFloat64()
		t.summary.NetTotal = t.net.Round(2).InexactFloat64()
		out = append(out, t.summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayPeriod > out[j].PayPeriod })
	return out
}
