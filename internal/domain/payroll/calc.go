package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Calculator applies a progressive bracket table plus flat social security and
// pension contributions.
type Calculator struct {
	brackets []TaxBracket
}

var defaultCalculator = &Calculator{brackets: DefaultTaxBrackets}

func NewCalculator(brackets []TaxBracket) (*Calculator, error) {
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: empty tax bracket table", ErrInvalidInput)
	}
	if brackets[0].Min != 0 {
		return nil, fmt.Errorf("%w: first tax bracket must start at 0", ErrInvalidInput)
	}
	for i, b := range brackets {
		if b.Rate < 0 || b.FixedAmount < 0 || b.Max <= b.Min {
			return nil, fmt.Errorf("%w: malformed tax bracket %d", ErrInvalidInput, i)
		}
		if i > 0 && brackets[i-1].Max != b.Min {
			return nil, fmt.Errorf("%w: tax bracket %d is not contiguous", ErrInvalidInput, i)
		}
		if i < len(brackets)-1 && b.IsUnbounded() {
			return nil, fmt.Errorf("%w: only the last tax bracket may be unbounded", ErrInvalidInput)
		}
	}
	if !brackets[len(brackets)-1].IsUnbounded() {
		return nil, fmt.Errorf("%w: last tax bracket must be unbounded", ErrInvalidInput)
	}
	table := make([]TaxBracket, len(brackets))
	copy(table, brackets)
	return &Calculator{brackets: table}, nil
}

func (c *Calculator) Brackets() []TaxBracket {
	out := make([]TaxBracket, len(c.brackets))
	copy(out, c.brackets)
	return out
}

// ComputeTax uses the default bracket table.
func ComputeTax(grossSalary float64, exemptions Exemptions) (TaxCalculation, error) {
	return defaultCalculator.ComputeTax(grossSalary, exemptions)
}

func (c *Calculator) ComputeTax(grossSalary float64, exemptions Exemptions) (TaxCalculation, error) {
	if !validAmount(grossSalary) {
		return TaxCalculation{}, fmt.Errorf("%w: gross salary must be a non-negative amount", ErrInvalidInput)
	}
	if exemptions.Personal < 0 || exemptions.Dependents < 0 {
		return TaxCalculation{}, fmt.Errorf("%w: exemption counts cannot be negative", ErrInvalidInput)
	}

	gross := dec(grossSalary)
	totalExemptions := decimal.NewFromInt(int64(exemptions.Personal)).Mul(dec(PersonalExemption)).
		Add(decimal.NewFromInt(int64(exemptions.Dependents)).Mul(dec(DependentExemption)))
	taxable := decimal.Max(decimal.Zero, gross.Sub(totalExemptions))

	bracket, matched := c.lastMatchingBracket(taxable)
	incomeTax := decimal.Zero
	if matched {
		upper := taxable
		if !bracket.IsUnbounded() {
			upper = decimal.Min(taxable, dec(bracket.Max))
		}
		incomeTax = dec(bracket.FixedAmount).Add(upper.Sub(dec(bracket.Min)).Mul(dec(bracket.Rate)))
	}

	pit := incomeTax.Round(2)
	socialSecurity := gross.Mul(dec(SocialSecurityRate)).Round(2)
	pension := gross.Mul(dec(PensionContributionRate)).Round(2)
	total := pit.Add(socialSecurity).Add(pension)

	return TaxCalculation{
		GrossSalary:                money(gross),
		TaxableIncome:              money(taxable),
		PersonalIncomeTax:          money(pit),
		SocialSecurityContribution: money(socialSecurity),
		PensionContribution:        money(pension),
		TotalDeductions:            money(total),
		NetSalary:                  money(gross.Round(2).Sub(total)),
		TaxBracketUsed:             describeBracket(bracket),
		Exemptions:                 exemptions,
	}, nil
}

// lastMatchingBracket returns the highest bracket whose Min is strictly below
// taxable. Its FixedAmount already covers the lower brackets, so no sum over
// the table is taken. With nothing matched the first bracket is reported.
func (c *Calculator) lastMatchingBracket(taxable decimal.Decimal) (TaxBracket, bool) {
	used := c.brackets[0]
	matched := false
	for _, b := range c.brackets {
		if dec(b.Min).LessThan(taxable) {
			used = b
			matched = true
		}
	}
	return used, matched
}

func describeBracket(b TaxBracket) string {
	rate := dec(b.Rate).Mul(hundred).String()
	if b.IsUnbounded() {
		return fmt.Sprintf("%s%% (%s+ %s)", rate, dec(b.Min).String(), CurrencyCode)
	}
	return fmt.Sprintf("%s%% (%s-%s %s)", rate, dec(b.Min).String(), dec(b.Max).String(), CurrencyCode)
}

// ComputeDraftPay is the flat-rate variant used for interactive drafts.
func ComputeDraftPay(baseSalary float64, components Allowances, cfg DeductionConfig) (DraftPay, error) {
	for _, v := range []float64{
		baseSalary, components.Transport, components.Medical, components.Housing,
		components.PerformanceBonus, components.Overtime, components.Other,
		cfg.TaxRate, cfg.SocialSecurityRate, cfg.PensionRate, cfg.OtherDeductions,
	} {
		if !validAmount(v) {
			return DraftPay{}, fmt.Errorf("%w: salary components and rates must be non-negative", ErrInvalidInput)
		}
	}

	gross := dec(baseSalary).Add(allowanceTotal(components)).Add(dec(components.Overtime)).Round(2)
	tax := gross.Mul(percent(cfg.TaxRate)).Round(2)
	socialSecurity := gross.Mul(percent(cfg.SocialSecurityRate)).Round(2)
	pension := gross.Mul(percent(cfg.PensionRate)).Round(2)
	other := dec(cfg.OtherDeductions).Round(2)
	total := tax.Add(socialSecurity).Add(pension).Add(other)

	return DraftPay{
		GrossPay:                money(gross),
		TaxDeduction:            money(tax),
		SocialSecurityDeduction: money(socialSecurity),
		PensionDeduction:        money(pension),
		OtherDeductions:         money(other),
		TotalDeductions:         money(total),
		NetPay:                  money(gross.Sub(total)),
	}, nil
}

// allowanceTotal excludes overtime, which records carry separately.
func allowanceTotal(a Allowances) decimal.Decimal {
	return dec(a.Transport).Add(dec(a.Medical)).Add(dec(a.Housing)).
		Add(dec(a.PerformanceBonus)).Add(dec(a.Other))
}

// ComputeEndOfService approximates service length with 365-day years and
// 30-day months; leap days are not accounted for.
func ComputeEndOfService(in EndOfServiceInput) (EndOfServiceCalculation, error) {
	if in.ServiceStart.IsZero() || in.ServiceEnd.IsZero() {
		return EndOfServiceCalculation{}, fmt.Errorf("%w: service start and end dates are required", ErrInvalidInput)
	}
	if in.ServiceEnd.Before(in.ServiceStart) {
		return EndOfServiceCalculation{}, fmt.Errorf("%w: service end is before service start", ErrInvalidInput)
	}
	if !validAmount(in.LastBasicSalary) || !validAmount(in.AccruedLeaveDays) || !validAmount(in.NoticePeriodDays) {
		return EndOfServiceCalculation{}, fmt.Errorf("%w: salary and day counts must be non-negative", ErrInvalidInput)
	}

	totalDays := daysBetween(in.ServiceStart, in.ServiceEnd)
	years := totalDays / DaysPerYear
	months := (totalDays % DaysPerYear) / DaysPerMonth

	gratuityDays := min(years, 5)*GratuityDaysFirstFiveYears + max(0, years-5)*GratuityDaysAfterFiveYears

	daily := dec(in.LastBasicSalary).Div(decimal.NewFromInt(DaysPerMonth))
	gratuity := decimal.NewFromInt(int64(gratuityDays)).Mul(daily).Round(2)
	leave := dec(in.AccruedLeaveDays).Mul(daily).Round(2)
	notice := dec(in.NoticePeriodDays).Mul(daily).Round(2)
	severance := decimal.Zero
	total := gratuity.Add(leave).Add(notice).Add(severance)

	taxOnGratuity := decimal.Zero
	if exempt := dec(GratuityTaxExemption); gratuity.GreaterThan(exempt) {
		taxOnGratuity = gratuity.Sub(exempt).Mul(dec(GratuityTaxRate)).Round(2)
	}

	return EndOfServiceCalculation{
		ServiceStart:         in.ServiceStart,
		ServiceEnd:           in.ServiceEnd,
		TotalDays:            totalDays,
		YearsOfService:       years,
		MonthsOfService:      months,
		LastBasicSalary:      money(dec(in.LastBasicSalary)),
		DailySalary:          money(daily),
		GratuityDays:         gratuityDays,
		GratuityAmount:       money(gratuity),
		LeaveEncashment:      money(leave),
		NoticePay:            money(notice),
		SeverancePay:         money(severance),
		TotalEndOfServicePay: money(total),
		TaxOnGratuity:        money(taxOnGratuity),
		NetEndOfServicePay:   money(total.Sub(taxOnGratuity)),
	}, nil
}

func daysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}
