package taxrule

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// amounts are monetary, rounded to 2 decimal places half-up
const amountPlaces = 2

// UnconfiguredRangeError reports a gross pay value that no tier or band
// covers. It is a statutory-configuration defect, kept distinct from a
// legitimate zero-tax result.
type UnconfiguredRangeError struct {
	Shape    RateShape
	GrossPay decimal.Decimal
	Detail   string
}

func (e *UnconfiguredRangeError) Error() string {
	return fmt.Sprintf("unconfigured %s range for gross pay %s: %s",
		e.Shape, e.GrossPay.StringFixed(amountPlaces), e.Detail)
}

// Evaluate computes the deduction amount for one rule's parameters. Pure:
// same inputs, same output. Gross pay at or below zero is zero for every
// shape.
func Evaluate(grossPay decimal.Decimal, params RateParams) (decimal.Decimal, error) {
	if grossPay.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	switch p := params.(type) {
	case FlatPercentageParams:
		return evaluateFlatPercentage(grossPay, p), nil
	case ProgressiveBracketParams:
		return evaluateProgressiveBrackets(grossPay, p)
	case SalaryTierParams:
		return evaluateSalaryTiers(grossPay, p)
	case AmountBandParams:
		return evaluateAmountBands(grossPay, p)
	default:
		return decimal.Zero, fmt.Errorf("unsupported rate parameters %T", params)
	}
}

func evaluateFlatPercentage(grossPay decimal.Decimal, p FlatPercentageParams) decimal.Decimal {
	amount := grossPay.Mul(p.Percentage).Round(amountPlaces)

	if p.MinAmount != nil && amount.LessThan(*p.MinAmount) {
		amount = *p.MinAmount
	}
	if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
		amount = *p.MaxAmount
	}

	return amount
}

// evaluateProgressiveBrackets is cumulative: every bracket below the gross
// pay contributes its slice. Brackets must start at zero and be contiguous.
func evaluateProgressiveBrackets(grossPay decimal.Decimal, p ProgressiveBracketParams) (decimal.Decimal, error) {
	if err := checkBracketCoverage(p.Brackets); err != nil {
		return decimal.Zero, &UnconfiguredRangeError{
			Shape:    ShapeProgressiveBrackets,
			GrossPay: grossPay,
			Detail:   err.Error(),
		}
	}

	total := decimal.Zero
	for _, b := range p.Brackets {
		if grossPay.LessThanOrEqual(b.From) {
			break
		}

		upper := grossPay
		if b.To != nil && b.To.LessThan(upper) {
			upper = *b.To
		}

		total = total.Add(upper.Sub(b.From).Mul(b.Rate))
	}

	if p.PersonalRelief != nil {
		total = total.Sub(*p.PersonalRelief)
		if total.IsNegative() {
			total = decimal.Zero
		}
	}

	return total.Round(amountPlaces), nil
}

func checkBracketCoverage(brackets []Bracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("no brackets configured")
	}
	if !brackets[0].From.IsZero() {
		return fmt.Errorf("first bracket starts at %s, must start at 0", brackets[0].From)
	}

	for i, b := range brackets {
		last := i == len(brackets)-1
		if b.To == nil {
			if !last {
				return fmt.Errorf("bracket %d is open-ended but not last", i)
			}
			continue
		}
		if last {
			return fmt.Errorf("final bracket must be open-ended")
		}
		if !brackets[i+1].From.Equal(*b.To) {
			return fmt.Errorf("gap between bracket %d ending %s and bracket %d starting %s",
				i, b.To, i+1, brackets[i+1].From)
		}
	}

	return nil
}

// evaluateSalaryTiers is non-cumulative: the single tier whose closed window
// contains the gross pay applies, either as a rate on the portion above the
// tier floor or as a flat amount.
func evaluateSalaryTiers(grossPay decimal.Decimal, p SalaryTierParams) (decimal.Decimal, error) {
	var matched *SalaryTier
	for i := range p.Tiers {
		t := &p.Tiers[i]
		if grossPay.LessThan(t.SalaryFrom) {
			continue
		}
		if t.SalaryTo != nil && grossPay.GreaterThan(*t.SalaryTo) {
			continue
		}
		if matched != nil {
			return decimal.Zero, &UnconfiguredRangeError{
				Shape:    ShapeSalaryTiers,
				GrossPay: grossPay,
				Detail:   fmt.Sprintf("tiers %q and %q both match", matched.Name, t.Name),
			}
		}
		matched = t
	}

	if matched == nil {
		return decimal.Zero, &UnconfiguredRangeError{
			Shape:    ShapeSalaryTiers,
			GrossPay: grossPay,
			Detail:   "no tier window contains this salary",
		}
	}

	if matched.Amount != nil {
		return matched.Amount.Round(amountPlaces), nil
	}
	if matched.Rate != nil {
		return grossPay.Sub(matched.SalaryFrom).Mul(*matched.Rate).Round(amountPlaces), nil
	}

	return decimal.Zero, &UnconfiguredRangeError{
		Shape:    ShapeSalaryTiers,
		GrossPay: grossPay,
		Detail:   fmt.Sprintf("tier %q has neither rate nor amount", matched.Name),
	}
}

// evaluateAmountBands picks the single half-open band [from, to) containing
// the gross pay and returns its flat amount.
func evaluateAmountBands(grossPay decimal.Decimal, p AmountBandParams) (decimal.Decimal, error) {
	for _, b := range p.Bands {
		if grossPay.LessThan(b.From) {
			continue
		}
		if b.To != nil && grossPay.GreaterThanOrEqual(*b.To) {
			continue
		}
		return b.Amount.Round(amountPlaces), nil
	}

	return decimal.Zero, &UnconfiguredRangeError{
		Shape:    ShapeAmountBands,
		GrossPay: grossPay,
		Detail:   "no band contains this gross pay",
	}
}

// ValidateParams rejects parameter sets that could only fail at evaluation
// time. Called on the write path so bad configuration never reaches a
// payroll run.
func ValidateParams(params RateParams) error {
	switch p := params.(type) {
	case FlatPercentageParams:
		if p.Percentage.IsNegative() {
			return fmt.Errorf("percentage must not be negative")
		}
		if p.MinAmount != nil && p.MaxAmount != nil && p.MinAmount.GreaterThan(*p.MaxAmount) {
			return fmt.Errorf("min_amount exceeds max_amount")
		}
		return nil
	case ProgressiveBracketParams:
		return checkBracketCoverage(p.Brackets)
	case SalaryTierParams:
		if len(p.Tiers) == 0 {
			return fmt.Errorf("no tiers configured")
		}
		for _, t := range p.Tiers {
			if t.Rate == nil && t.Amount == nil {
				return fmt.Errorf("tier %q has neither rate nor amount", t.Name)
			}
			if t.Rate != nil && t.Amount != nil {
				return fmt.Errorf("tier %q has both rate and amount", t.Name)
			}
		}
		return nil
	case AmountBandParams:
		if len(p.Bands) == 0 {
			return fmt.Errorf("no bands configured")
		}
		if p.Bands[len(p.Bands)-1].To != nil {
			return fmt.Errorf("final band must be open-ended")
		}
		return nil
	default:
		return fmt.Errorf("unsupported rate parameters %T", params)
	}
}
