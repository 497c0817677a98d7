package taxcalc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"go-payroll/internal/shared/apperror"
	"go-payroll/internal/taxcalc"
	"go-payroll/internal/taxrule"
	taxruleerrors "go-payroll/internal/taxrule/errors"
)

type fakeRuleStore struct {
	findActiveRuleFn func(ctx context.Context, ruleType taxrule.RuleType, onDate time.Time) (*taxrule.TaxRule, error)
}

func (f *fakeRuleStore) FindActiveRule(ctx context.Context, ruleType taxrule.RuleType, onDate time.Time) (*taxrule.TaxRule, error) {
	if f.findActiveRuleFn != nil {
		return f.findActiveRuleFn(ctx, ruleType, onDate)
	}
	return nil, taxruleerrors.ErrRuleNotFound
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func flatRule(t *testing.T, ruleType taxrule.RuleType, percentage string) *taxrule.TaxRule {
	t.Helper()

	raw, err := taxrule.EncodeParams(taxrule.FlatPercentageParams{Percentage: dec(percentage)})
	assert.NoError(t, err)

	return &taxrule.TaxRule{
		ID:            uuid.New(),
		RuleType:      ruleType,
		RateShape:     taxrule.ShapeFlatPercentage,
		Parameters:    raw,
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
	}
}

func TestCalculator_Calculate(t *testing.T) {
	ctx := context.Background()
	onDate := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	workerID := uuid.NewString()

	t.Run("one line per requested type in request order", func(t *testing.T) {
		store := &fakeRuleStore{}
		store.findActiveRuleFn = func(ctx context.Context, ruleType taxrule.RuleType, d time.Time) (*taxrule.TaxRule, error) {
			switch ruleType {
			case taxrule.RuleHealthLevy:
				return flatRule(t, ruleType, "0.0275"), nil
			case taxrule.RuleHousingLevy:
				return flatRule(t, ruleType, "0.015"), nil
			}
			return nil, taxruleerrors.ErrRuleNotFound
		}

		calc := taxcalc.NewCalculator(store, nil)
		types := []taxrule.RuleType{taxrule.RuleHousingLevy, taxrule.RuleHealthLevy}

		got, err := calc.Calculate(ctx, workerID, dec("50000"), onDate, types)

		assert.NoError(t, err)
		assert.Len(t, got.LineItems, 2)
		assert.Equal(t, taxrule.RuleHousingLevy, got.LineItems[0].Type)
		assert.Equal(t, "750.00", got.LineItems[0].Amount.StringFixed(2))
		assert.Equal(t, taxrule.RuleHealthLevy, got.LineItems[1].Type)
		assert.Equal(t, "1375.00", got.LineItems[1].Amount.StringFixed(2))
		assert.Equal(t, "2125.00", got.TotalDeductions.StringFixed(2))
		assert.Equal(t, "47875.00", got.NetPay.StringFixed(2))
	})

	t.Run("missing rule is a zero line, not a failure", func(t *testing.T) {
		store := &fakeRuleStore{}
		store.findActiveRuleFn = func(ctx context.Context, ruleType taxrule.RuleType, d time.Time) (*taxrule.TaxRule, error) {
			if ruleType == taxrule.RuleHealthLevy {
				return flatRule(t, ruleType, "0.0275"), nil
			}
			return nil, taxruleerrors.ErrRuleNotFound
		}

		calc := taxcalc.NewCalculator(store, nil)
		types := []taxrule.RuleType{taxrule.RuleHealthLevy, taxrule.RuleHousingLevy}

		got, err := calc.Calculate(ctx, workerID, dec("50000"), onDate, types)

		assert.NoError(t, err)
		assert.Len(t, got.LineItems, 2)
		assert.True(t, got.LineItems[1].Amount.IsZero())
		assert.Equal(t, "1375.00", got.TotalDeductions.StringFixed(2))
	})

	t.Run("empty rule types falls back to the statutory set", func(t *testing.T) {
		store := &fakeRuleStore{}
		var seen []taxrule.RuleType
		store.findActiveRuleFn = func(ctx context.Context, ruleType taxrule.RuleType, d time.Time) (*taxrule.TaxRule, error) {
			seen = append(seen, ruleType)
			return nil, taxruleerrors.ErrRuleNotFound
		}

		calc := taxcalc.NewCalculator(store, nil)

		got, err := calc.Calculate(ctx, workerID, dec("50000"), onDate, nil)

		assert.NoError(t, err)
		assert.Equal(t, taxcalc.DefaultRuleTypes, seen)
		assert.Len(t, got.LineItems, len(taxcalc.DefaultRuleTypes))
		assert.True(t, got.NetPay.Equal(dec("50000")))
	})

	t.Run("configuration error surfaces instead of zeroing", func(t *testing.T) {
		raw, err := taxrule.EncodeParams(taxrule.AmountBandParams{
			Bands: []taxrule.AmountBand{
				{From: dec("10000"), Amount: dec("150")},
			},
		})
		assert.NoError(t, err)

		store := &fakeRuleStore{}
		store.findActiveRuleFn = func(ctx context.Context, ruleType taxrule.RuleType, d time.Time) (*taxrule.TaxRule, error) {
			return &taxrule.TaxRule{
				ID:         uuid.New(),
				RuleType:   ruleType,
				RateShape:  taxrule.ShapeAmountBands,
				Parameters: raw,
				IsActive:   true,
			}, nil
		}

		calc := taxcalc.NewCalculator(store, nil)

		_, err = calc.Calculate(ctx, workerID, dec("500"), onDate, []taxrule.RuleType{taxrule.RuleHealthLevy})

		var appErr *apperror.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.CodeConfigurationError, appErr.Code)

		var rangeErr *taxrule.UnconfiguredRangeError
		assert.ErrorAs(t, err, &rangeErr)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		boom := errors.New("store down")
		store := &fakeRuleStore{}
		store.findActiveRuleFn = func(ctx context.Context, ruleType taxrule.RuleType, d time.Time) (*taxrule.TaxRule, error) {
			return nil, boom
		}

		calc := taxcalc.NewCalculator(store, nil)

		_, err := calc.Calculate(ctx, workerID, dec("50000"), onDate, []taxrule.RuleType{taxrule.RuleHealthLevy})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		store := &fakeRuleStore{}
		store.findActiveRuleFn = func(ctx context.Context, ruleType taxrule.RuleType, d time.Time) (*taxrule.TaxRule, error) {
			return flatRule(t, ruleType, "0.0275"), nil
		}

		calc := taxcalc.NewCalculator(store, nil)
		types := []taxrule.RuleType{taxrule.RuleHealthLevy}

		first, err := calc.Calculate(ctx, workerID, dec("33333.33"), onDate, types)
		assert.NoError(t, err)
		second, err := calc.Calculate(ctx, workerID, dec("33333.33"), onDate, types)
		assert.NoError(t, err)

		assert.True(t, first.TotalDeductions.Equal(second.TotalDeductions))
		assert.True(t, first.NetPay.Equal(second.NetPay))
	})
}
