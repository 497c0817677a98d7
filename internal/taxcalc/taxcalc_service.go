package taxcalc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-payroll/internal/shared/apperror"
	"go-payroll/internal/shared/contextutil"
	"go-payroll/internal/taxrule"
	taxruleerrors "go-payroll/internal/taxrule/errors"
)

// RuleStore is the read-only rule lookup the calculator composes over.
type RuleStore interface {
	FindActiveRule(ctx context.Context, ruleType taxrule.RuleType, onDate time.Time) (*taxrule.TaxRule, error)
}

//go:generate mockgen -source=taxcalc_service.go -destination=mock/taxcalc_service_mock.go -package=mock
type Calculator interface {
	Calculate(ctx context.Context, workerID string, grossPay decimal.Decimal, onDate time.Time, ruleTypes []taxrule.RuleType) (DeductionBreakdown, error)
}

type calculator struct {
	rules  RuleStore
	group  singleflight.Group
	logger *zap.Logger
}

func NewCalculator(rules RuleStore, logger *zap.Logger) Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &calculator{rules: rules, logger: logger.Named("taxcalc")}
}

// Calculate produces one line item per requested rule type, in request
// order. A missing rule is a zero line, not a failure, so a retired levy
// never blocks a payroll run; a configuration defect (unconfigured range,
// undecodable parameters) always surfaces.
func (c *calculator) Calculate(
	ctx context.Context,
	workerID string,
	grossPay decimal.Decimal,
	onDate time.Time,
	ruleTypes []taxrule.RuleType,
) (DeductionBreakdown, error) {
	if len(ruleTypes) == 0 {
		ruleTypes = DefaultRuleTypes
	}

	lineItems := make([]LineItem, 0, len(ruleTypes))
	total := decimal.Zero

	for _, ruleType := range ruleTypes {
		rule, err := c.lookupRule(ctx, ruleType, onDate)
		if err != nil {
			if errors.Is(err, taxruleerrors.ErrRuleNotFound) {
				contextutil.GetLogger(ctx, c.logger).Debug("no active rule, zero deduction",
					zap.String("rule_type", string(ruleType)),
					zap.String("on_date", onDate.Format("2006-01-02")),
				)
				lineItems = append(lineItems, LineItem{Type: ruleType, Amount: decimal.Zero})
				continue
			}
			return DeductionBreakdown{}, err
		}

		amount, err := evaluateRule(rule, grossPay)
		if err != nil {
			var rangeErr *taxrule.UnconfiguredRangeError
			if errors.As(err, &rangeErr) {
				return DeductionBreakdown{}, apperror.Wrap(
					err,
					apperror.CodeConfigurationError,
					fmt.Sprintf("tax rule %s has an unconfigured range", ruleType),
					http.StatusUnprocessableEntity,
				)
			}
			return DeductionBreakdown{}, apperror.Wrap(
				err,
				apperror.CodeConfigurationError,
				fmt.Sprintf("tax rule %s cannot be evaluated", ruleType),
				http.StatusUnprocessableEntity,
			)
		}

		lineItems = append(lineItems, LineItem{Type: ruleType, Amount: amount})
		total = total.Add(amount)
	}

	_ = workerID // breakdown is worker-independent; the id is for caller correlation

	return DeductionBreakdown{
		GrossPay:        grossPay,
		LineItems:       lineItems,
		TotalDeductions: total,
		NetPay:          grossPay.Sub(total),
	}, nil
}

// lookupRule collapses concurrent identical point reads during a batch
// recompute into one store call.
func (c *calculator) lookupRule(ctx context.Context, ruleType taxrule.RuleType, onDate time.Time) (*taxrule.TaxRule, error) {
	key := string(ruleType) + "|" + onDate.Format("2006-01-02")

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.rules.FindActiveRule(ctx, ruleType, onDate)
	})
	if err != nil {
		return nil, err
	}
	return v.(*taxrule.TaxRule), nil
}

func evaluateRule(rule *taxrule.TaxRule, grossPay decimal.Decimal) (decimal.Decimal, error) {
	params, err := rule.Params()
	if err != nil {
		return decimal.Zero, err
	}
	return taxrule.Evaluate(grossPay, params)
}
