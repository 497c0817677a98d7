package taxrule

import (
	"context"
	"time"

	"github.com/google/uuid"

	taxruleerrors "go-payroll/internal/taxrule/errors"
)

//go:generate mockgen -source=taxrule_service.go -destination=mock/taxrule_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, req CreateTaxRuleRequest) (TaxRuleResponse, error)
	GetAll(ctx context.Context) ([]TaxRuleResponse, error)
	Deactivate(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Create inserts a new rule version. Overlapping active windows for the same
// type are rejected outright here; the read path tolerates overlaps already
// present in the store, but the write path must not add more.
func (s *service) Create(ctx context.Context, req CreateTaxRuleRequest) (TaxRuleResponse, error) {
	shape := RateShape(req.RateShape)
	if !shape.IsValid() {
		return TaxRuleResponse{}, taxruleerrors.ErrInvalidRateShape
	}

	effectiveFrom, err := parseDate(req.EffectiveFrom)
	if err != nil {
		return TaxRuleResponse{}, taxruleerrors.ErrInvalidDateFormat
	}

	var effectiveTo *time.Time
	if req.EffectiveTo != "" {
		to, err := parseDate(req.EffectiveTo)
		if err != nil {
			return TaxRuleResponse{}, taxruleerrors.ErrInvalidDateFormat
		}
		if !effectiveFrom.Before(to) {
			return TaxRuleResponse{}, taxruleerrors.ErrInvalidDateRange
		}
		effectiveTo = &to
	}

	rule := &TaxRule{
		ID:            uuid.New(),
		RuleType:      RuleType(req.RuleType),
		RateShape:     shape,
		Parameters:    req.Parameters,
		EffectiveFrom: effectiveFrom,
		EffectiveTo:   effectiveTo,
		IsActive:      true,
	}

	params, err := rule.Params()
	if err != nil {
		return TaxRuleResponse{}, taxruleerrors.ErrInvalidParameters.WithDetails(err.Error())
	}
	if err := ValidateParams(params); err != nil {
		return TaxRuleResponse{}, taxruleerrors.ErrInvalidParameters.WithDetails(err.Error())
	}

	overlapping, err := s.repo.FindOverlapping(ctx, rule.RuleType, effectiveFrom, effectiveTo)
	if err != nil {
		return TaxRuleResponse{}, err
	}
	if overlapping > 0 {
		return TaxRuleResponse{}, taxruleerrors.ErrOverlappingWindow
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return TaxRuleResponse{}, err
	}

	return mapToResponse(*rule), nil
}

func (s *service) GetAll(ctx context.Context) ([]TaxRuleResponse, error) {
	rules, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]TaxRuleResponse, len(rules))
	for i, rule := range rules {
		res[i] = mapToResponse(rule)
	}
	return res, nil
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return taxruleerrors.ErrRuleNotFound
	}
	return s.repo.Deactivate(ctx, id)
}

func parseDate(v string) (time.Time, error) {
	return time.Parse("2006-01-02", v)
}

func mapToResponse(rule TaxRule) TaxRuleResponse {
	resp := TaxRuleResponse{
		ID:            rule.ID.String(),
		RuleType:      string(rule.RuleType),
		RateShape:     string(rule.RateShape),
		Parameters:    rule.Parameters,
		EffectiveFrom: rule.EffectiveFrom.Format("2006-01-02"),
		IsActive:      rule.IsActive,
	}
	if rule.EffectiveTo != nil {
		v := rule.EffectiveTo.Format("2006-01-02")
		resp.EffectiveTo = &v
	}
	return resp
}
