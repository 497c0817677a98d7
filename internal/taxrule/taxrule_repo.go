package taxrule

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	taxruleerrors "go-payroll/internal/taxrule/errors"
)

//go:generate mockgen -source=taxrule_repo.go -destination=mock/taxrule_repo_mock.go -package=mock
type Repository interface {
	FindActiveRule(ctx context.Context, ruleType RuleType, onDate time.Time) (*TaxRule, error)
	FindAll(ctx context.Context) ([]TaxRule, error)
	FindOverlapping(ctx context.Context, ruleType RuleType, from time.Time, to *time.Time) (int64, error)
	Create(ctx context.Context, rule *TaxRule) error
	Deactivate(ctx context.Context, id string) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRepository(db *gorm.DB, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &repository{db: db, logger: logger.Named("taxrule.repo")}
}

// FindActiveRule selects the active rule of ruleType whose half-open window
// [effective_from, effective_to) contains onDate. The store does not enforce
// non-overlapping windows at write time for pre-existing data, so more than
// one row can match; the newest effective_from wins and the anomaly is
// logged, never swallowed.
func (r *repository) FindActiveRule(ctx context.Context, ruleType RuleType, onDate time.Time) (*TaxRule, error) {
	var rules []TaxRule
	err := r.db.WithContext(ctx).
		Where("rule_type = ? AND is_active = ?", ruleType, true).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", onDate, onDate).
		Order("effective_from DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	if len(rules) == 0 {
		return nil, taxruleerrors.ErrRuleNotFound
	}

	if len(rules) > 1 {
		ids := make([]string, len(rules))
		for i, rule := range rules {
			ids[i] = rule.ID.String()
		}
		r.logger.Warn("overlapping active tax rules, picking latest effective_from",
			zap.String("rule_type", string(ruleType)),
			zap.String("on_date", onDate.Format("2006-01-02")),
			zap.Strings("rule_ids", ids),
		)
	}

	return &rules[0], nil
}

func (r *repository) FindAll(ctx context.Context) ([]TaxRule, error) {
	var rules []TaxRule
	err := r.db.WithContext(ctx).
		Order("rule_type ASC, effective_from DESC").
		Find(&rules).Error
	return rules, err
}

// FindOverlapping counts active rules of ruleType whose window intersects
// [from, to). A nil to means open-ended.
func (r *repository) FindOverlapping(ctx context.Context, ruleType RuleType, from time.Time, to *time.Time) (int64, error) {
	db := r.db.WithContext(ctx).
		Model(&TaxRule{}).
		Where("rule_type = ? AND is_active = ?", ruleType, true).
		Where("effective_to IS NULL OR effective_to > ?", from)

	if to != nil {
		db = db.Where("effective_from < ?", *to)
	}

	var count int64
	err := db.Count(&count).Error
	return count, err
}

func (r *repository) Create(ctx context.Context, rule *TaxRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) Deactivate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&TaxRule{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return taxruleerrors.ErrRuleNotFound
	}
	return nil
}
