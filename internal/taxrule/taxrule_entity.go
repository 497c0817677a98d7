package taxrule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RuleType is an open tag; the constants below are the statutory deductions
// shipped by default, but stores may carry others.
type RuleType string

const (
	RuleIncomeTax    RuleType = "INCOME_TAX"
	RuleHealthLevy   RuleType = "HEALTH_LEVY"
	RulePensionTier1 RuleType = "PENSION_TIER_1"
	RulePensionTier2 RuleType = "PENSION_TIER_2"
	RuleHousingLevy  RuleType = "HOUSING_LEVY"
)

type RateShape string

const (
	ShapeFlatPercentage      RateShape = "FLAT_PERCENTAGE"
	ShapeProgressiveBrackets RateShape = "PROGRESSIVE_BRACKETS"
	ShapeSalaryTiers         RateShape = "SALARY_TIERS"
	ShapeAmountBands         RateShape = "AMOUNT_BANDS"
)

func (s RateShape) IsValid() bool {
	switch s {
	case ShapeFlatPercentage, ShapeProgressiveBrackets, ShapeSalaryTiers, ShapeAmountBands:
		return true
	}
	return false
}

// TaxRule is one version of a statutory deduction rule. The effective window
// is half-open [EffectiveFrom, EffectiveTo); a nil EffectiveTo means the rule
// is still current. Rules referenced by a finalized payroll record are never
// mutated; supersede them by inserting a new window.
type TaxRule struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RuleType      RuleType        `gorm:"type:varchar(40);not null;index:idx_rule_type_window"`
	RateShape     RateShape       `gorm:"type:varchar(30);not null"`
	Parameters    json.RawMessage `gorm:"type:jsonb;not null"`
	EffectiveFrom time.Time       `gorm:"type:date;not null;index:idx_rule_type_window"`
	EffectiveTo   *time.Time      `gorm:"type:date;index"`
	IsActive      bool            `gorm:"not null;default:true;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// ContainsDate reports whether onDate falls inside the rule's effective window.
func (r *TaxRule) ContainsDate(onDate time.Time) bool {
	if onDate.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || onDate.Before(*r.EffectiveTo)
}

// RateParams is the sealed union of shape-specific parameter structs. The
// evaluator switches exhaustively over the concrete types, so an unknown
// shape can only surface as a decode error, never as a silent zero.
type RateParams interface {
	Shape() RateShape
}

// FlatPercentageParams: amount = gross * Percentage, optionally clamped.
type FlatPercentageParams struct {
	Percentage decimal.Decimal  `json:"percentage"`
	MinAmount  *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount  *decimal.Decimal `json:"max_amount,omitempty"`
}

func (FlatPercentageParams) Shape() RateShape { return ShapeFlatPercentage }

// Bracket is one progressive band; only the slice of income inside the band
// is taxed at Rate. A nil To marks the final open-ended band.
type Bracket struct {
	From decimal.Decimal  `json:"from"`
	To   *decimal.Decimal `json:"to,omitempty"`
	Rate decimal.Decimal  `json:"rate"`
}

type ProgressiveBracketParams struct {
	Brackets       []Bracket        `json:"brackets"`
	PersonalRelief *decimal.Decimal `json:"personal_relief,omitempty"`
}

func (ProgressiveBracketParams) Shape() RateShape { return ShapeProgressiveBrackets }

// SalaryTier is a mutually exclusive salary window, closed on both ends
// ([SalaryFrom, SalaryTo]; nil SalaryTo = open-ended). Exactly one of Rate
// or Amount is set: Rate applies to the portion of gross above SalaryFrom,
// Amount is a flat deduction.
type SalaryTier struct {
	Name       string           `json:"name"`
	SalaryFrom decimal.Decimal  `json:"salary_from"`
	SalaryTo   *decimal.Decimal `json:"salary_to,omitempty"`
	Rate       *decimal.Decimal `json:"rate,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
}

type SalaryTierParams struct {
	Tiers []SalaryTier `json:"tiers"`
}

func (SalaryTierParams) Shape() RateShape { return ShapeSalaryTiers }

// AmountBand maps a half-open gross-pay window [From, To) to a flat fee.
// The final band's To is nil and covers everything above the last threshold.
type AmountBand struct {
	From   decimal.Decimal  `json:"from"`
	To     *decimal.Decimal `json:"to,omitempty"`
	Amount decimal.Decimal  `json:"amount"`
}

type AmountBandParams struct {
	Bands []AmountBand `json:"bands"`
}

func (AmountBandParams) Shape() RateShape { return ShapeAmountBands }

// Params decodes the jsonb column into the parameter struct matching the
// rule's declared shape.
func (r *TaxRule) Params() (RateParams, error) {
	switch r.RateShape {
	case ShapeFlatPercentage:
		var p FlatPercentageParams
		if err := json.Unmarshal(r.Parameters, &p); err != nil {
			return nil, fmt.Errorf("decode %s parameters for rule %s: %w", r.RateShape, r.ID, err)
		}
		return p, nil
	case ShapeProgressiveBrackets:
		var p ProgressiveBracketParams
		if err := json.Unmarshal(r.Parameters, &p); err != nil {
			return nil, fmt.Errorf("decode %s parameters for rule %s: %w", r.RateShape, r.ID, err)
		}
		return p, nil
	case ShapeSalaryTiers:
		var p SalaryTierParams
		if err := json.Unmarshal(r.Parameters, &p); err != nil {
			return nil, fmt.Errorf("decode %s parameters for rule %s: %w", r.RateShape, r.ID, err)
		}
		return p, nil
	case ShapeAmountBands:
		var p AmountBandParams
		if err := json.Unmarshal(r.Parameters, &p); err != nil {
			return nil, fmt.Errorf("decode %s parameters for rule %s: %w", r.RateShape, r.ID, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown rate shape %q on rule %s", r.RateShape, r.ID)
	}
}

// EncodeParams serializes a parameter struct for the jsonb column.
func EncodeParams(p RateParams) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s parameters: %w", p.Shape(), err)
	}
	return raw, nil
}
