package models

import (
	"github.com/shopspring/decimal"
)

// CommissionTier charges the whole gross amount at Rate when the amount falls
// in [MinAmount, MaxAmount). A nil MaxAmount means the tier is unbounded.
type CommissionTier struct {
	MinAmount decimal.Decimal  `json:"min_amount"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
	Rate      decimal.Decimal  `json:"rate"`
}

// CommissionConfig is either a single flat rate or an ordered tier list.
// Rates are fractions in [0, 1].
type CommissionConfig struct {
	Rate  *decimal.Decimal `json:"rate,omitempty"`
	Tiers []CommissionTier `json:"tiers,omitempty"`
}

type CommissionResult struct {
	Commission  decimal.Decimal `json:"commission"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	AppliedRate decimal.Decimal `json:"applied_rate"`
}
