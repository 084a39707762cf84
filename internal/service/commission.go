package service

import (
	"fmt"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/shopspring/decimal"
)

// moneyScale is the minor-unit precision every computed amount is rounded to.
const moneyScale = 2

var maxRate = decimal.NewFromInt(1)

// DefaultCommissionConfig is the platform tier schedule used when no other
// schedule is configured: 10% below 1000, 15% from 1000 upwards.
func DefaultCommissionConfig() models.CommissionConfig {
	tierBoundary := decimal.NewFromInt(1000)
	return models.CommissionConfig{
		Tiers: []models.CommissionTier{
			{MinAmount: decimal.Zero, MaxAmount: &tierBoundary, Rate: decimal.RequireFromString("0.10")},
			{MinAmount: tierBoundary, Rate: decimal.RequireFromString("0.15")},
		},
	}
}

// ValidateCommissionConfig checks that the config is either a flat rate in
// [0, 1] or a tier list that partitions [0, inf): first tier starts at 0,
// tiers are ascending, contiguous and non-overlapping, only the last tier is
// unbounded.
func ValidateCommissionConfig(cfg models.CommissionConfig) error {
	if cfg.Rate != nil {
		if len(cfg.Tiers) > 0 {
			return fmt.Errorf("config has both flat rate and tiers: %w", apperrors.ErrCommissionConfig)
		}
		return validateRate(*cfg.Rate)
	}

	if len(cfg.Tiers) == 0 {
		return fmt.Errorf("config has neither flat rate nor tiers: %w", apperrors.ErrCommissionConfig)
	}

	if !cfg.Tiers[0].MinAmount.IsZero() {
		return fmt.Errorf("first tier must start at 0: %w", apperrors.ErrCommissionConfig)
	}

	for i, tier := range cfg.Tiers {
		if err := validateRate(tier.Rate); err != nil {
			return err
		}

		last := i == len(cfg.Tiers)-1
		if last {
			if tier.MaxAmount != nil {
				return fmt.Errorf("last tier must be unbounded: %w", apperrors.ErrCommissionConfig)
			}
			continue
		}

		if tier.MaxAmount == nil {
			return fmt.Errorf("tier %d: only the last tier may be unbounded: %w", i, apperrors.ErrCommissionConfig)
		}
		if !tier.MaxAmount.GreaterThan(tier.MinAmount) {
			return fmt.Errorf("tier %d: max must exceed min: %w", i, apperrors.ErrCommissionConfig)
		}
		if !cfg.Tiers[i+1].MinAmount.Equal(*tier.MaxAmount) {
			return fmt.Errorf("tier %d: tiers must be contiguous: %w", i, apperrors.ErrCommissionConfig)
		}
	}

	return nil
}

// ComputeCommission splits a gross amount into commission and provider net.
// In tiered mode the whole amount is charged at the single tier whose
// [min, max) range contains it; rates never blend across tiers.
func ComputeCommission(gross decimal.Decimal, cfg models.CommissionConfig) (models.CommissionResult, error) {
	if gross.IsNegative() {
		return models.CommissionResult{}, fmt.Errorf("gross amount %s: %w", gross, apperrors.ErrInvalidAmount)
	}

	rate, err := lookupRate(gross, cfg)
	if err != nil {
		return models.CommissionResult{}, err
	}

	commission := gross.Mul(rate).Round(moneyScale)
	return models.CommissionResult{
		Commission:  commission,
		NetAmount:   gross.Sub(commission),
		AppliedRate: rate,
	}, nil
}

func lookupRate(gross decimal.Decimal, cfg models.CommissionConfig) (decimal.Decimal, error) {
	if cfg.Rate != nil {
		if err := validateRate(*cfg.Rate); err != nil {
			return decimal.Zero, err
		}
		return *cfg.Rate, nil
	}

	for _, tier := range cfg.Tiers {
		if gross.LessThan(tier.MinAmount) {
			continue
		}
		if tier.MaxAmount != nil && !gross.LessThan(*tier.MaxAmount) {
			continue
		}
		if err := validateRate(tier.Rate); err != nil {
			return decimal.Zero, err
		}
		return tier.Rate, nil
	}

	return decimal.Zero, fmt.Errorf("no tier covers amount %s: %w", gross, apperrors.ErrCommissionConfig)
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxRate) {
		return fmt.Errorf("rate %s: %w", rate, apperrors.ErrInvalidRate)
	}
	return nil
}
