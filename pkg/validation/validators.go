// Package validation checks inbound scoring and arbitrage requests before
// they reach the engine.
package validation

import (
	"fmt"
	"strings"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// Validator validates API requests against the configured token and chain
// universe. Prediction requests tolerate unknown tokens and chains (the
// engine degrades to all-zero indicators); arbitrage requests require
// supported chains because gas conversion needs a native token price.
type Validator struct {
	chains map[string]bool
}

// NewValidator creates a validator for the given supported chains.
func NewValidator(supportedChains []string) *Validator {
	chains := make(map[string]bool, len(supportedChains))
	for _, c := range supportedChains {
		chains[strings.ToLower(c)] = true
	}
	return &Validator{chains: chains}
}

// ValidatePredictRequest checks a single-observation scoring request.
func (v *Validator) ValidatePredictRequest(req *interfaces.PredictRequest) error {
	if req == nil {
		return fmt.Errorf("request body is required")
	}
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("token is required")
	}
	if strings.TrimSpace(req.Chain) == "" {
		return fmt.Errorf("chain is required")
	}
	if req.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if req.Gas < 0 {
		return fmt.Errorf("gas must not be negative")
	}
	if req.TradeVolume != nil && *req.TradeVolume < 0 {
		return fmt.Errorf("tradeVolume must not be negative")
	}
	return nil
}

// ValidateArbitrageRequest checks an explicit two-chain evaluation request.
func (v *Validator) ValidateArbitrageRequest(req *interfaces.ArbitrageRequest) error {
	if req == nil {
		return fmt.Errorf("request body is required")
	}
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("token is required")
	}
	chainFrom := strings.ToLower(strings.TrimSpace(req.ChainFrom))
	chainTo := strings.ToLower(strings.TrimSpace(req.ChainTo))
	if chainFrom == "" || chainTo == "" {
		return fmt.Errorf("chainFrom and chainTo are required")
	}
	if chainFrom == chainTo {
		return fmt.Errorf("chainFrom and chainTo must differ")
	}
	if !v.chains[chainFrom] {
		return &types.UnsupportedChainError{Chain: req.ChainFrom}
	}
	if !v.chains[chainTo] {
		return &types.UnsupportedChainError{Chain: req.ChainTo}
	}
	if req.PriceFrom <= 0 || req.PriceTo <= 0 {
		return fmt.Errorf("priceFrom and priceTo must be positive")
	}
	if req.GasCost < 0 {
		return fmt.Errorf("gasCost must not be negative")
	}
	if req.TradeVolume < 0 {
		return fmt.Errorf("tradeVolume must not be negative")
	}
	return nil
}
