// Package types provides common type definitions for the portfolio risk service.
package types

import "strings"

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainSolana represents the Solana mainnet
	ChainSolana ChainID = "solana"
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = "polygon"
	// ChainBSC represents the BNB Smart Chain
	ChainBSC ChainID = "bsc"
)

// SupportedChains is the closed set of chains portfolios can be computed for.
var SupportedChains = []ChainID{ChainEthereum, ChainSolana, ChainPolygon, ChainBSC}

// ParseChain normalizes a chain identifier. The boolean is false for chains
// outside SupportedChains.
func ParseChain(chain string) (ChainID, bool) {
	normalized := ChainID(strings.ToLower(strings.TrimSpace(chain)))
	for _, supported := range SupportedChains {
		if normalized == supported {
			return normalized, true
		}
	}
	return normalized, false
}

// IsEVM reports whether the chain uses Ethereum-style hex addresses
func (c ChainID) IsEVM() bool {
	return c == ChainEthereum || c == ChainPolygon || c == ChainBSC
}

// NativeSymbol returns the ticker of the chain's gas token
func (c ChainID) NativeSymbol() string {
	switch c {
	case ChainEthereum:
		return "ETH"
	case ChainSolana:
		return "SOL"
	case ChainPolygon:
		return "POL"
	case ChainBSC:
		return "BNB"
	default:
		return ""
	}
}

// RiskLevel is the three-tier scale shared by concentration, allocation and
// recommendation priorities.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RecommendationKind identifies what a risk recommendation asks the user to do
type RecommendationKind string

const (
	RecommendRebalance  RecommendationKind = "rebalance"
	RecommendDiversify  RecommendationKind = "diversify"
	RecommendReduceRisk RecommendationKind = "reduce_risk"
	RecommendHedge      RecommendationKind = "hedge"
)

// Priority ranks recommendations
type Priority = RiskLevel

// ThresholdType identifies which side of a price alert fired
type ThresholdType string

const (
	// ThresholdLow fires when the price falls to or below the low threshold
	ThresholdLow ThresholdType = "low"
	// ThresholdHigh fires when the price rises to or above the high threshold
	ThresholdHigh ThresholdType = "high"
)

// AlertState is the lifecycle state of a price alert
type AlertState string

const (
	// AlertActive alerts are polled on every monitor tick
	AlertActive AlertState = "ACTIVE"
	// AlertTriggered is terminal
	AlertTriggered AlertState = "TRIGGERED"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
