package domain

import (
	"fmt"
	"strings"
)

// SensitiveCategory is the closed taxonomy of topics that require a disclaimer.
type SensitiveCategory uint8

const (
	CategoryEstatePlanning SensitiveCategory = iota + 1
	CategoryAssetTransfer
	CategorySpendDown
	CategorySpousalComplexity
	CategoryAppeals
	CategoryLookBackPeriod
)

// SensitiveCategories lists every category in tie-break order.
var SensitiveCategories = []SensitiveCategory{
	CategoryEstatePlanning,
	CategoryAssetTransfer,
	CategorySpendDown,
	CategorySpousalComplexity,
	CategoryAppeals,
	CategoryLookBackPeriod,
}

func (c SensitiveCategory) String() string {
	switch c {
	case CategoryEstatePlanning:
		return "estate_planning"
	case CategoryAssetTransfer:
		return "asset_transfer"
	case CategorySpendDown:
		return "spend_down"
	case CategorySpousalComplexity:
		return "spousal_complexity"
	case CategoryAppeals:
		return "appeals"
	case CategoryLookBackPeriod:
		return "look_back_period"
	default:
		return "unknown"
	}
}

func (c SensitiveCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *SensitiveCategory) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	for _, candidate := range SensitiveCategories {
		if candidate.String() == value {
			*c = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown sensitive category %q", value)
}

// GuardrailResult is a pure function of the raw query text.
type GuardrailResult struct {
	IsSensitive        bool               `json:"is_sensitive"`
	Category           *SensitiveCategory `json:"category,omitempty"`
	MatchedKeywords    []string           `json:"matched_keywords"`
	Confidence         float64            `json:"confidence"`
	DisclaimerRequired bool               `json:"disclaimer_required"`
	Disclaimer         string             `json:"disclaimer,omitempty"`
	Referral           string             `json:"referral,omitempty"`
	ShouldProceed      bool               `json:"should_proceed"`
}
