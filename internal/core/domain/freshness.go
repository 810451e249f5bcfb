package domain

import (
	"fmt"
	"strings"
	"time"
)

// DataType is a coarse classification that decides the expected update cadence.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeIncomeLimits
	DataTypeSpousalStandards
	DataTypeProgramHandbook
	DataTypePolicyManual
	DataTypeStatute
)

func (t DataType) String() string {
	switch t {
	case DataTypeIncomeLimits:
		return "income_limits"
	case DataTypeSpousalStandards:
		return "spousal_standards"
	case DataTypeProgramHandbook:
		return "program_handbook"
	case DataTypePolicyManual:
		return "policy_manual"
	case DataTypeStatute:
		return "statute"
	default:
		return "unknown"
	}
}

func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DataType) UnmarshalText(text []byte) error {
	*t = ParseDataType(string(text))
	return nil
}

// ParseDataType maps free-form document_type values onto the closed set.
func ParseDataType(raw string) DataType {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "income_limits", "income_limit", "income_table", "fpl_table":
		return DataTypeIncomeLimits
	case "spousal_standards", "spousal_impoverishment", "cspa_standards":
		return DataTypeSpousalStandards
	case "program_handbook", "handbook", "eligibility_handbook":
		return DataTypeProgramHandbook
	case "policy_manual", "manual", "policy":
		return DataTypePolicyManual
	case "statute", "regulation", "law", "cfr":
		return DataTypeStatute
	default:
		return DataTypeUnknown
	}
}

// StalenessLevel is ordered: none < info < warning < critical.
type StalenessLevel uint8

const (
	StalenessNone StalenessLevel = iota
	StalenessInfo
	StalenessWarning
	StalenessCritical
)

func (l StalenessLevel) String() string {
	switch l {
	case StalenessInfo:
		return "info"
	case StalenessWarning:
		return "warning"
	case StalenessCritical:
		return "critical"
	default:
		return "none"
	}
}

func (l StalenessLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *StalenessLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*l = StalenessNone
	case "info":
		*l = StalenessInfo
	case "warning":
		*l = StalenessWarning
	case "critical":
		*l = StalenessCritical
	default:
		return fmt.Errorf("unknown staleness level %q", string(text))
	}
	return nil
}

type FreshnessWarning struct {
	DocumentID     string         `json:"document_id"`
	Filename       string         `json:"filename"`
	DataType       DataType       `json:"data_type"`
	Level          StalenessLevel `json:"level"`
	EffectiveDate  time.Time      `json:"effective_date"`
	ExpectedUpdate time.Time      `json:"expected_update"`
	Message        string         `json:"message"`
}

type FreshnessInfo struct {
	LastRetrieved   time.Time          `json:"last_retrieved"`
	EffectivePeriod string             `json:"effective_period,omitempty"`
	HasStaleData    bool               `json:"has_stale_data"`
	Warnings        []FreshnessWarning `json:"warnings"`
}
