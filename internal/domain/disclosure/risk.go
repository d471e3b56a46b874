package disclosure

import (
	"regexp"
	"strings"
)

// RiskPolicy maps item codes to risk tiers. It is injected into the
// service so the classification policy can be versioned and tested
// independently of the pipeline.
type RiskPolicy struct {
	Red    map[string]bool
	Orange map[string]bool
}

// DefaultRiskPolicy returns the fixed production classification sets.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		Red: map[string]bool{
			"self_harm":         true,
			"suicide_thoughts":  true,
			"suicidal_ideation": true,
		},
		Orange: map[string]bool{
			"dv_ipv":                    true,
			"intimate_partner_violence": true,
			"domestic_violence":         true,
			"sexual_assault":            true,
			"sexual_exploitation":       true,
			"stalking":                  true,
			"harassment":                true,
			"active_substance_misuse":   true,
			"substance_withdrawal":      true,
			"current_abuse":             true,
		},
	}
}

// ComputeRiskLevel classifies an item code. Pure and total: codes outside
// both sets map to RiskNone.
func (p RiskPolicy) ComputeRiskLevel(itemCode string) RiskLevel {
	if p.Red[itemCode] {
		return RiskRed
	}
	if p.Orange[itemCode] {
		return RiskOrange
	}
	return RiskNone
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeItemCode turns free text into a snake_case item code: lowercase,
// non-alphanumeric runs collapsed to a single underscore, edges trimmed.
// Idempotent.
func NormalizeItemCode(itemText string) string {
	code := nonAlnum.ReplaceAllString(strings.ToLower(itemText), "_")
	return strings.Trim(code, "_")
}

// HumanizeItemCode renders an item code for display in generic alert
// messages.
func HumanizeItemCode(itemCode string) string {
	return strings.ReplaceAll(itemCode, "_", " ")
}
