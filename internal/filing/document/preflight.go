package document

import (
	"fmt"
	"strings"
)

// PreflightError blocks transmission entirely. It is always local: the fix is
// correcting source data or configuration and resubmitting.
type PreflightError struct {
	Reasons []string
}

func (e *PreflightError) Error() string {
	return "preflight failed: " + strings.Join(e.Reasons, "; ")
}

// preflightFailure wraps one or more reasons, filtering empties.
func preflightFailure(reasons ...string) *PreflightError {
	var kept []string
	for _, r := range reasons {
		if r != "" {
			kept = append(kept, r)
		}
	}
	return &PreflightError{Reasons: kept}
}

// forbiddenTokens are placeholder values that must never reach the regulator.
// Matching is case-insensitive against whole trimmed field values.
var forbiddenTokens = map[string]bool{
	"UNKNOWN": true,
	"N/A":     true,
	"NA":      true,
	"NONE":    true,
	"TBD":     true,
	"XX":      true,
}

func isForbiddenToken(value string) bool {
	return forbiddenTokens[strings.ToUpper(strings.TrimSpace(value))]
}

// normalizeDigits strips common separators from identification and phone
// numbers and rejects anything that is not digits-only afterwards.
func normalizeDigits(field, value string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '+':
			return -1
		}
		return r
	}, value)
	if cleaned == "" {
		return "", fmt.Errorf("%s is empty after normalization", field)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%s must contain digits only, got %q", field, value)
		}
	}
	return cleaned, nil
}
