package errorlog

import (
	"strings"

	"github.com/lokoweb3/skillbot/internal/types"
)

// Classify implements the deterministic cascade from the spec: syntax,
// network, timeout, permission, api, logic, dependency, validation,
// unknown, matched in that order against the error name and the
// lowercased message. Logic is checked before dependency so that
// TypeError("x is not a function") resolves to logic.
func Classify(name, message string) types.Classification {
	lowerMsg := strings.ToLower(message)

	switch {
	case name == "SyntaxError" || strings.Contains(lowerMsg, "unexpected token"):
		return types.ClassSyntax
	case containsAny(lowerMsg, "econnrefused", "enotfound", "fetch failed", "network"):
		return types.ClassNetwork
	case containsAny(lowerMsg, "timeout", "etimedout", "deadline"):
		return types.ClassTimeout
	case containsAny(lowerMsg, "401", "403", "unauthorized", "permission"):
		return types.ClassPermission
	case containsAny(lowerMsg, "404", "429", "500", "api", "rate limit"):
		return types.ClassAPI
	case name == "TypeError" || name == "ReferenceError" || name == "RangeError":
		return types.ClassLogic
	case containsAny(lowerMsg, "cannot find module", "module not found", "is not a function"):
		return types.ClassDependency
	case containsAny(lowerMsg, "invalid", "required", "expected", "must be"):
		return types.ClassValidation
	default:
		return types.ClassUnknown
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// criticalSkillMarkers are substrings that make any error on a matching
// skill name critical, regardless of classification.
var criticalSkillMarkers = []string{"deploy", "delete", "transfer", "swap", "send"}

// InferSeverity implements the spec's severity cascade. An explicit
// caller-supplied severity (non-empty) always wins.
func InferSeverity(skill string, classification types.Classification, explicit types.Severity) types.Severity {
	if explicit != "" {
		return explicit
	}
	lowerSkill := strings.ToLower(skill)
	if containsAny(lowerSkill, criticalSkillMarkers...) {
		return types.SeverityCritical
	}
	switch classification {
	case types.ClassAPI, types.ClassNetwork, types.ClassPermission:
		return types.SeverityHigh
	case types.ClassLogic, types.ClassValidation:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}
