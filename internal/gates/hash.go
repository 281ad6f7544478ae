package gates

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lokoweb3/skillbot/internal/types"
)

func md5_10(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}

// canonicalJSON serializes v deterministically: map keys sorted, no
// whitespace. Used wherever the spec calls for "canonical_json".
func canonicalJSON(v interface{}) string {
	data, err := json.Marshal(canonicalize(v))
	if err != nil {
		return ""
	}
	return string(data)
}

func canonicalize(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return v
	}
	return sortKeys(generic)
}

func sortKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(t))
		for _, k := range keys {
			ordered[k] = sortKeys(t[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return t
	}
}

// planPatternHash computes the pattern hash for a plan gate:
// md5_10(skill + canonical_json(plan.steps ?? plan.description)).
func planPatternHash(skill string, plan *types.Plan) string {
	var body string
	if len(plan.Steps) > 0 {
		body = canonicalJSON(plan.Steps)
	} else {
		body = canonicalJSON(plan.Description)
	}
	return md5_10(skill + body)
}

// cooldownKey builds the cooldown lookup key for a skill/user pair.
func cooldownKey(skill, userID string) string {
	return fmt.Sprintf("cooldown:%s:%s", skill, userID)
}

// canonicalCorrectionReason lowercases and trims a correction reason
// for patternHash stability.
func canonicalCorrectionReason(reason string) string {
	return strings.TrimSpace(strings.ToLower(reason))
}
