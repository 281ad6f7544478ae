package main

import (
	"context"
	"regexp"

	"github.com/lokoweb3/skillbot/internal/router"
	"github.com/lokoweb3/skillbot/internal/types"
)

// registerBuiltinRoutes wires a handful of illustrative skills so the
// router has something to dispatch to out of the box. Real deployments
// register their own skill handlers; these exist so `botctl route` and
// `botctl shell` are usable standalone.
func registerBuiltinRoutes(rtr *router.Router) {
	rtr.AddRoute(&types.Route{
		Name:        "echo",
		Patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)^echo\s+(.+)$`)},
		Priority:    types.PriorityNormal,
		Risk:        types.RiskNone,
		AutoExecute: types.DefaultAutoExecute(types.RiskNone),
		Enabled:     true,
		Handler: func(ctx context.Context, match *types.MatchResult, input interface{}) (interface{}, error) {
			if len(match.Groups) > 1 {
				return match.Groups[1], nil
			}
			return input, nil
		},
	})

	rtr.AddRoute(&types.Route{
		Name:        "token-audit",
		Patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)^audit\s+tokens?\b`)},
		Priority:    types.PriorityNormal,
		Risk:        types.RiskLow,
		AutoExecute: types.DefaultAutoExecute(types.RiskLow),
		Enabled:     true,
		Handler: func(ctx context.Context, match *types.MatchResult, input interface{}) (interface{}, error) {
			return map[string]interface{}{"status": "ok", "audited": true}, nil
		},
	})

	rtr.AddRoute(&types.Route{
		Name:        "deploy",
		Patterns:    []*regexp.Regexp{regexp.MustCompile(`(?i)^deploy\b`)},
		Priority:    types.PriorityHigh,
		Risk:        types.RiskCritical,
		AutoExecute: types.DefaultAutoExecute(types.RiskCritical),
		Enabled:     true,
		Handler: func(ctx context.Context, match *types.MatchResult, input interface{}) (interface{}, error) {
			return map[string]interface{}{"status": "deployed"}, nil
		},
	})
}
