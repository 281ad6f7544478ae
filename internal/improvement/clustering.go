package improvement

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// messageCluster is one greedily-grown group of related unmatched
// messages.
type messageCluster struct {
	Representative string
	Examples       []string
	Tokens         map[string]struct{}
}

func tokenize(message string) []string {
	var tokens []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(message), -1) {
		if len(tok) > 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// clusterMessages implements the spec's single-pass greedy clustering:
// a message joins the first existing cluster sharing >=2 tokens (or
// >=1 when it has <=3 qualifying tokens), else seeds a new cluster.
// Deterministic for a fixed input order.
func clusterMessages(messages []string) []messageCluster {
	var clusters []messageCluster

	for _, msg := range messages {
		tokens := tokenize(msg)
		tokenSet := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			tokenSet[t] = struct{}{}
		}

		requiredOverlap := 2
		if len(tokens) <= 3 {
			requiredOverlap = 1
		}

		joined := false
		for i := range clusters {
			overlap := 0
			for t := range tokenSet {
				if _, ok := clusters[i].Tokens[t]; ok {
					overlap++
				}
			}
			if overlap >= requiredOverlap {
				clusters[i].Examples = append(clusters[i].Examples, msg)
				for t := range tokenSet {
					clusters[i].Tokens[t] = struct{}{}
				}
				joined = true
				break
			}
		}

		if !joined {
			clusters = append(clusters, messageCluster{
				Representative: msg,
				Examples:       []string{msg},
				Tokens:         tokenSet,
			})
		}
	}

	return clusters
}

// suggestedPattern builds the heuristic regex the spec asks for:
// keywords (the cluster's tokens) joined by ".*".
func suggestedPattern(c messageCluster) string {
	keywords := make([]string, 0, len(c.Tokens))
	for t := range c.Tokens {
		keywords = append(keywords, t)
	}
	// Deterministic ordering: tokens from the representative message
	// first, in their original order, then any remaining tokens.
	seen := make(map[string]struct{})
	var ordered []string
	for _, t := range tokenize(c.Representative) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		ordered = append(ordered, t)
	}
	for _, t := range keywords {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		ordered = append(ordered, t)
	}
	return strings.Join(ordered, ".*")
}
