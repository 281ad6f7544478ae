package autofix

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lokoweb3/skillbot/internal/types"
)

const autoFixMarker = "[AUTO-FIX]"

// mainEntryRegex locates the first top-level function declaration, the
// deterministic templates' injection anchor.
var mainEntryRegex = regexp.MustCompile(`(?m)^((?:async\s+)?function\s+\w+\s*\([^)]*\)\s*\{)`)

var lastRequireRegex = regexp.MustCompile(`(?m)^(const .+= require\(.+\);?)$`)

// ApplyTemplate applies the deterministic template fix keyed by
// classification, per the spec's fallback table. Every injected block
// is marked with autoFixMarker so the diff is unambiguous.
func ApplyTemplate(source string, classification types.Classification, message string, stackLine int) (string, string, error) {
	switch classification {
	case types.ClassValidation:
		return injectAtMainEntry(source, validationPreamble), "Injected an input-validation preamble.", nil
	case types.ClassAPI, types.ClassNetwork:
		return injectAfterLastRequire(source, retryHelper), "Inserted a retry helper with exponential backoff.", nil
	case types.ClassLogic:
		if strings.Contains(message, "Cannot read properties of undefined") {
			fixed, err := injectAtLine(source, stackLine, nullCheckGuard)
			if err != nil {
				return "", "", err
			}
			return fixed, "Inserted a null-check guard before the offending line.", nil
		}
		return wrapMainEntryTryCatch(source), "Wrapped the main entry body in try/catch.", nil
	case types.ClassTimeout:
		return injectAfterLastRequire(source, timeoutHelper), "Inserted a race-against-timer helper.", nil
	default:
		return wrapMainEntryTryCatch(source), "Wrapped the main entry body in try/catch.", nil
	}
}

const validationPreamble = `  // ` + autoFixMarker + ` input validation
  if (!input || typeof input !== 'object') {
    throw new Error('Invalid input: expected an object');
  }
`

const retryHelper = `
// ` + autoFixMarker + ` retry helper with exponential backoff
async function withRetry(fn, maxRetries = 3, initialDelayMs = 500) {
  let delay = initialDelayMs;
  for (let attempt = 0; attempt <= maxRetries; attempt++) {
    try {
      return await fn();
    } catch (err) {
      if (attempt === maxRetries) throw err;
      await new Promise((resolve) => setTimeout(resolve, delay));
      delay *= 2;
    }
  }
}
`

const timeoutHelper = `
// ` + autoFixMarker + ` race-against-timer helper
async function withTimeout(promise, ms) {
  let timer;
  const timeout = new Promise((_, reject) => {
    timer = setTimeout(() => reject(new Error('Operation timed out')), ms);
  });
  try {
    return await Promise.race([promise, timeout]);
  } finally {
    clearTimeout(timer);
  }
}
`

const nullCheckGuard = `  // ` + autoFixMarker + ` null-check guard
  if (typeof target === 'undefined' || target === null) {
    throw new Error('Expected value was undefined or null');
  }
`

func injectAtMainEntry(source, block string) string {
	loc := mainEntryRegex.FindStringIndex(source)
	if loc == nil {
		return block + "\n" + source
	}
	insertAt := loc[1]
	return source[:insertAt] + "\n" + block + source[insertAt:]
}

func injectAfterLastRequire(source, block string) string {
	matches := lastRequireRegex.FindAllStringIndex(source, -1)
	if len(matches) == 0 {
		return block + "\n" + source
	}
	insertAt := matches[len(matches)-1][1]
	return source[:insertAt] + "\n" + block + source[insertAt:]
}

func injectAtLine(source string, line int, block string) (string, error) {
	lines := strings.Split(source, "\n")
	if line <= 0 || line > len(lines)+1 {
		return "", fmt.Errorf("autofix: stack line %d out of range for source with %d lines", line, len(lines))
	}
	idx := line - 1
	if idx > len(lines) {
		idx = len(lines)
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx]...)
	out = append(out, strings.TrimRight(block, "\n"))
	out = append(out, lines[idx:]...)
	return strings.Join(out, "\n"), nil
}

func wrapMainEntryTryCatch(source string) string {
	loc := mainEntryRegex.FindStringIndex(source)
	if loc == nil {
		return "// " + autoFixMarker + " unable to locate main entry to wrap\n" + source
	}
	openBrace := loc[1]
	closeBrace := matchingBrace(source, openBrace-1)
	if closeBrace < 0 {
		return "// " + autoFixMarker + " unable to locate function body end\n" + source
	}

	body := source[openBrace:closeBrace]
	wrapped := fmt.Sprintf("\n  // %s wrapped in try/catch\n  try {%s\n  } catch (err) {\n    throw err;\n  }\n", autoFixMarker, body)
	return source[:openBrace] + wrapped + source[closeBrace+1:]
}

func matchingBrace(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseStackLine extracts the line number attached to the first
// call-site frame in a stack, for the null-check template's anchor.
func parseStackLine(stack string) int {
	re := regexp.MustCompile(`:(\d+):\d+`)
	m := re.FindStringSubmatch(stack)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
