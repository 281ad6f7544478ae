package autofix

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var frameFileRegex = regexp.MustCompile(`\(?([^\s()]+?\.(?:js|mjs|cjs|ts|go)):\d+`)

// dependencyPathMarkers identify stack frames that live outside the
// skill's own source (vendored/third-party/logger-internal).
var dependencyPathMarkers = []string{
	"node_modules", "/internal/errorlog/", "/internal/router/", "/internal/gates/",
}

// LocateFromStack extracts the first stack frame whose file lies
// outside dependency and logger paths.
func LocateFromStack(stack string) (string, error) {
	for _, line := range strings.Split(stack, "\n") {
		m := frameFileRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file := m[1]
		if isDependencyPath(file) {
			continue
		}
		return file, nil
	}
	return "", fmt.Errorf("autofix: no non-dependency frame found in stack")
}

func isDependencyPath(file string) bool {
	for _, marker := range dependencyPathMarkers {
		if strings.Contains(file, marker) {
			return true
		}
	}
	return false
}

// LocateInSkillsDir searches skillsDir for a subdirectory matching
// skill or "x1-{skill}" and returns its index.js/main.js, or else the
// first source file found.
func LocateInSkillsDir(skillsDir, skill string) (string, error) {
	candidates := []string{skill, "x1-" + skill}
	for _, name := range candidates {
		dir := filepath.Join(skillsDir, name)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		for _, entry := range []string{"index.js", "main.js"} {
			p := filepath.Join(dir, entry)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		found, err := firstSourceFile(dir)
		if err == nil {
			return found, nil
		}
	}
	return "", fmt.Errorf("autofix: no skill directory found for %q under %q", skill, skillsDir)
}

func firstSourceFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".js" || ext == ".ts" || ext == ".mjs" || ext == ".go" {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("autofix: no source file found in %q", dir)
}

// Localize tries stack-based localization first, then falls back to a
// skills-directory search. Failure to locate raises.
func Localize(stack, skillsDir, skill string) (string, error) {
	if stack != "" {
		if file, err := LocateFromStack(stack); err == nil {
			return file, nil
		}
	}
	return LocateInSkillsDir(skillsDir, skill)
}
