// Package hydrate renders prompt templates by substituting {{key}} tokens.
package hydrate

import (
	"regexp"
	"strings"
)

// Mode selects how a token without a usable value is rendered.
type Mode int

const (
	// ModeBraces keeps the unfilled token exactly as written, e.g. "{{ name }}".
	ModeBraces Mode = iota
	// ModeBrackets renders an unfilled token as "[name]".
	ModeBrackets
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBrackets:
		return "brackets"
	default:
		return "braces"
	}
}

// ParseMode maps a wire name to a Mode. Anything unrecognised is ModeBraces.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "brackets") {
		return ModeBrackets
	}
	return ModeBraces
}

// tokenPattern matches the shortest {{...}} run on a single line.
var tokenPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Hydrate replaces every {{key}} in template with the trimmed value from
// values. Missing or blank values fall back according to mode. It never
// fails; malformed braces are left as literal text.
func Hydrate(template string, values map[string]string, mode Mode) string {
	if template == "" {
		return ""
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := strings.TrimSpace(token[2 : len(token)-2])
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		if mode == ModeBrackets {
			return "[" + key + "]"
		}
		return token
	})
}

// QuickCopy renders a template with every token shown as [key]. It is the
// text used when a prompt is copied straight from the list.
func QuickCopy(template string) string {
	return Hydrate(template, nil, ModeBrackets)
}

// Tokens returns the distinct trimmed keys referenced by template, in order
// of first appearance.
func Tokens(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.TrimSpace(m[1])
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// Missing returns the keys in template that values leaves unfilled.
func Missing(template string, values map[string]string) []string {
	var missing []string
	for _, key := range Tokens(template) {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
