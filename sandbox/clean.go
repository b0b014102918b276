package sandbox

import "strings"

// CleanCode normalizes a code string received from the model. It trims
// whitespace and strips a single leading/trailing markdown fence. Escape
// sequences introduced by transport are reversed only when a fence was
// stripped; plain code is used as received so it is never unescaped twice.
func CleanCode(code string) string {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		return code
	}

	// Fenced code that survived JSON transport in one piece carries literal
	// \n sequences instead of newlines.
	sep := "\n"
	if !strings.Contains(code, "\n") && strings.Contains(code, `\n`) {
		sep = `\n`
	}

	lines := strings.Split(code, sep)
	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}

	return unescape(strings.TrimSpace(strings.Join(lines, sep)))
}

// unescape reverses the fixed transport encodings. The entries and their
// order are a pinned contract: the literal backslash comes last so it cannot
// re-introduce sequences the earlier replacements would pick up.
func unescape(code string) string {
	code = strings.ReplaceAll(code, `\n`, "\n")
	code = strings.ReplaceAll(code, `\t`, "\t")
	code = strings.ReplaceAll(code, `\'`, "'")
	code = strings.ReplaceAll(code, `\"`, `"`)
	code = strings.ReplaceAll(code, `\\`, `\`)
	return code
}
