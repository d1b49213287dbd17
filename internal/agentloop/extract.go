package agentloop

import "strings"

// extractProgram pulls the candidate program out of a node's LM
// response: the content of the first fenced code block (``` or
// ```python, language tag ignored); if no fenced block exists, the
// entire response is treated as the program.
func extractProgram(response string) string {
	start := strings.Index(response, "```")
	if start == -1 {
		return strings.TrimSpace(response)
	}
	rest := response[start+3:]

	// Skip an optional language tag up to the end of the opening fence's line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := rest[:nl]
		if isLanguageTag(tag) {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// isLanguageTag reports whether the text immediately after ``` on the
// opening line looks like a language tag (e.g. "python") rather than the
// start of code itself (a blank line, or code starting right after the
// fence with no tag).
func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true // bare ``` fence, nothing to skip but the newline already consumed
	}
	if len(s) > 20 {
		return false
	}
	for _, r := range s {
		if !(r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
