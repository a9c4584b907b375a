package funnelpages

import (
	"strings"
)

// WarnUnbalancedDivs is the only non-blocking validation finding: the count
// of opening and closing div tags differ. Rendering proceeds anyway.
const WarnUnbalancedDivs = "unbalanced div tags"

// ValidateDocument checks that html is a complete document before it is
// handed to the sandbox. A NoContent or IncompleteStructure error blocks
// rendering of this input; warnings do not. Empty input is the caller's
// placeholder case and must not reach this function.
func ValidateDocument(html string) (warnings []string, err error) {
	if strings.TrimSpace(html) == "" {
		return nil, pageErr(KindNoContent, "", "", nil)
	}
	lower := strings.ToLower(html)
	if !strings.Contains(lower, "<html") || !strings.Contains(lower, "<body") ||
		!strings.Contains(lower, "</html>") || !strings.Contains(lower, "</body>") {
		return nil, pageErr(KindIncompleteStructure, "", "", nil)
	}
	// Count "<div" without also counting "</div": the closing form never
	// matches the opening prefix, so plain substring counts are enough.
	open := strings.Count(lower, "<div")
	closed := strings.Count(lower, "</div")
	if open != closed {
		warnings = append(warnings, WarnUnbalancedDivs)
	}
	return warnings, nil
}
