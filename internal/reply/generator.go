// Package reply implements the deterministic local reply generator.
// It is the fallback substitute for the external language model: same
// profile and input always produce the same output, with no I/O.
package reply

import (
	"fmt"
	"html"
	"strings"

	"github.com/assessli/companion/internal/model"
)

// maxEchoLen caps the echoed portion of the input.
const maxEchoLen = 1000

// fallbackName greets profiles that never provided a name.
const fallbackName = "Friend"

// Generate composes a personalized multi-line reply from the profile
// and the user's input. The echoed input is trimmed, HTML-escaped and
// truncated, so a downstream renderer can print it as-is.
func Generate(p *model.Profile, input string) string {
	name := fallbackName
	if p != nil && p.Name != "" {
		name = p.Name
	}

	lines := []string{fmt.Sprintf("Hi %s, thanks for sharing that.", name)}
	if p != nil && p.Meta.Bio != "" {
		lines = append(lines, fmt.Sprintf("I remember you said: %q — I'll keep that in mind.", p.Meta.Bio))
	}
	lines = append(lines, "Here's a thoughtful reply to your message:")
	lines = append(lines, "> "+Sanitize(input))
	lines = append(lines, "Suggestion: try breaking the task into smaller steps. Which step would you like help with first?")
	lines = append(lines, "(This is a demo response from Assessli's prototype LBM — not medical or legal advice.)")

	return strings.Join(lines, "\n\n")
}

// Sanitize trims, HTML-escapes, and truncates text for safe echoing.
// Escaping happens before truncation.
func Sanitize(s string) string {
	escaped := html.EscapeString(strings.TrimSpace(s))
	runes := []rune(escaped)
	if len(runes) > maxEchoLen {
		return string(runes[:maxEchoLen])
	}
	return escaped
}
