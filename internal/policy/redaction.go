package policy

import (
	"regexp"
	"strings"
)

const maxLogRunes = 160

type redactionRule struct {
	marker  string
	pattern *regexp.Regexp
}

// Order matters: card numbers would otherwise match the phone rule.
var redactionRules = []redactionRule{
	{"[email]", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{"[card]", regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)},
	{"[phone]", regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)},
}

// RedactPII masks email addresses, card numbers and phone numbers spoken
// into a turn.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// LogSafe prepares user or model text for a log line: PII is masked, line
// breaks are flattened and long text is cut.
func LogSafe(text string) string {
	out, _ := RedactPII(text)
	out = strings.Join(strings.Fields(out), " ")
	if r := []rune(out); len(r) > maxLogRunes {
		out = string(r[:maxLogRunes]) + "..."
	}
	return out
}
