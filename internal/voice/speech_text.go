package voice

import (
	"regexp"
	"strings"
	"unicode"
)

// maxSpeechRunes keeps one reply inside a single synthesis request.
const maxSpeechRunes = 3000

type speechRewrite struct {
	pattern *regexp.Regexp
	repl    string
}

// speechRewrites run in order, before the per-rune filter.
var speechRewrites = []speechRewrite{
	{regexp.MustCompile("(?s)```.*?```"), " "},
	{regexp.MustCompile("`[^`]*`"), " "},
	{regexp.MustCompile(`\[(.*?)\]\((.*?)\)`), "$1"},
	{regexp.MustCompile(`https?://\S+`), " "},
	// "- item" and "1. item" become one sentence each.
	{regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+(.+?)[.!?:;,]?[ \t]*$`), "$1."},
}

var speechSymbols = strings.NewReplacer(
	"*", " ", "_", " ", "\\", " ", "/", " ", "|", " ",
	"#", " ", "~", " ", "<", " ", ">", " ",
)

// SpeechText turns model output into text a synthesizer can read aloud:
// markup, links, code and emoji are dropped and the result is capped.
func SpeechText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, rw := range speechRewrites {
		raw = rw.pattern.ReplaceAllString(raw, rw.repl)
	}
	return clipSpeech(filterSpeechRunes(speechSymbols.Replace(raw)), maxSpeechRunes)
}

func filterSpeechRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	emit := func(r rune) {
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	for _, r := range s {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
		case isSpeechSafePunctuation(r):
			emit(r)
		case unicode.IsPunct(r):
			pendingSpace = true
		default:
			emit(r)
		}
	}
	return b.String()
}

// clipSpeech cuts s to max runes, preferring the last sentence end.
func clipSpeech(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	r = r[:max]
	for i := len(r) - 1; i >= max/2; i-- {
		if r[i] == '.' || r[i] == '!' || r[i] == '?' {
			return string(r[:i+1])
		}
	}
	return strings.TrimSpace(string(r))
}

func isSpeechSafePunctuation(r rune) bool {
	return strings.ContainsRune(`.,!?:;'"-()`, r)
}
