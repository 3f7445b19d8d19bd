package pipeline

import (
	"strings"
)

// hallucinationPhrases are transcripts that cheap ASR models produce for
// near-silent audio. The energy VAD deliberately over-triggers, so these show
// up often; dropping them here is what makes the loose VAD threshold safe.
var hallucinationPhrases = map[string]struct{}{
	"thank you":           {},
	"thanks for watching": {},
	"please subscribe":    {},
	"you":                 {},
	"uh":                  {},
	"um":                  {},
	"ah":                  {},
	"mm":                  {},
	"hmm":                 {},
	"okay":                {},
	"ok":                  {},
}

// normalizeTranscript lowercases and strips surrounding whitespace and
// trailing punctuation for filtering and wake-word matching.
func normalizeTranscript(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(text, ".!?,")
}

// isHallucination reports whether the transcript is a known filler phrase or
// effectively empty after normalization.
func isHallucination(text string) bool {
	normalized := normalizeTranscript(text)
	if normalized == "" {
		return true
	}

	_, ok := hallucinationPhrases[normalized]
	return ok
}

// containsWakeWord reports whether the transcript mentions the wake word.
func containsWakeWord(text, wakeWord string) bool {
	if wakeWord == "" {
		return false
	}
	return strings.Contains(normalizeTranscript(text), strings.ToLower(wakeWord))
}
