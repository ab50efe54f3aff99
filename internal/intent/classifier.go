package intent

import "strings"

// Info is the closed set of informational sub-intents that must be served
// without disturbing an active operation context.
type Info int

// Informational intents.
const (
	InfoNone Info = iota
	InfoRate
	InfoHelp
	InfoContinue
)

var (
	rateWords     = []string{"exchange", "rate", "how much", "price", "cost", "fees"}
	continueWords = []string{"continue", "resume", "proceed", "carry on"}
)

// ClassifyInfo maps free text onto an informational intent. It deliberately
// stays a small keyword classifier: the full parser is not consulted for
// these, so mid-flow questions cannot clear session context.
func ClassifyInfo(text string) Info {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return InfoNone
	}
	for _, w := range continueWords {
		if strings.Contains(t, w) {
			return InfoContinue
		}
	}
	for _, w := range rateWords {
		if strings.Contains(t, w) {
			return InfoRate
		}
	}
	if strings.Contains(t, "help") || strings.Contains(t, "what is") || strings.Contains(t, "tell me") || strings.Contains(t, "explain") || strings.Contains(t, "about") || strings.Contains(t, "info") {
		return InfoHelp
	}
	return InfoNone
}
