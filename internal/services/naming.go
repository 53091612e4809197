package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aito-ai/voice-agent-backend/internal/models"
)

// maxUsernameLength bounds accepted names; a longer current username is
// itself treated as a mis-captured sentence and stays eligible for
// replacement.
const maxUsernameLength = 20

// NameEligible reports whether the current display name may be replaced by
// an inferred one.
func NameEligible(username string) bool {
	return username == models.DefaultUsername || utf8.RuneCountInString(username) > maxUsernameLength
}

// namePatterns are tried in order; the first capture passing validation
// wins. The order is a documented contract: explicit self-introductions
// outrank the looser positional forms.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:my name is|i am|i'm|call me|this is)\s+([A-Za-z]{1,20})(?:\s|$|[.,!?])`),
	regexp.MustCompile(`(?i)^([A-Za-z]{1,20})\s+is\s+(?:here|checking|testing)(?:\s|$|[.,!?])`),
	regexp.MustCompile(`(?i)hi,?\s+([A-Za-z]{1,20})\s+(?:here|is here)(?:\s|$|[.,!?])`),
	regexp.MustCompile(`(?i)([A-Za-z]{1,20})\s+(?:speaking|here)(?:\s|$|[.,!?])`),
}

// nameStoplist rejects common words that the looser patterns capture.
var nameStoplist = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "just": {},
	"only": {}, "hello": {}, "hi": {}, "hey": {}, "yes": {}, "no": {},
	"ok": {}, "okay": {},
}

// NameInference scans transcript text for self-introduction phrasing.
type NameInference struct{}

func NewNameInference() *NameInference {
	return &NameInference{}
}

// Infer returns the first pattern capture that survives validation: a
// single alphabetic word of 1-20 characters that is not a stoplisted common
// word. No scoring beyond the validation predicate.
func (n *NameInference) Infer(text string) (string, bool) {
	for _, pattern := range namePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if name := strings.TrimSpace(match[1]); validName(name) {
			return name, true
		}
	}
	return "", false
}

func validName(name string) bool {
	if len(name) == 0 || len(name) > maxUsernameLength {
		return false
	}
	if _, stopped := nameStoplist[strings.ToLower(name)]; stopped {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
