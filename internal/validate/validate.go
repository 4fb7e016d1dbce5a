// Package validate provides the answer validators for the dialogue engine.
//
// All functions are pure and side-effect-free: they check a raw spoken answer
// against the grammar a question expects and report pass/fail. An empty or
// whitespace-only answer fails every kind; callers treat that as "no response"
// (repeat-prompt path), not as a validation failure.
package validate

import (
	"regexp"
	"strings"
)

// Kind selects which grammar an answer is checked against.
type Kind string

const (
	// KindEventType passes when the answer contains one of the fixed event
	// category tokens.
	KindEventType Kind = "event_type"
	// KindInjurySize passes when the answer contains small, medium or large.
	KindInjurySize Kind = "injury_size"
	// KindTemporal passes when the answer contains a clock time, a
	// relative-time keyword, or an ordinal day token.
	KindTemporal Kind = "temporal"
	// KindInformedParty passes when the answer contains a proper-noun run, a
	// date expression, or a time expression. Any one of the three suffices.
	KindInformedParty Kind = "informed_party"
	// KindFreeForm always passes; used for narrative and location questions.
	KindFreeForm Kind = "free_form"
)

// EventTypeOptions are the recognized event category tokens, including both
// spellings of behaviour and the "others" variant heard in practice.
var EventTypeOptions = []string{
	"fall", "behaviour", "behavior", "medication", "skin integrity",
	"environmental", "absconding", "physical assault", "self harm",
	"ipc related", "near miss", "missing person", "others", "other",
}

// InjurySizeOptions are the closed injury size choices.
var InjurySizeOptions = []string{"small", "medium", "large"}

var relativeTimeKeywords = []string{
	"yesterday", "today", "tonight", "last night",
	"morning", "afternoon", "evening",
}

var (
	clockTimeRe  = regexp.MustCompile(`(?i)\b\d{1,2}(:[0-5]\d)?\s*(a\.?m\.?|p\.?m\.?)\b`)
	time24hRe    = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\b`)
	ordinalDayRe = regexp.MustCompile(`(?i)\b([1-9]|[12]\d|3[01])(st|nd|rd|th)\b`)
	numericDate  = regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`)
	monthNameRe  = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
)

// Validate checks a raw answer against the grammar for the given kind.
func Validate(kind Kind, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	switch kind {
	case KindEventType:
		return ContainsOption(answer, EventTypeOptions)
	case KindInjurySize:
		return ContainsOption(answer, InjurySizeOptions)
	case KindTemporal:
		return hasTimeExpression(answer) || hasRelativeTime(answer) || ordinalDayRe.MatchString(answer)
	case KindInformedParty:
		// Loose on purpose: name OR date OR time. Downstream grammar
		// correction tightens the captured text.
		return hasProperNoun(answer) || hasDateExpression(answer) || hasTimeExpression(answer)
	case KindFreeForm:
		return true
	default:
		return false
	}
}

// ContainsOption reports whether the lowercase answer contains at least one of
// the given option tokens.
func ContainsOption(answer string, options []string) bool {
	lowered := strings.ToLower(answer)
	for _, opt := range options {
		if strings.Contains(lowered, opt) {
			return true
		}
	}
	return false
}

func hasTimeExpression(answer string) bool {
	return clockTimeRe.MatchString(answer) || time24hRe.MatchString(answer)
}

func hasRelativeTime(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, kw := range relativeTimeKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func hasDateExpression(answer string) bool {
	return numericDate.MatchString(answer) || monthNameRe.MatchString(answer) ||
		(ordinalDayRe.MatchString(answer) && monthNameRe.MatchString(answer))
}

func hasProperNoun(answer string) bool {
	return properNounRe.MatchString(answer)
}
