package discovery

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultKeywords mark link texts that look like announcements.
var DefaultKeywords = []string{
	"police", "constable", "ssc", "ibps", "railway", "recruitment", "admit card", "result",
	"notification", "vacancy", "bharti", "answer key", "syllabus", "admission", "apply online",
	"download", "cgl", "chsl", "mts", "teacher", "officer",
}

// DefaultGenericTexts are navigation labels that are never announcements on their own.
// A link is dropped only when its whole normalized text equals one of them, so a
// title that merely contains a label, like "SSC CGL Result 2025", still passes.
var DefaultGenericTexts = []string{
	"admit card", "result", "latest jobs", "answer key", "syllabus", "admission",
	"sarkariresult tools", "sarkariresult", "rojgar result", "sarkari result", "privacy policy",
}

// Filter decides which link texts are worth fetching.
type Filter struct {
	Keywords     []string
	GenericTexts []string
	MinWords     int
	// CurrentYear is the reference year for skipping outdated titles.
	CurrentYear int
}

// Reason explains why a link was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonAccepted     Reason = ""
	ReasonTooShort     Reason = "too_short"
	ReasonGeneric      Reason = "generic"
	ReasonIrrelevant   Reason = "irrelevant"
	ReasonOutdatedYear Reason = "outdated_year"
)

// DefaultFilter returns the filter used for announcement listing pages.
func DefaultFilter(currentYear int) Filter {
	return Filter{
		Keywords:     DefaultKeywords,
		GenericTexts: DefaultGenericTexts,
		MinWords:     2,
		CurrentYear:  currentYear,
	}
}

var yearPattern = regexp.MustCompile(`\b(20[2-9]\d)\b`)

// Check returns ReasonAccepted when text names a relevant, current announcement.
func (f Filter) Check(text string) Reason {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if len(strings.Fields(normalized)) < f.MinWords {
		return ReasonTooShort
	}
	for _, generic := range f.GenericTexts {
		if normalized == generic {
			return ReasonGeneric
		}
	}

	relevant := false
	for _, kw := range f.Keywords {
		if strings.Contains(normalized, kw) {
			relevant = true
			break
		}
	}
	if !relevant {
		return ReasonIrrelevant
	}

	if f.CurrentYear > 0 && outdated(text, f.CurrentYear) {
		return ReasonOutdatedYear
	}
	return ReasonAccepted
}

// outdated reports whether text mentions years and all of them are before current.
func outdated(text string, current int) bool {
	years := yearPattern.FindAllString(text, -1)
	if len(years) == 0 {
		return false
	}
	for _, y := range years {
		year, err := strconv.Atoi(y)
		if err == nil && year >= current {
			return false
		}
	}
	return true
}
