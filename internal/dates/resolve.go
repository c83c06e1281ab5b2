// Package dates extracts calendar dates from the free-form strings found in announcement records.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// datePattern finds date-like tokens embedded in longer text, e.g. the end of a
// range such as "25-28 September 2025", an ISO date inside a sentence or a bare
// "September 2025". Full dates are listed ahead of month-year forms.
var datePattern = regexp.MustCompile(
	`\d{1,2}[-/ ][A-Za-z0-9]+[-/ ]\d{4}` +
		`|\d{4}[-/ ]\d{2}[-/ ]\d{2}` +
		`|[A-Za-z]{3,9} \d{1,2}, \d{4}` +
		`|(?i:\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*,? \d{4})`,
)

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	septAbbrev    = regexp.MustCompile(`(?i)\bsept\b\.?`)
	dottedDate    = regexp.MustCompile(`\b(\d{1,2})\.([A-Za-z]+|\d{1,2})\.(\d{4})\b`)
)

// dayFirstLayouts are tried before the permissive parser so that numeric dates
// like 05-08-2025 read as 5 August.
var dayFirstLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006 01 02",
	"2 January 2006",
	"2 Jan 2006",
	"2-January-2006",
	"2-Jan-2006",
	"2/January/2006",
	"2/Jan/2006",
	"2-1-2006",
	"2/1/2006",
	"2 1 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January, 2006",
}

// monthLayouts name a month without a day. They resolve to the month's last day.
var monthLayouts = []string{
	"January 2006",
	"Jan 2006",
	"January, 2006",
	"Jan, 2006",
	"January-2006",
	"Jan-2006",
}

// Resolve returns the calendar date denoted by v. Only non-empty strings can
// resolve. Ordinal suffixes ("25th"), "Sept" and dotted separators are accepted.
// When several date-like tokens appear, the rightmost one that parses wins;
// otherwise the whole string is parsed. A month without a day ("September 2025")
// denotes the last day of that month. The result is midnight UTC on that date.
func Resolve(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	s = normalize(s)
	matches := datePattern.FindAllString(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if t, ok := parse(matches[i]); ok {
			return t, true
		}
	}
	return parse(s)
}

func normalize(s string) string {
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = septAbbrev.ReplaceAllString(s, "Sep")
	s = dottedDate.ReplaceAllString(s, "$1-$2-$3")
	return strings.Join(strings.Fields(s), " ")
}

// ResolvePath resolves the value found at a dotted path in m.
func ResolvePath(m map[string]any, path string) (time.Time, bool) {
	return Resolve(LookupPath(m, path))
}

// LookupPath walks a dotted path through nested keyed mappings. It returns nil as
// soon as a segment is missing or the current value is not a mapping.
func LookupPath(m map[string]any, path string) any {
	if m == nil || path == "" {
		return nil
	}
	var current any = m
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = node[key]
		if !ok {
			return nil
		}
	}
	return current
}

// Civil truncates t to midnight UTC of the calendar date it shows in its own location.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parse(s string) (t time.Time, ok bool) {
	// dateparse panics on a few pathological inputs.
	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	for _, layout := range dayFirstLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return Civil(parsed), true
		}
	}

	for _, layout := range monthLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return time.Date(parsed.Year(), parsed.Month()+1, 0, 0, 0, 0, 0, time.UTC), true
		}
	}

	parsed, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return Civil(parsed), true
}
