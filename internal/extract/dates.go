package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Textual date grammars recognized on notice pages, tried in order. All
// results are absolute UTC instants. When a grammar carries no time
// component the instant defaults to noon UTC rather than midnight, which
// keeps the calendar day stable across time zones.
var (
	reISO = regexp.MustCompile(
		`\b(20\d{2})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})(?:\.\d+)?Z?`)
	reDayMonthYear = regexp.MustCompile(
		`(?i)\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(20\d{2})(?:\s+(\d{1,2}):(\d{2})\s*(am|pm)?)?`)
	reDayMonthYearHour = regexp.MustCompile(
		`(?i)\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(20\d{2})\s+(\d{1,2})\s*(am|pm)\b`)
	reYearMonthDay = regexp.MustCompile(
		`(?i)\b(20\d{2})[-/](\d{1,2})[-/](\d{1,2})(?:\s+(\d{1,2}):(\d{2})\s*(am|pm)?)?`)
	reDayMonthNumYear = regexp.MustCompile(
		`(?i)\b(\d{1,2})[-/](\d{1,2})[-/](20\d{2})(?:\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?)?`)

	reTightMeridiem = regexp.MustCompile(`(?i)(\d)(am|pm)\b`)

	monthAbbrevs = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
)

// ParseWhen converts a textual date into a UTC instant. Unparsable input
// yields nil, never an error.
func ParseWhen(s string) *time.Time {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = reTightMeridiem.ReplaceAllString(s, "$1 $2")

	if m := reISO.FindStringSubmatch(s); m != nil {
		return mkInstant(atoi(m[1]), atoi(m[2]), atoi(m[3]), m[4], m[5], "")
	}
	// The bare-hour form is tried before the general day-month-year form,
	// whose optional time group would otherwise swallow "3 Jul 2024 5pm"
	// as a date-only match.
	if m := reDayMonthYearHour.FindStringSubmatch(s); m != nil {
		return mkInstant(atoi(m[3]), monthNum(m[2]), atoi(m[1]), m[4], "00", m[5])
	}
	if m := reDayMonthYear.FindStringSubmatch(s); m != nil {
		return mkInstant(atoi(m[3]), monthNum(m[2]), atoi(m[1]), m[4], m[5], m[6])
	}
	if m := reYearMonthDay.FindStringSubmatch(s); m != nil {
		return mkInstant(atoi(m[1]), atoi(m[2]), atoi(m[3]), m[4], m[5], m[6])
	}
	if m := reDayMonthNumYear.FindStringSubmatch(s); m != nil {
		return mkInstant(atoi(m[3]), atoi(m[2]), atoi(m[1]), m[4], m[5], m[6])
	}
	return nil
}

func mkInstant(year, month, day int, hh, mm, meridiem string) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	hour := 12
	minute := 0
	if hh != "" {
		hour = atoi(hh)
	}
	if mm != "" {
		minute = atoi(mm)
	}
	switch strings.ToLower(meridiem) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 31 becomes Mar 2); a shifted day
	// means the components never named a real date.
	if t.Day() != day || t.Month() != time.Month(month) {
		return nil
	}
	return &t
}

func monthNum(name string) int {
	prefix := strings.ToLower(name)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	for i, m := range monthAbbrevs {
		if m == prefix {
			return i + 1
		}
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
