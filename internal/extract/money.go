package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	moneyRe      = regexp.MustCompile(`£\s*([\d,\s]+(?:\.\d{1,2})?)`)
	moneyStripRe = regexp.MustCompile(`[,\s]`)
)

// Money is the parsed form of a monetary field. Text keeps the raw
// matched token even when the numeric parse fails. Only Max is ever
// derived from the matched number; Min is left nil (the upstream pages
// publish a single figure, not a range).
type Money struct {
	Text *string
	Min  *float64
	Max  *float64
}

// ParseMoney locates a currency-prefixed numeric token and parses it as a
// decimal. No match yields the zero Money (all fields nil).
func ParseMoney(s string) Money {
	m := moneyRe.FindStringSubmatch(s)
	if m == nil {
		return Money{}
	}
	text := collapseWhitespace(m[0])
	out := Money{Text: &text}

	num, err := strconv.ParseFloat(moneyStripRe.ReplaceAllString(m[1], ""), 64)
	if err != nil {
		return out
	}
	out.Max = &num
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
