package extract

import (
	"regexp"
	"strings"
)

// Label synonym lists, in priority order. Lookup tries exact matches
// first, then substring containment, always walking the list in this
// order so results never depend on map iteration.
var (
	publishedLabels = []string{
		"published date", "publication date", "published",
		"date published", "date of publication",
	}
	deadlineLabels = []string{
		"closing date", "deadline", "closing time", "response deadline",
		"submission deadline", "closing", "closing date and time",
	}
	buyerLabels = []string{
		"organisation", "organisation name", "buyer",
		"contracting authority", "procuring entity",
	}
	valueLabels = []string{
		"awarded value", "value of contract", "total value", "estimated value",
		"contract value", "estimated contract value", "award value",
		"contract value (exclusive of vat)", "contract value (exclusive of vat) £",
	}
	cpvLabels = []string{
		"cpv code", "cpv codes", "common procurement vocabulary",
	}

	awardPhrases = []string{
		"contract award", "awarded supplier", "awarded to", "winning supplier",
	}
)

// labelMap is a normalized label→value map that remembers insertion order
// so substring fallback is deterministic.
type labelMap struct {
	keys   []string
	values map[string]string
}

func newLabelMap() *labelMap {
	return &labelMap{values: make(map[string]string)}
}

func (m *labelMap) set(key, value string) {
	key = normalizeLabel(key)
	if key == "" || value == "" {
		return
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// lookup tries each label for an exact key hit, then each label as a
// substring of the stored keys in insertion order.
func (m *labelMap) lookup(labels []string) (string, bool) {
	for _, label := range labels {
		if v, ok := m.values[label]; ok {
			return v, true
		}
	}
	for _, label := range labels {
		for _, key := range m.keys {
			if strings.Contains(key, label) {
				return m.values[key], true
			}
		}
	}
	return "", false
}

// joinedValues concatenates all stored values, capped at max bytes. Used
// as a last-resort haystack for money parsing.
func (m *labelMap) joinedValues(max int) string {
	var b strings.Builder
	for _, key := range m.keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m.values[key])
		if b.Len() >= max {
			break
		}
	}
	s := b.String()
	if len(s) > max {
		s = s[:max]
	}
	return s
}

func normalizeLabel(s string) string {
	return strings.ToLower(collapseWhitespace(s))
}

// neighborPatterns precompiles the markup-proximity fallback for a label
// list: the label text, a closing tag, then the next tag-wrapped value.
func neighborPatterns(labels []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(labels))
	for _, label := range labels {
		patterns = append(patterns, regexp.MustCompile(
			`(?is)`+regexp.QuoteMeta(label)+`\s*</[^>]+>\s*<[^>]*>(.{1,400}?)</`))
	}
	return patterns
}

var (
	publishedNeighbors = neighborPatterns(publishedLabels)
	deadlineNeighbors  = neighborPatterns(deadlineLabels)
	buyerNeighbors     = neighborPatterns(buyerLabels)
	valueNeighbors     = neighborPatterns(valueLabels)
)

// regexNeighbor searches raw markup for a label immediately followed by a
// tag-wrapped value and returns the flattened text of that value.
func regexNeighbor(html string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(html); m != nil {
			if v := flattenMarkup(m[1]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// flattenMarkup strips tags from a markup fragment and collapses the
// remaining text.
func flattenMarkup(fragment string) string {
	text := tagRe.ReplaceAllString(fragment, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, " ", " ")
	return collapseWhitespace(text)
}
