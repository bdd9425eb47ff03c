// Package extract derives normalized structured fields from archived
// notice markup. Extraction is strictly best-effort: every strategy
// degrades to nil on failure and the engine never returns an error.
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/contractwatch/noticecrawler/internal/notice"
)

// Config carries the source-level defaults seeded into every field set.
type Config struct {
	BuyerCountry string
	Currency     string
	RegionCode   string
}

// Engine runs the per-field strategy chains over one detail document.
type Engine struct {
	cfg Config
}

// New creates an extraction engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

var (
	isoTimestampRe  = regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z\b`)
	inlineClosingRe = regexp.MustCompile(`(?i)Closing:\s*</[^>]+>\s*<[^>]*>\s*([^<]{6,80})<`)
)

// shortDescSelectors are tried in order; the first with substantial text wins.
var shortDescSelectors = []string{
	".govuk-main-wrapper",
	".govuk-grid-column-two-thirds",
	"#content",
	"main",
	"body",
}

const (
	shortDescLimit  = 2000
	valueScanLimit  = 100000
	minBodyTextSize = 40
)

// Extract produces a complete field-set shape from detail-document
// markup. All keys are present; fields the strategies could not resolve
// are nil.
func (e *Engine) Extract(html string) notice.FieldSet {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc = nil
	}

	labels := summaryLabels(doc)

	fs := notice.FieldSet{
		Title:      e.title(doc),
		ShortDesc:  e.shortDesc(doc),
		BuyerName:  e.buyer(doc, labels, html),
		NoticeType: classifyNoticeType(html),
		CPVCodes:   e.cpvCodes(labels, html),
	}

	fs.PublishedAt, fs.Deadline = e.dates(doc, labels, html)

	money := e.money(labels, html)
	fs.ValueText = money.Text
	fs.ValueMin = money.Min
	fs.ValueMax = money.Max

	if e.cfg.BuyerCountry != "" {
		fs.BuyerCountry = strPtr(e.cfg.BuyerCountry)
	}
	if e.cfg.Currency != "" {
		fs.Currency = strPtr(e.cfg.Currency)
	}
	if e.cfg.RegionCode != "" {
		fs.RegionCode = strPtr(e.cfg.RegionCode)
	}
	return fs
}

// summaryLabels collects label→value pairs from the recognizable
// key/value layouts: GOV.UK summary list rows, then dt/th elements with a
// dd/td sibling.
func summaryLabels(doc *goquery.Document) *labelMap {
	m := newLabelMap()
	if doc == nil {
		return m
	}

	doc.Find(".govuk-summary-list__row").Each(func(_ int, row *goquery.Selection) {
		key := row.Find(".govuk-summary-list__key").Text()
		value := row.Find(".govuk-summary-list__value").Text()
		m.set(key, collapseWhitespace(value))
	})

	doc.Find("dt,th").Each(func(_ int, el *goquery.Selection) {
		var value string
		if dd := el.NextFiltered("dd"); dd.Length() > 0 {
			value = dd.Text()
		} else if td := el.NextFiltered("td"); td.Length() > 0 {
			value = td.Text()
		}
		m.set(el.Text(), collapseWhitespace(value))
	})

	return m
}

func (e *Engine) title(doc *goquery.Document) *string {
	if doc == nil {
		return nil
	}
	if t := collapseWhitespace(doc.Find("h1").First().Text()); t != "" {
		return &t
	}
	if t := collapseWhitespace(doc.Find("title").First().Text()); t != "" {
		return &t
	}
	return nil
}

func (e *Engine) buyer(doc *goquery.Document, labels *labelMap, html string) *string {
	if v, ok := labels.lookup(buyerLabels); ok {
		return &v
	}
	if v, ok := regexNeighbor(html, buyerNeighbors); ok {
		return &v
	}
	// Last resort: an anchor whose link path suggests an organisation profile.
	if doc != nil {
		guess := doc.Find("a[href*='/organisation/'], a[href*='/organization/']").First().Text()
		if v := collapseWhitespace(guess); v != "" {
			return &v
		}
	}
	return nil
}

func (e *Engine) dates(doc *goquery.Document, labels *labelMap, html string) (published, deadline *time.Time) {
	publishedRaw, _ := labels.lookup(publishedLabels)
	deadlineRaw, _ := labels.lookup(deadlineLabels)

	if publishedRaw == "" {
		publishedRaw, _ = regexNeighbor(html, publishedNeighbors)
	}
	if deadlineRaw == "" {
		deadlineRaw, _ = regexNeighbor(html, deadlineNeighbors)
	}

	if deadlineRaw == "" {
		if m := inlineClosingRe.FindStringSubmatch(html); m != nil {
			deadlineRaw = collapseWhitespace(m[1])
		}
	}

	// Hidden ISO timestamps in scripts, then meta tags, when labels failed.
	if publishedRaw == "" || deadlineRaw == "" {
		iso := scriptTimestamps(doc)
		if publishedRaw == "" && len(iso) > 0 {
			publishedRaw = iso[0]
		}
		if deadlineRaw == "" && len(iso) > 1 {
			deadlineRaw = iso[1]
		}
		if publishedRaw == "" && doc != nil {
			if meta, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
				publishedRaw = meta
			} else if meta, ok := doc.Find(`meta[name="date"]`).Attr("content"); ok {
				publishedRaw = meta
			}
		}
	}

	return ParseWhen(publishedRaw), ParseWhen(deadlineRaw)
}

func scriptTimestamps(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var blocks []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return isoTimestampRe.FindAllString(strings.Join(blocks, "\n"), -1)
}

func (e *Engine) money(labels *labelMap, html string) Money {
	field, ok := labels.lookup(valueLabels)
	if !ok {
		field, ok = regexNeighbor(html, valueNeighbors)
	}
	if !ok {
		// No labeled value anywhere: scan the collected pair values.
		field = labels.joinedValues(valueScanLimit)
	}
	return ParseMoney(field)
}

func (e *Engine) cpvCodes(labels *labelMap, html string) []string {
	seed, _ := labels.lookup(cpvLabels)
	return MineCPVCodes(seed, html)
}

// classifyNoticeType reports "award" when any award-indicating phrase
// appears in the document, else "tender".
func classifyNoticeType(html string) string {
	lower := strings.ToLower(html)
	for _, phrase := range awardPhrases {
		if strings.Contains(lower, phrase) {
			return notice.TypeAward
		}
	}
	return notice.TypeTender
}

func (e *Engine) shortDesc(doc *goquery.Document) *string {
	if doc == nil {
		return nil
	}
	for _, sel := range shortDescSelectors {
		el := doc.Find(sel)
		if el.Length() == 0 {
			continue
		}
		text := collapseWhitespace(el.First().Text())
		if len(text) > minBodyTextSize {
			return strPtr(truncateRunes(text, shortDescLimit))
		}
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func strPtr(s string) *string { return &s }
