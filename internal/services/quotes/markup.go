package quotes

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/models"
)

// Class names on the quote site carry build hash suffixes, so every anchor is a pattern
// searched against the element's full class attribute.
var (
	priceContainerClass = regexp.MustCompile(`TitleGridAndImage_title-grid-and-image-price`)
	priceTextClass      = regexp.MustCompile(`TitleGridAndImage_title-grid-and-image-price-text.*kotak-heading-2`)
	priceChangeClass    = regexp.MustCompile(`kotak-text-regular.*TitleGridAndImage_title-grid-and-image-price-subtext`)
	detailRowClass      = regexp.MustCompile(`StockDetail_stock-detail-performance-table-data-row`)
	detailLabelClass    = regexp.MustCompile(`StockDetail_stock-detail-performance-table-label`)
	detailValueClass    = regexp.MustCompile(`StockDetail_stock-detail-performance-table-value`)

	changeAmountPattern  = regexp.MustCompile(`^([+-]?[\d.]+)`)
	changePercentPattern = regexp.MustCompile(`\(([+-]?[\d.]+%)\)`)
)

const prevCloseLabel = "prev. close"

// FindByClass returns the first element matching tag whose class attribute matches pattern.
// The boolean is false when nothing matched.
func FindByClass(root *goquery.Selection, tag string, pattern *regexp.Regexp) (*goquery.Selection, bool) {
	match := FindAllByClass(root, tag, pattern).First()
	return match, match.Length() > 0
}

// FindAllByClass returns every element matching tag whose class attribute matches pattern.
func FindAllByClass(root *goquery.Selection, tag string, pattern *regexp.Regexp) *goquery.Selection {
	return root.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		return ok && pattern.MatchString(class)
	})
}

// HasPriceElement reports whether the page carries the price text element.
// The resolver uses it to accept a candidate quote URL.
func HasPriceElement(doc *goquery.Document) (string, bool) {
	price, ok := FindByClass(doc.Selection, "div", priceTextClass)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(price.Text()), true
}

// ParseQuote extracts the price block from a quote page. Every field is independently optional.
func ParseQuote(doc *goquery.Document) *models.QuoteSnapshot {
	snapshot := &models.QuoteSnapshot{}

	if container, ok := FindByClass(doc.Selection, "div", priceContainerClass); ok {
		if price, ok := FindByClass(container, "div", priceTextClass); ok {
			snapshot.Price = models.StrPtr(strings.TrimSpace(price.Text()))
		}
		if change, ok := FindByClass(container, "div", priceChangeClass); ok {
			snapshot.ChangeAmount, snapshot.ChangePercent = splitChange(strings.TrimSpace(change.Text()))
		}
	}

	snapshot.PreviousClose = previousClose(doc)

	return snapshot
}

// splitChange parses text like "+12.35 (0.54%)" into its amount and percent parts.
func splitChange(text string) (amount, percent *string) {
	if text == "" {
		return nil, nil
	}
	if m := changeAmountPattern.FindStringSubmatch(text); m != nil {
		amount = models.StrPtr(m[1])
	}
	if m := changePercentPattern.FindStringSubmatch(text); m != nil {
		percent = models.StrPtr(m[1])
	}
	return amount, percent
}

// previousClose scans the performance table for the first "Prev. Close" row.
func previousClose(doc *goquery.Document) *string {
	var result *string

	FindAllByClass(doc.Selection, "tr", detailRowClass).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		label, ok := FindByClass(row, "td", detailLabelClass)
		if !ok || !strings.Contains(strings.ToLower(label.Text()), prevCloseLabel) {
			return true
		}
		if value, ok := FindByClass(row, "td", detailValueClass); ok {
			cleaned := common.NumericOnly(value.Text())
			if cleaned == "" {
				cleaned = "0"
			}
			result = models.StrPtr(cleaned)
		}
		return false
	})

	return result
}
