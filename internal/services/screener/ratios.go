package screener

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const (
	ratiosAnchor   = "#top-ratios"
	ratioItemQuery = "#top-ratios li"
)

// unitNoise is folded into single spaces when deriving the unit of a multi-number value.
var unitNoise = regexp.MustCompile(`[₹$€£¥/\s]+`)

// ParseRatios extracts the top-ratios list. Items without a name are skipped.
func ParseRatios(doc *goquery.Document) models.Ratios {
	ratios := models.Ratios{}

	doc.Find(ratioItemQuery).Each(func(_ int, item *goquery.Selection) {
		name := common.CollapseSpaces(item.Find(".name").First().Text())
		valueSel := item.Find(".value").First()
		if name == "" || valueSel.Length() == 0 {
			return
		}

		full := common.CollapseSpaces(valueSel.Text())

		var numbers []string
		valueSel.Find(".number").Each(func(_ int, span *goquery.Selection) {
			if text := strings.TrimSpace(span.Text()); text != "" {
				numbers = append(numbers, text)
			}
		})

		sourceType, _ := item.Attr("data-source")

		ratios[name] = models.Ratio{
			Name:        name,
			FullValue:   full,
			NumberValue: strings.Join(numbers, " / "),
			Unit:        ratioUnit(full, numbers),
			SourceType:  sourceType,
		}
	})

	return ratios
}

// ratioUnit removes the numeric spans from the full value text.
// With several spans the residue is normalized: currency symbols, slashes and whitespace fold to single spaces.
func ratioUnit(full string, numbers []string) string {
	switch len(numbers) {
	case 0:
		return ""
	case 1:
		return common.CollapseSpaces(strings.Replace(full, numbers[0], "", 1))
	}

	residue := full
	for _, n := range numbers {
		residue = strings.Replace(residue, n, " ", 1)
	}
	return strings.TrimSpace(unitNoise.ReplaceAllString(residue, " "))
}
