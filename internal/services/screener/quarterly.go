package screener

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/models"
)

const (
	quarterlyAnchor = "#quarters"
	quarterlyTable  = "#quarters table.data-table"
	rawPDFLabel     = "Raw PDF"
)

// ParseQuarterly extracts the quarterly results table. Every metric has exactly one
// value per header; short rows are padded with "".
func ParseQuarterly(doc *goquery.Document) *models.QuarterlyDataset {
	dataset := &models.QuarterlyDataset{
		Headers: []string{},
		Metrics: map[string][]string{},
	}

	table := doc.Find(quarterlyTable).First()
	if table.Length() == 0 {
		return dataset
	}

	headerRow := table.Find("thead tr").First()
	if headerRow.Length() == 0 {
		headerRow = table.Find("tr").First()
	}
	headerRow.Find("th, td").Each(func(i int, cell *goquery.Selection) {
		if i == 0 {
			return
		}
		if label := common.CollapseSpaces(cell.Text()); label != "" {
			dataset.Headers = append(dataset.Headers, label)
		}
	})
	if len(dataset.Headers) == 0 {
		return dataset
	}

	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		if isFootnoteRow(row) {
			return
		}

		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}

		name := metricName(cells.First())
		if name == "" || name == rawPDFLabel {
			return
		}
		if _, dup := dataset.Metrics[name]; dup {
			return
		}

		values := make([]string, len(dataset.Headers))
		cells.Slice(1, cells.Length()).EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i >= len(values) {
				return false
			}
			values[i] = common.CollapseSpaces(cell.Text())
			return true
		})

		dataset.Metrics[name] = values
		dataset.MetricOrder = append(dataset.MetricOrder, name)
	})

	return dataset
}

func isFootnoteRow(row *goquery.Selection) bool {
	return row.HasClass("attachments") || row.HasClass("footnote")
}

// metricName strips the trailing "+" expander from a row label.
func metricName(cell *goquery.Selection) string {
	name := common.CollapseSpaces(cell.Text())
	name = strings.TrimSpace(strings.TrimRight(name, "+"))
	return common.CollapseSpaces(strings.ReplaceAll(name, " ", " "))
}
