package enrich

import (
	"strings"
	"txexport/lib/textutil"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// labels that show up as images on an order page but are not products,
// normalized with textutil.NormalizeName
var nonProductLabels = []string{
	"amazonvisa",
	"americanexpress",
	"logo",
	"icon",
}

// brand-only labels like "Amazon" or "amazon.com" are shorter than this
const minBrandLabelLength = 10

// ParseItems lists the alt text of every image on an order page that looks
// like a product, in document order.
func ParseItems(doc *goquery.Document) []string {
	items := []string{}
	doc.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		alt = strings.TrimSpace(alt)
		if isProductLabel(alt) {
			items = append(items, alt)
		}
	})
	return items
}

func isProductLabel(alt string) bool {
	if alt == "" {
		return false
	}
	if textutil.MatchName(alt, nonProductLabels) {
		return false
	}
	if strings.Contains(strings.ToLower(alt), "amazon") && utf8.RuneCountInString(alt) < minBrandLabelLength {
		return false
	}
	return true
}
