package extract

import (
	"github.com/PuerkitoBio/goquery"
)

// Layout holds the selectors describing a transactions page. The defaults
// match the "your payments" transactions list.
type Layout struct {
	DateGroup      string `json:"date_group"`
	DateText       string `json:"date_text"`
	LineItem       string `json:"line_item"`
	FirstRow       string `json:"first_row"`
	PaymentMethod  string `json:"payment_method"`
	Amount         string `json:"amount"`
	ReferenceLink  string `json:"reference_link"`
	ReferenceParam string `json:"reference_param"`
	Status         string `json:"status"`
	Merchant       string `json:"merchant"`
}

func DefaultLayout() Layout {
	return Layout{
		DateGroup:      ".apx-transaction-date-container",
		DateText:       "span",
		LineItem:       ".apx-transactions-line-item-component-container",
		FirstRow:       ".a-row",
		PaymentMethod:  ".a-span9 .a-text-bold",
		Amount:         ".a-span3 .a-text-bold",
		ReferenceLink:  "a[href*='orderID=']",
		ReferenceParam: "orderID",
		Status:         ".a-color-base",
		Merchant:       "span.a-size-base:not(.a-text-bold):not(.a-color-base)",
	}
}

// Group is a date heading together with the line items listed under it.
type Group struct {
	Heading *goquery.Selection
	Items   *goquery.Selection
}

// Groups returns the date groups of doc in document order. The line items of
// a group live in the element immediately following its heading.
func (l Layout) Groups(doc *goquery.Document) []Group {
	groups := []Group{}
	doc.Find(l.DateGroup).Each(func(_ int, heading *goquery.Selection) {
		groups = append(groups, Group{
			Heading: heading,
			Items:   heading.Next().Find(l.LineItem),
		})
	})
	return groups
}

// CountItems is the number of line items across groups.
func CountItems(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += g.Items.Length()
	}
	return total
}
