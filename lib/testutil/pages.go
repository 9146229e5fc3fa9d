package testutil

import (
	"fmt"
	"html"
	"strings"
)

// PageItem is one line item on a generated transactions page. An empty
// Amount leaves the amount field out entirely.
type PageItem struct {
	PaymentMethod string
	Amount        string
	Reference     string
	Status        string
	Merchant      string
}

type PageGroup struct {
	Date  string
	Items []PageItem
}

// NextControl selects how a generated page exposes its "Next Page" control.
type NextControl int

const (
	NextNone NextControl = iota
	// an input whose name carries the navigation event
	NextByIdentity
	// a submit button labelled "Next Page"
	NextByLabel
	// a button text span whose submit input is nested away from the label
	NextByStructure
)

// Page is a generated transactions page in the shape of the "your payments"
// list.
type Page struct {
	Groups []PageGroup
	Next   NextControl
}

func (p Page) Render() string {
	var out strings.Builder
	out.WriteString(`<!DOCTYPE html><html><body><form method="post" action="/cpe/yourpayments/transactions"><div class="a-section pmts-widget-section">`)
	for _, group := range p.Groups {
		fmt.Fprintf(&out, `<div class="apx-transaction-date-container"><span>%s</span></div>`, html.EscapeString(group.Date))
		out.WriteString(`<div class="a-section">`)
		for _, item := range group.Items {
			renderItem(&out, item)
		}
		out.WriteString(`</div>`)
	}
	out.WriteString(`</div>`)

	switch p.Next {
	case NextByIdentity:
		out.WriteString(`<span class="a-button"><input class="a-button-input" type="submit" name="ppw-widgetEvent:DefaultNextPageNavigationEvent:{}"><span class="a-button-text">Next Page</span></span>`)
	case NextByLabel:
		out.WriteString(`<button type="submit" class="a-button">Next Page</button>`)
	case NextByStructure:
		out.WriteString(`<span class="a-button"><span class="a-button-inner"><span class="a-button-text">Next Page</span><span class="a-declarative"><input class="a-button-input" type="submit"></span></span></span>`)
	}
	out.WriteString(`<ul class="a-pagination"></ul></form></body></html>`)
	return out.String()
}

func renderItem(out *strings.Builder, item PageItem) {
	out.WriteString(`<div class="a-section apx-transactions-line-item-component-container"><div class="a-row">`)
	fmt.Fprintf(out, `<div class="a-column a-span9"><span class="a-size-base a-text-bold">%s</span></div>`, html.EscapeString(item.PaymentMethod))
	out.WriteString(`<div class="a-column a-span3 a-span-last">`)
	if item.Amount != "" {
		fmt.Fprintf(out, `<span class="a-size-base-plus a-text-bold">%s</span>`, html.EscapeString(item.Amount))
	}
	out.WriteString(`</div></div>`)
	if item.Reference != "" {
		fmt.Fprintf(
			out,
			`<div class="a-row"><a class="a-link-normal" href="/gp/css/summary/edit.html?orderID=%s&amp;ref_=pmts">Order #%s</a></div>`,
			html.EscapeString(item.Reference), html.EscapeString(item.Reference),
		)
		if item.Status != "" {
			fmt.Fprintf(out, `<div class="a-row"><span class="a-size-base a-color-base">%s</span></div>`, html.EscapeString(item.Status))
		}
	}
	if item.Merchant != "" {
		fmt.Fprintf(out, `<div class="a-row"><span class="a-size-base">%s</span></div>`, html.EscapeString(item.Merchant))
	}
	out.WriteString(`</div>`)
}
