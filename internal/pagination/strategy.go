package pagination

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NextPageLabel is the visible label of the control that loads the next page.
const NextPageLabel = "Next Page"

// ControlSelector matches every element a Control can point at. A Control is
// addressed by its position among these matches so the live page can resolve
// it with the same selector.
const ControlSelector = "input, button"

// Control addresses the navigation control found on a snapshot.
type Control struct {
	Selector string
	Index    int
	// Strategy is the name of the strategy that found the control.
	Strategy string
}

// Strategy is one way of locating the next page control on a snapshot.
type Strategy struct {
	Name string
	Find func(doc *goquery.Document) (*goquery.Selection, bool)
}

// ByIdentity finds the control by the navigation event carried in its name.
var ByIdentity = Strategy{
	Name: "identity",
	Find: func(doc *goquery.Document) (*goquery.Selection, bool) {
		sel := doc.Find(`input[name*="NextPageNavigationEvent"]`).First()
		return sel, sel.Length() > 0
	},
}

// ByLabel finds a submit control whose own text, value or parent text
// mentions the next page label.
var ByLabel = Strategy{
	Name: "label",
	Find: func(doc *goquery.Document) (*goquery.Selection, bool) {
		var found *goquery.Selection
		doc.Find(`input[type="submit"], button`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			label := sel.Text()
			if label == "" {
				label, _ = sel.Attr("value")
			}
			if strings.Contains(label, NextPageLabel) || strings.Contains(sel.Parent().Text(), NextPageLabel) {
				found = sel
				return false
			}
			return true
		})
		return found, found != nil
	},
}

// ByStructure finds the button text span labelled exactly with the next page
// label and takes the submit input of its enclosing button.
var ByStructure = Strategy{
	Name: "structure",
	Find: func(doc *goquery.Document) (*goquery.Selection, bool) {
		var found *goquery.Selection
		doc.Find("span.a-button-text").EachWithBreak(func(_ int, span *goquery.Selection) bool {
			if strings.TrimSpace(span.Text()) != NextPageLabel {
				return true
			}
			input := span.Parent().Find(`input[type="submit"]`).First()
			if input.Length() == 0 {
				return true
			}
			found = input
			return false
		})
		return found, found != nil
	},
}

// DefaultStrategies is the lookup order used unless configured otherwise.
func DefaultStrategies() []Strategy {
	return []Strategy{ByIdentity, ByLabel, ByStructure}
}

// FindNextControl tries each strategy in order and returns the first hit.
func FindNextControl(doc *goquery.Document, strategies []Strategy) (Control, bool) {
	candidates := doc.Find(ControlSelector)
	for _, strategy := range strategies {
		sel, ok := strategy.Find(doc)
		if !ok {
			continue
		}
		index := candidates.IndexOfSelection(sel.First())
		if index < 0 {
			continue
		}
		return Control{
			Selector: ControlSelector,
			Index:    index,
			Strategy: strategy.Name,
		}, true
	}
	return Control{}, false
}

// PaginationReady reports whether the pagination widget has finished
// rendering, or is not part of the page at all.
func PaginationReady(doc *goquery.Document) bool {
	if doc.Find(".a-pagination").Length() == 0 {
		return true
	}
	return doc.Find("ul.a-pagination").Length() > 0
}
