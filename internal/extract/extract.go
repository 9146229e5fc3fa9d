package extract

import (
	"errors"
	"fmt"
	"regexp"
	"txexport/internal/components/assert"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/internal/ledger"
	"txexport/internal/txparse"
	"txexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extractor_group_date = "extractor.group-date"
	report_extractor_extract    = "extractor.extract"
)

var ErrMissingField = errors.New("missing mandatory field")

// Extractor turns line item fragments into records.
type Extractor struct {
	layout    Layout
	reference *regexp.Regexp
	time      chrono.API
	tel       telemetry.API
}

func NewExtractor(layout Layout, time chrono.API, tel telemetry.API) Extractor {
	assert.NotEmptyStr(layout.LineItem)
	assert.NotEmptyStr(layout.ReferenceParam)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Extractor{
		layout:    layout,
		reference: regexp.MustCompile(regexp.QuoteMeta(layout.ReferenceParam) + `=([^&]+)`),
		time:      time,
		tel:       telemetry.NewScopedAPI("extract", tel),
	}
}

func (e Extractor) Layout() Layout {
	return e.layout
}

// GroupDate reads and normalizes the date of a group heading. A date that
// cannot be normalized is returned as displayed. It returns false when the
// heading carries no date text at all.
func (e Extractor) GroupDate(heading *goquery.Selection) (string, bool) {
	text, _ := htmlutil.SelectionText(heading.Find(e.layout.DateText))
	date, err := txparse.NormalizeDate(text)
	if errors.Is(err, txparse.ErrEmptyDate) {
		e.tel.ReportWarning(report_extractor_group_date, err)
		return "", false
	}
	if err != nil {
		e.tel.ReportWarning(report_extractor_group_date, err)
	}
	return date, true
}

// Extract builds a record out of a single line item dated date. Items are
// left empty, enrichment fills them in later.
func (e Extractor) Extract(item *goquery.Selection, date string) (ledger.Record, error) {
	firstRow := item.Find(e.layout.FirstRow).First()
	if firstRow.Length() == 0 {
		return ledger.Record{}, fmt.Errorf("%w: first row", ErrMissingField)
	}

	paymentMethod, _ := htmlutil.SelectionText(firstRow.Find(e.layout.PaymentMethod))

	amountText, ok := htmlutil.SelectionText(firstRow.Find(e.layout.Amount))
	if !ok {
		return ledger.Record{}, fmt.Errorf("%w: amount", ErrMissingField)
	}
	amount, err := txparse.ParseAmount(amountText)
	if err != nil {
		return ledger.Record{}, err
	}

	reference, status := e.referenceAndStatus(item)
	merchant, _ := htmlutil.SelectionText(item.Find(e.layout.Merchant))

	id, err := ledger.NewRecordID(date, reference, e.time.Now())
	if err != nil {
		e.tel.ReportBroken(report_extractor_extract, err)
		return ledger.Record{}, err
	}

	return ledger.Record{
		ID:                id,
		Date:              date,
		PaymentMethod:     paymentMethod,
		Amount:            amount.Value,
		Currency:          amount.Currency,
		ExternalReference: reference,
		Status:            status,
		Merchant:          merchant,
		Items:             []string{},
	}, nil
}

// status text is only meaningful next to an order link
func (e Extractor) referenceAndStatus(item *goquery.Selection) (string, string) {
	link := item.Find(e.layout.ReferenceLink).First()
	if link.Length() == 0 {
		return "", ""
	}

	reference := ""
	href, _ := link.Attr("href")
	match := e.reference.FindStringSubmatch(href)
	if len(match) >= 2 {
		reference = match[1]
	}

	status, _ := htmlutil.SelectionText(item.Find(e.layout.Status))
	return reference, status
}
