package extract

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/internal/ledger"
	"txexport/internal/txparse"
	"txexport/lib/testutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func loadDocument(t *testing.T, html []byte) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func newTestExtractor() (Extractor, *telemetry.Recorder) {
	rec := telemetry.NewRecorder()
	clock := chrono.NewFixedImpl(time.Date(2024, time.October, 5, 0, 0, 0, 0, time.UTC))
	return NewExtractor(DefaultLayout(), clock, rec), rec
}

func TestGroups(t *testing.T) {
	doc := loadDocument(t, testutil.ReadFixture(t, "transactions.html"))
	groups := DefaultLayout().Groups(doc)
	require.Len(t, groups, 2)
	require.Equal(t, 2, groups[0].Items.Length())
	require.Equal(t, 1, groups[1].Items.Length())
	require.Equal(t, 3, CountItems(groups))
}

func TestExtract(t *testing.T) {
	doc := loadDocument(t, testutil.ReadFixture(t, "transactions.html"))
	extractor, _ := newTestExtractor()
	groups := extractor.Layout().Groups(doc)

	date, ok := extractor.GroupDate(groups[0].Heading)
	require.True(t, ok)
	require.Equal(t, "2024-10-03", date)

	expected := []ledger.Record{
		{
			Date:              "2024-10-03",
			PaymentMethod:     "Prime Visa ****5989",
			Amount:            -27.91,
			Currency:          "USD",
			ExternalReference: "112-4545454-1212121",
			Status:            "Charged",
			Merchant:          "AMZN Mktp US",
			Items:             []string{},
		},
		{
			Date:          "2024-10-03",
			PaymentMethod: "Amazon Gift Card",
			Amount:        15,
			Currency:      "USD",
			Merchant:      "Refund",
			Items:         []string{},
		},
	}

	records := []ledger.Record{}
	groups[0].Items.Each(func(_ int, item *goquery.Selection) {
		r, err := extractor.Extract(item, date)
		require.NoError(t, err)
		records = append(records, r)
	})

	diff := cmp.Diff(expected, records, cmpopts.IgnoreFields(ledger.Record{}, "ID"))
	if diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
	require.True(t, strings.HasPrefix(records[0].ID, "2024-10-03_112-4545454-1212121_"))
	require.NotEqual(t, records[0].ID, records[1].ID)
}

func TestExtractMissingAmount(t *testing.T) {
	doc := loadDocument(t, testutil.ReadFixture(t, "transactions.html"))
	extractor, _ := newTestExtractor()
	groups := extractor.Layout().Groups(doc)

	_, err := extractor.Extract(groups[1].Items.First(), "2024-09-28")
	require.ErrorIs(t, err, ErrMissingField)
}

func TestExtractFailures(t *testing.T) {
	extractor, _ := newTestExtractor()

	testCases := []struct {
		name string
		html string
		err  error
	}{
		{
			name: "no first row",
			html: `<div class="apx-transactions-line-item-component-container"><span>nothing</span></div>`,
			err:  ErrMissingField,
		},
		{
			name: "malformed amount",
			html: `<div class="apx-transactions-line-item-component-container"><div class="a-row">
				<div class="a-span9"><span class="a-text-bold">Visa</span></div>
				<div class="a-span3"><span class="a-text-bold">€15,50</span></div>
			</div></div>`,
			err: txparse.ErrMalformedAmount,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			doc := loadDocument(t, []byte(test.html))
			item := doc.Find(extractor.Layout().LineItem)
			_, err := extractor.Extract(item, "2024-10-03")
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestExtractOptionalPaymentMethod(t *testing.T) {
	extractor, _ := newTestExtractor()
	doc := loadDocument(t, []byte(`<div class="apx-transactions-line-item-component-container"><div class="a-row">
		<div class="a-span3"><span class="a-text-bold">£4.00</span></div>
	</div></div>`))

	r, err := extractor.Extract(doc.Find(extractor.Layout().LineItem), "2024-10-03")
	require.NoError(t, err)
	require.Equal(t, "", r.PaymentMethod)
	require.Equal(t, "GBP", r.Currency)
	require.Equal(t, 4.0, r.Amount)
}

func TestGroupDate(t *testing.T) {
	extractor, rec := newTestExtractor()

	doc := loadDocument(t, []byte(`
		<div class="apx-transaction-date-container"><span>Yesterday</span></div>
		<div class="apx-transaction-date-container"></div>
	`))
	headings := doc.Find(extractor.Layout().DateGroup)

	date, ok := extractor.GroupDate(headings.Eq(0))
	require.True(t, ok)
	require.Equal(t, "Yesterday", date)
	require.True(t, rec.Has(telemetry.KindWarning, report_extractor_group_date))

	_, ok = extractor.GroupDate(headings.Eq(1))
	require.False(t, ok)
}
