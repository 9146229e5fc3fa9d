package capture

import (
	"context"
	"fmt"
	"txexport/internal/components/assert"
	"txexport/internal/components/telemetry"
	"txexport/internal/extract"
	"txexport/internal/ledger"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("txexport/internal/capture")

const (
	report_coordinator_capture_page = "coordinator.capture-page"
	report_coordinator_extract      = "coordinator.extract"
	report_coordinator_mark         = "coordinator.mark"
)

// Enricher returns the sub-item descriptions of an order reference. It must
// not fail, an unavailable lookup yields no items.
//
// note: fault injection point
type Enricher interface {
	Fetch(ctx context.Context, reference string) []string
}

type Result struct {
	Progress
	// Inserted is how many records the page added to the store.
	Inserted int
}

// NewRecords reports whether anything new was captured.
func (r Result) NewRecords() bool {
	return r.Inserted > 0
}

// Coordinator captures every line item of one page into the store.
type Coordinator struct {
	extractor extract.Extractor
	enricher  Enricher
	store     *ledger.Store
	sink      ProgressSink
	tel       telemetry.API
}

func NewCoordinator(
	extractor extract.Extractor,
	enricher Enricher,
	store *ledger.Store,
	sink ProgressSink,
	tel telemetry.API,
) *Coordinator {
	assert.NotNil(enricher)
	assert.NotNil(store)
	assert.NotNil(sink)
	assert.NotNil(tel)

	return &Coordinator{
		extractor: extractor,
		enricher:  enricher,
		store:     store,
		sink:      sink,
		tel:       telemetry.NewScopedAPI("capture", tel),
	}
}

// CapturePage processes doc strictly in document order, one item at a time.
// Per-item problems only show up in the counters and marks. The returned
// error is reserved for failing to load or persist the session.
//
// page is nil outside of a multi-page run.
func (c *Coordinator) CapturePage(ctx context.Context, doc *goquery.Document, marker Marker, page *PageInfo) (Result, error) {
	ctx, span := tracer.Start(ctx, "capture:Page")
	defer span.End()

	if marker == nil {
		marker = NopMarker{}
	}

	result := Result{}
	if page != nil {
		result.CurrentPage = page.CurrentPage
		result.TotalPages = page.TotalPages
	}

	err := c.store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load session")
		return result, err
	}

	layout := c.extractor.Layout()
	groups := layout.Groups(doc)
	if len(groups) == 0 {
		c.tel.ReportDebug("no transaction date groups found on page")
		c.sink.Update(result.Progress)
		return result, nil
	}

	result.Total = extract.CountItems(groups)
	span.SetAttributes(attribute.Int("total", result.Total))
	c.sink.Update(result.Progress)

	allItems := doc.Find(layout.LineItem)
	batch := []ledger.Record{}
	batchKeys := map[ledger.NaturalKey]struct{}{}

	for _, group := range groups {
		date, hasDate := c.extractor.GroupDate(group.Heading)

		group.Items.Each(func(_ int, item *goquery.Selection) {
			index := allItems.IndexOfSelection(item)

			if !hasDate {
				c.tel.ReportWarning(report_coordinator_extract, "line item without a date", index)
				result.Failed++
				c.mark(ctx, marker, index, Failed)
				c.sink.Update(result.Progress)
				return
			}

			record, err := c.extractor.Extract(item, date)
			if err != nil {
				c.tel.ReportWarning(report_coordinator_extract, err, index)
				result.Failed++
				c.mark(ctx, marker, index, Failed)
				c.sink.Update(result.Progress)
				return
			}

			if record.ExternalReference != "" {
				record.Items = c.enricher.Fetch(ctx, record.ExternalReference)
			}

			key := record.Key()
			_, inBatch := batchKeys[key]
			if inBatch || c.store.Contains(key) {
				result.Skipped++
				c.mark(ctx, marker, index, Skipped)
				c.sink.Update(result.Progress)
				return
			}

			batchKeys[key] = struct{}{}
			batch = append(batch, record)
			result.Captured++
			c.mark(ctx, marker, index, Captured)
			c.sink.Update(result.Progress)
		})
	}

	// a page that has started is always committed, even if ctx ends midway
	merged, err := c.store.Merge(context.WithoutCancel(ctx), batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit page")
		c.tel.ReportBroken(report_coordinator_capture_page, err)
		return result, fmt.Errorf("commit page: %w", err)
	}
	result.Inserted = merged.Inserted

	c.tel.ReportDebug(result.String())
	return result, nil
}

func (c *Coordinator) mark(ctx context.Context, marker Marker, index int, outcome Outcome) {
	err := marker.Mark(ctx, index, outcome)
	if err != nil {
		c.tel.ReportWarning(report_coordinator_mark, err, index, outcome.String())
	}
}
