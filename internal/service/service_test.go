package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"txexport/internal/capture"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/internal/extract"
	"txexport/internal/ledger"
	"txexport/internal/pagination"
	"txexport/lib/testutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

var samplePage = testutil.Page{
	Groups: []testutil.PageGroup{
		{
			Date: "October 3, 2024",
			Items: []testutil.PageItem{
				{PaymentMethod: "Visa ****1234", Amount: "-$27.91", Reference: "111-2222222-3333333", Status: "Charged"},
				{PaymentMethod: "Visa ****1234", Amount: "-$5.00"},
			},
		},
	},
}

// livePage always shows the same page, Snapshot blocks while gate is set.
type livePage struct {
	*capture.RecordingMarker

	page    testutil.Page
	gate    chan struct{}
	entered chan struct{}
	cookies []*http.Cookie
}

func (p *livePage) Snapshot(ctx context.Context) (*goquery.Document, error) {
	if p.gate != nil {
		p.entered <- struct{}{}
		<-p.gate
	}
	return goquery.NewDocumentFromReader(strings.NewReader(p.page.Render()))
}

func (p *livePage) Activate(context.Context, pagination.Control) error {
	return errors.New("single page")
}

func (p *livePage) Watch(context.Context) (pagination.Watch, error) {
	return nil, errors.New("single page")
}

func (p *livePage) Cookies(context.Context) ([]*http.Cookie, error) {
	return p.cookies, nil
}

type fakeEnricher struct {
	mu      sync.Mutex
	cookies []*http.Cookie
}

func (f *fakeEnricher) Fetch(context.Context, string) []string {
	return []string{"Widget"}
}

func (f *fakeEnricher) SetCookies(cookies []*http.Cookie) {
	f.mu.Lock()
	f.cookies = cookies
	f.mu.Unlock()
}

type harness struct {
	store    *ledger.Store
	enricher *fakeEnricher
	tel      *telemetry.Recorder
	clock    *chrono.FixedImpl
}

func newHarness() harness {
	clock := chrono.NewFixedImpl(time.Date(2024, time.October, 5, 0, 0, 0, 0, time.UTC))
	tel := telemetry.NewRecorder()
	return harness{
		store:    ledger.NewStore(ledger.NewMemoryStorage(), clock, tel),
		enricher: &fakeEnricher{},
		tel:      tel,
		clock:    clock,
	}
}

func (h harness) service(options ...Option) *Service {
	coordinator := capture.NewCoordinator(
		extract.NewExtractor(extract.DefaultLayout(), h.clock, h.tel),
		h.enricher,
		h.store,
		&capture.RecordingSink{},
		h.tel,
	)
	options = append(options, WithCustomTimeAPI(h.clock), WithCustomTelemetryAPI(h.tel))
	return New(h.store, coordinator, options...)
}

func document(t *testing.T, page testutil.Page) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Render()))
	require.NoError(t, err)
	return doc
}

func TestCaptureDocument(t *testing.T) {
	h := newHarness()
	svc := h.service()
	ctx := context.Background()

	result, err := svc.CaptureDocument(ctx, document(t, samplePage))
	require.NoError(t, err)
	require.Equal(t, 2, result.Captured)
	require.True(t, result.NewRecords())

	// capturing the same page again only skips
	result, err = svc.CaptureDocument(ctx, document(t, samplePage))
	require.NoError(t, err)
	require.Equal(t, 0, result.Captured)
	require.Equal(t, 2, result.Skipped)
	require.False(t, result.NewRecords())

	session, err := svc.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, session.Total)
	require.Equal(t, 1, session.Captures)
}

func TestCaptureRequiresLivePage(t *testing.T) {
	svc := newHarness().service()
	_, err := svc.CaptureCurrentPage(context.Background())
	require.ErrorIs(t, err, ErrNoLivePage)
	_, err = svc.CapturePages(context.Background(), 2)
	require.ErrorIs(t, err, ErrNoLivePage)
}

func TestCaptureCurrentPage(t *testing.T) {
	h := newHarness()
	page := &livePage{
		RecordingMarker: capture.NewRecordingMarker(),
		page:            samplePage,
		cookies:         []*http.Cookie{{Name: "session-id", Value: "1"}},
	}
	svc := h.service(WithPage(page), WithCookieSink(h.enricher))

	result, err := svc.CaptureCurrentPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Captured)
	require.Len(t, page.Marks(), 2)
	require.Equal(t, page.cookies, h.enricher.cookies)
}

func TestCapturePagesUsesStoredCount(t *testing.T) {
	h := newHarness()
	page := &livePage{RecordingMarker: capture.NewRecordingMarker(), page: samplePage}
	svc := h.service(WithPage(page))
	ctx := context.Background()

	pages, err := svc.SetPages(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, pages)

	summary, err := svc.CapturePages(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, pagination.Completed, summary.State)
	require.Equal(t, 1, summary.TotalPages)
	require.Equal(t, 2, summary.Progress.Captured)

	// a second page cannot be reached on a single page
	summary, err = svc.CapturePages(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, pagination.Aborted, summary.State)
	require.ErrorIs(t, summary.Cause, pagination.ErrNoNavigationControl)
	require.Equal(t, 2, summary.Progress.Skipped)
}

func TestCaptureInFlight(t *testing.T) {
	h := newHarness()
	page := &livePage{
		RecordingMarker: capture.NewRecordingMarker(),
		page:            samplePage,
		gate:            make(chan struct{}),
		entered:         make(chan struct{}),
	}
	svc := h.service(WithPage(page))
	ctx := context.Background()

	done := make(chan error)
	go func() {
		_, err := svc.CaptureCurrentPage(ctx)
		done <- err
	}()
	<-page.entered

	_, err := svc.CaptureCurrentPage(ctx)
	require.ErrorIs(t, err, ErrCaptureInFlight)
	_, err = svc.CaptureDocument(ctx, document(t, samplePage))
	require.ErrorIs(t, err, ErrCaptureInFlight)
	require.ErrorIs(t, svc.Clear(ctx), ErrCaptureInFlight)

	close(page.gate)
	require.NoError(t, <-done)

	// released once the first capture is done
	page.gate = nil
	result, err := svc.CaptureCurrentPage(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Skipped)
}

func TestStartDiscardsStaleRun(t *testing.T) {
	h := newHarness()
	svc := h.service()
	ctx := context.Background()

	_, err := h.store.StartMultiPageRun(ctx, 4)
	require.NoError(t, err)

	discarded, err := svc.Start(ctx)
	require.NoError(t, err)
	require.True(t, discarded)

	session, err := svc.Session(ctx)
	require.NoError(t, err)
	require.Nil(t, session.MultiPageRun)

	discarded, err = svc.Start(ctx)
	require.NoError(t, err)
	require.False(t, discarded)
}

func TestSettings(t *testing.T) {
	h := newHarness()
	svc := h.service()
	ctx := context.Background()

	pages, err := svc.SetPages(ctx, 80)
	require.NoError(t, err)
	require.Equal(t, ledger.MaxPagesToCapture, pages)

	require.NoError(t, svc.RequestStop(ctx))
	session, err := svc.Session(ctx)
	require.NoError(t, err)
	require.True(t, session.StopRequested)
	require.Equal(t, ledger.MaxPagesToCapture, session.PagesToCapture)

	_, err = svc.CaptureDocument(ctx, document(t, samplePage))
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx))
	session, err = svc.Session(ctx)
	require.NoError(t, err)
	require.Empty(t, session.Records)
	require.Equal(t, ledger.MinPagesToCapture, session.PagesToCapture)
}
