package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"txexport/internal/capture"
	"txexport/internal/components/assert"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/internal/ledger"
	"txexport/internal/pagination"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_service_start   = "service.start"
	report_service_cookies = "service.cookies"
)

var (
	// ErrCaptureInFlight is returned when a capture is triggered while
	// another one has not finished yet.
	ErrCaptureInFlight = errors.New("a capture is already in progress")
	ErrNoLivePage      = errors.New("no live page attached")
)

// CookieSource supplies the sign-in cookies of the live page.
type CookieSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// CookieSink accepts cookies for requests made outside of the live page,
// see enrich.Fetcher.
type CookieSink interface {
	SetCookies(cookies []*http.Cookie)
}

// Service serializes every capture trigger and owns the session store.
type Service struct {
	store       *ledger.Store
	coordinator *capture.Coordinator
	page        pagination.Page
	cookies     CookieSink
	opts        pagination.Options
	time        chrono.API
	tel         telemetry.API

	busy atomic.Bool
}

type serviceConfig struct {
	page    pagination.Page
	cookies CookieSink
	opts    *pagination.Options
	time    chrono.API
	tel     telemetry.API
}

type Option func(cfg *serviceConfig)

// WithPage attaches the live page used by CaptureCurrentPage and
// CapturePages.
func WithPage(page pagination.Page) Option {
	return func(cfg *serviceConfig) {
		cfg.page = page
	}
}

// WithCookieSink passes the cookies of the live page (when it has any) on to
// sink before every capture.
func WithCookieSink(sink CookieSink) Option {
	return func(cfg *serviceConfig) {
		cfg.cookies = sink
	}
}

func WithPaginationOptions(opts pagination.Options) Option {
	return func(cfg *serviceConfig) {
		cfg.opts = &opts
	}
}

func WithCustomTimeAPI(time chrono.API) Option {
	return func(cfg *serviceConfig) {
		cfg.time = time
	}
}

func WithCustomTelemetryAPI(tel telemetry.API) Option {
	return func(cfg *serviceConfig) {
		cfg.tel = tel
	}
}

func New(store *ledger.Store, coordinator *capture.Coordinator, options ...Option) *Service {
	assert.NotNil(store)
	assert.NotNil(coordinator)

	cfg := serviceConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	s := &Service{
		store:       store,
		coordinator: coordinator,
		page:        cfg.page,
		cookies:     cfg.cookies,
		opts:        pagination.DefaultOptions(),
		time:        chrono.Local(),
		tel:         telemetry.SlogAPI{},
	}
	if cfg.opts != nil {
		s.opts = *cfg.opts
	}
	if cfg.time != nil {
		s.time = cfg.time
	}
	if cfg.tel != nil {
		s.tel = cfg.tel
	}
	s.tel = telemetry.NewScopedAPI("service", s.tel)

	return s
}

func (s *Service) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrCaptureInFlight
	}
	return nil
}

func (s *Service) release() {
	s.busy.Store(false)
}

// Start loads the session and discards a multi-page run an earlier process
// left behind. It reports whether one was discarded.
func (s *Service) Start(ctx context.Context) (bool, error) {
	discarded, err := pagination.DiscardStale(ctx, s.store, s.tel)
	if err != nil {
		s.tel.ReportBroken(report_service_start, err)
		return false, fmt.Errorf("start: %w", err)
	}
	return discarded, nil
}

// CaptureDocument captures a single page that is not attached to a live
// browser, e.g. a saved copy of it.
func (s *Service) CaptureDocument(ctx context.Context, doc *goquery.Document) (capture.Result, error) {
	err := s.acquire()
	if err != nil {
		return capture.Result{}, err
	}
	defer s.release()

	return s.coordinator.CapturePage(ctx, doc, capture.NopMarker{}, nil)
}

// CaptureCurrentPage captures whatever the live page currently shows.
func (s *Service) CaptureCurrentPage(ctx context.Context) (capture.Result, error) {
	if s.page == nil {
		return capture.Result{}, ErrNoLivePage
	}
	err := s.acquire()
	if err != nil {
		return capture.Result{}, err
	}
	defer s.release()

	s.syncCookies(ctx)
	doc, err := s.page.Snapshot(ctx)
	if err != nil {
		return capture.Result{}, fmt.Errorf("snapshot page: %w", err)
	}
	return s.coordinator.CapturePage(ctx, doc, s.page, nil)
}

// CapturePages walks up to pages pages of the live page, starting with the
// current one. Zero uses the page count stored in the session.
func (s *Service) CapturePages(ctx context.Context, pages int) (pagination.Summary, error) {
	if s.page == nil {
		return pagination.Summary{}, ErrNoLivePage
	}
	err := s.acquire()
	if err != nil {
		return pagination.Summary{}, err
	}
	defer s.release()

	if pages == 0 {
		err = s.store.Load(ctx)
		if err != nil {
			return pagination.Summary{}, err
		}
		pages = s.store.Session().PagesToCapture
	}

	s.syncCookies(ctx)
	machine := pagination.NewMachine(s.page, s.coordinator, s.store, s.time, s.tel, s.opts)
	return machine.Run(ctx, pages)
}

// syncCookies is best effort, enrichment degrades to empty item lists
// without them.
func (s *Service) syncCookies(ctx context.Context) {
	if s.cookies == nil {
		return
	}
	source, ok := s.page.(CookieSource)
	if !ok {
		return
	}
	cookies, err := source.Cookies(ctx)
	if err != nil {
		s.tel.ReportWarning(report_service_cookies, err)
		return
	}
	s.cookies.SetCookies(cookies)
}

// Session returns the persisted session as it is now.
func (s *Service) Session(ctx context.Context) (ledger.Session, error) {
	err := s.store.Load(ctx)
	if err != nil {
		return ledger.Session{}, err
	}
	return s.store.Session(), nil
}

// SetPages stores how many pages CapturePages walks by default, clamped to
// the supported range.
func (s *Service) SetPages(ctx context.Context, pages int) (int, error) {
	return s.store.SetPagesToCapture(ctx, pages)
}

// RequestStop asks a running multi-page capture, possibly in another
// process, to stop before its next page.
func (s *Service) RequestStop(ctx context.Context) error {
	return s.store.RequestStop(ctx)
}

// Clear destroys every captured record. It is refused while a capture runs.
func (s *Service) Clear(ctx context.Context) error {
	err := s.acquire()
	if err != nil {
		return err
	}
	defer s.release()
	return s.store.Clear(ctx)
}
