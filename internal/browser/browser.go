// Package browser drives a Chrome tab holding the live transactions page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"txexport/internal/capture"
	"txexport/internal/components/assert"
	"txexport/internal/components/telemetry"
	"txexport/internal/extract"
	"txexport/internal/pagination"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	report_session_cookies = "session.cookies"
	report_session_cancel  = "session.cancel-watch"
)

// DefaultContainer is the region of the page that is replaced when another
// page of transactions loads.
const DefaultContainer = `form[action*="transactions"], .pmts-widget-section`

var ErrElementMissing = errors.New("element is no longer on the page")

type Options struct {
	Headless bool
	// ExecPath overrides the Chrome binary, chromedp looks one up otherwise.
	ExecPath  string
	UserAgent string
	// UserDataDir keeps the browser profile, and with it the sign-in,
	// between runs.
	UserDataDir string
	// Container is the region watched for new content.
	Container string
	Layout    extract.Layout
}

var _ pagination.Page = (*Session)(nil)

// Session is a single Chrome tab.
type Session struct {
	ctx       context.Context
	cancel    func()
	container string
	layout    extract.Layout
	tel       telemetry.API
}

// Open launches Chrome. The browser lives until Close is called, not for
// the lifetime of ctx.
func Open(ctx context.Context, opts Options, tel telemetry.API) (*Session, error) {
	assert.NotNil(tel)

	if opts.Container == "" {
		opts.Container = DefaultContainer
	}
	if opts.Layout.LineItem == "" {
		opts.Layout = extract.DefaultLayout()
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// the first Run starts the browser
	err := chromedp.Run(browserCtx, network.Enable())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Session{
		ctx:       browserCtx,
		cancel:    cancel,
		container: opts.Container,
		layout:    opts.Layout,
		tel:       telemetry.NewScopedAPI("browser", tel),
	}, nil
}

func (s *Session) Close() {
	s.cancel()
}

// run executes actions on the tab, they are abandoned when ctx ends.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, chromedp.Navigate(url))
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until selector matches a visible element, use a ctx
// deadline to bound it. This is how a run waits for a manual sign-in.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var location string
	err := s.run(ctx, chromedp.Location(&location))
	return location, err
}

func (s *Session) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (s *Session) Activate(ctx context.Context, control pagination.Control) error {
	var clicked bool
	err := s.run(ctx, chromedp.Evaluate(clickScript(control.Selector, control.Index), &clicked))
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%s #%d: %w", control.Selector, control.Index, ErrElementMissing)
	}
	return nil
}

// Mark outlines the index-th line item of the page in the color of outcome.
func (s *Session) Mark(ctx context.Context, index int, outcome capture.Outcome) error {
	var marked bool
	err := s.run(ctx, chromedp.Evaluate(markScript(s.layout.LineItem, index, outcome), &marked))
	if err != nil {
		return err
	}
	if !marked {
		return fmt.Errorf("line item #%d: %w", index, ErrElementMissing)
	}
	return nil
}

// Watch arms a content watch on the page container. It must be armed before
// the next page control is activated.
func (s *Session) Watch(ctx context.Context) (pagination.Watch, error) {
	content := s.layout.DateGroup + ", " + s.layout.LineItem

	var armed bool
	err := s.run(ctx, chromedp.Evaluate(armWatchScript(s.container, content), &armed))
	if err != nil {
		return nil, fmt.Errorf("arm content watch: %w", err)
	}
	if !armed {
		return nil, fmt.Errorf("arm content watch on %s: %w", s.container, ErrElementMissing)
	}
	return contentWatch{session: s}, nil
}

type contentWatch struct {
	session *Session
}

func (w contentWatch) Wait(ctx context.Context) error {
	var changed bool
	err := w.session.run(ctx, chromedp.Evaluate(
		awaitWatchScript,
		&changed,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	))
	if err != nil {
		w.session.tel.ReportDebug("content watch ended", "err", err)
	}
	return err
}

func (w contentWatch) Cancel() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var ok bool
	err := w.session.run(ctx, chromedp.Evaluate(cancelWatchScript, &ok))
	if err != nil {
		w.session.tel.ReportWarning(report_session_cancel, err)
	}
}

// Cookies returns the cookies of the page currently loaded, so lookups made
// outside of the browser share its sign-in.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		s.tel.ReportBroken(report_session_cookies, err)
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return convertCookies(cookies), nil
}

func convertCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		switch c.SameSite {
		case network.CookieSameSiteStrict:
			cookie.SameSite = http.SameSiteStrictMode
		case network.CookieSameSiteLax:
			cookie.SameSite = http.SameSiteLaxMode
		case network.CookieSameSiteNone:
			cookie.SameSite = http.SameSiteNoneMode
		}
		out = append(out, cookie)
	}
	return out
}
