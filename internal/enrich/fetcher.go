package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"txexport/internal/components/assert"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("txexport/internal/enrich")

const report_fetcher_fetch = "fetcher.fetch"

const (
	DefaultDetailPath = "/order-detail?id={id}"
	DefaultDelay      = 250 * time.Millisecond
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type Options struct {
	BaseUrl string
	// DetailPath is appended to BaseUrl, `{id}` is replaced with the
	// escaped order reference.
	DetailPath string
	// Delay is waited after every detail request.
	Delay time.Duration
	// RequestsPerSecond caps the request rate on top of Delay, zero disables it.
	RequestsPerSecond float64
	UserAgent         string
	// Dump receives every request/response pair when set.
	Dump restyutil.InstrumentOutput
}

// Fetcher looks up the order detail page of a transaction and lists the
// products on it.
type Fetcher struct {
	baseUrl    *url.URL
	http       *resty.Client
	detailPath string
	delay      time.Duration

	time chrono.API
	tel  telemetry.API
}

func NewFetcher(opts Options, time chrono.API, tel telemetry.API) (*Fetcher, error) {
	assert.NotEmptyStr(opts.BaseUrl)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("enrich", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.DetailPath == "" {
		opts.DetailPath = DefaultDetailPath
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	if opts.RequestsPerSecond > 0 {
		// max burst of 1 keeps lookups strictly spaced out
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, tel)
	restyutil.InstrumentClient(client, opts.Dump)

	return &Fetcher{
		baseUrl:    baseUrl,
		http:       client,
		detailPath: opts.DetailPath,
		delay:      opts.Delay,
		time:       time,
		tel:        tel,
	}, nil
}

// SetCookies makes lookups carry the given session cookies, usually the ones
// of the browser the transactions page was loaded in.
func (f *Fetcher) SetCookies(cookies []*http.Cookie) {
	f.http.GetClient().Jar.SetCookies(f.baseUrl, cookies)
}

func (f *Fetcher) detailUrl(reference string) string {
	return strings.ReplaceAll(f.detailPath, "{id}", url.QueryEscape(reference))
}

// Fetch returns the product descriptions listed for reference. It never
// fails: an empty reference returns nothing without a request, a failed
// request is reported and returns nothing.
func (f *Fetcher) Fetch(ctx context.Context, reference string) []string {
	if reference == "" {
		return []string{}
	}

	ctx, span := tracer.Start(ctx, "enrich:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference))

	items, err := f.fetch(ctx, reference)

	// the delay follows every request, failed or not
	sleepErr := f.time.Sleep(ctx, f.delay)
	if sleepErr != nil {
		f.tel.ReportDebug("inter-request delay interrupted", sleepErr)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch order details")
		f.tel.ReportBroken(report_fetcher_fetch, err, reference)
		return []string{}
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items
}

func (f *Fetcher) fetch(ctx context.Context, reference string) ([]string, error) {
	res, err := f.http.R().
		SetContext(ctx).
		Get(f.detailUrl(reference))
	if err != nil {
		return nil, fmt.Errorf("get order detail: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get order detail: unexpected status %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse order detail: %w", err)
	}
	return ParseItems(doc), nil
}
