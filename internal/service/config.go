package service

import (
	"fmt"
	"net/url"
	"time"
	devenv "txexport/dev/env"
	"txexport/internal/browser"
	"txexport/internal/enrich"
	"txexport/internal/extract"
	"txexport/internal/pagination"
	"txexport/lib/configutil"
	configlibsql "txexport/lib/configutil/libsql"
)

// EnvPrefix prefixes every environment override, e.g. TXEXPORT_BASE_URL.
const EnvPrefix = "TXEXPORT"

type BrowserConfig struct {
	Headless    bool   `json:"headless"`
	ExecPath    string `json:"exec_path" envconfig:"EXEC_PATH"`
	UserAgent   string `json:"user_agent" envconfig:"USER_AGENT"`
	UserDataDir string `json:"user_data_dir" envconfig:"USER_DATA_DIR"`
	// LoginTimeoutMs bounds the wait for the transactions list to show up
	// after navigating, which is when a manual sign-in happens.
	LoginTimeoutMs int `json:"login_timeout_ms" envconfig:"LOGIN_TIMEOUT_MS" validate:"gte=0"`
}

type EnrichmentConfig struct {
	// DetailPath is appended to the base url, `{id}` is replaced with the
	// order reference.
	DetailPath        string  `json:"detail_path" envconfig:"DETAIL_PATH"`
	DelayMs           int     `json:"delay_ms" envconfig:"DELAY_MS" validate:"gte=0"`
	RequestsPerSecond float64 `json:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gte=0"`
	UserAgent         string  `json:"user_agent" envconfig:"USER_AGENT"`
	// DumpDir receives every request/response pair when set.
	DumpDir string `json:"dump_dir" envconfig:"DUMP_DIR"`
}

type PaginationConfig struct {
	DeadlineMs      int `json:"deadline_ms" envconfig:"DEADLINE_MS" validate:"gte=0"`
	SettleMs        int `json:"settle_ms" envconfig:"SETTLE_MS" validate:"gte=0"`
	FallbackMs      int `json:"fallback_ms" envconfig:"FALLBACK_MS" validate:"gte=0"`
	ReadyAttempts   int `json:"ready_attempts" envconfig:"READY_ATTEMPTS" validate:"gte=0"`
	ReadyIntervalMs int `json:"ready_interval_ms" envconfig:"READY_INTERVAL_MS" validate:"gte=0"`
}

type Config struct {
	BaseUrl          string              `json:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	TransactionsPath string              `json:"transactions_path" envconfig:"TRANSACTIONS_PATH"`
	Storage          configlibsql.Struct `json:"storage"`
	Browser          BrowserConfig       `json:"browser"`
	Enrichment       EnrichmentConfig    `json:"enrichment"`
	Pagination       PaginationConfig    `json:"pagination"`
	Layout           extract.Layout      `json:"layout" ignored:"true"`
	Pages            int                 `json:"pages" envconfig:"PAGES" validate:"gte=0,lte=50"`
}

func DefaultConfig() Config {
	defaults := pagination.DefaultOptions()
	return Config{
		BaseUrl:          "https://www.amazon.com",
		TransactionsPath: "/cpe/yourpayments/transactions",
		Storage: configlibsql.Struct{
			File: "session.db",
		},
		Browser: BrowserConfig{
			LoginTimeoutMs: 5 * 60 * 1000,
		},
		Enrichment: EnrichmentConfig{
			DetailPath: enrich.DefaultDetailPath,
			DelayMs:    int(enrich.DefaultDelay / time.Millisecond),
			UserAgent:  enrich.DefaultUserAgent,
		},
		Pagination: PaginationConfig{
			DeadlineMs:      int(defaults.Deadline / time.Millisecond),
			SettleMs:        int(defaults.Settle / time.Millisecond),
			FallbackMs:      int(defaults.Fallback / time.Millisecond),
			ReadyAttempts:   defaults.ReadyAttempts,
			ReadyIntervalMs: int(defaults.ReadyInterval / time.Millisecond),
		},
		Layout: extract.DefaultLayout(),
	}
}

// LoadConfig reads path (and its .local override) over DefaultConfig, then
// applies TXEXPORT_* environment overrides. A missing file is fine as long
// as the result is valid.
func LoadConfig(path string) (Config, error) {
	return configutil.Load(path, EnvPrefix, DefaultConfig())
}

func (c Config) TransactionsUrl() (string, error) {
	base, err := url.Parse(c.BaseUrl)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.JoinPath(c.TransactionsPath).String(), nil
}

func (c Config) PaginationOptions() pagination.Options {
	opts := pagination.DefaultOptions()
	opts.Deadline = millis(c.Pagination.DeadlineMs)
	opts.Settle = millis(c.Pagination.SettleMs)
	opts.Fallback = millis(c.Pagination.FallbackMs)
	opts.ReadyAttempts = c.Pagination.ReadyAttempts
	opts.ReadyInterval = millis(c.Pagination.ReadyIntervalMs)
	return opts
}

func (c Config) BrowserOptions() (browser.Options, error) {
	profile, err := devenv.ResolvePath(c.Browser.UserDataDir)
	if err != nil {
		return browser.Options{}, fmt.Errorf("resolve browser profile: %w", err)
	}
	return browser.Options{
		Headless:    c.Browser.Headless,
		ExecPath:    c.Browser.ExecPath,
		UserAgent:   c.Browser.UserAgent,
		UserDataDir: profile,
		Layout:      c.Layout,
	}, nil
}

func (c Config) LoginTimeout() time.Duration {
	return millis(c.Browser.LoginTimeoutMs)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
