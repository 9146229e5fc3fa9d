package commands

import (
	"fmt"
	"io"
	"sync"
	"txexport/internal/capture"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/internal/service"
	"txexport/lib/util/serviceutil"
)

func loadConfig() service.Config {
	cfg, err := service.LoadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to load config", err)
	}
	return cfg
}

// openService opens the session storage and builds a Service on top of it.
// Cookies of a live page are handed to the enrichment fetcher. The returned
// components must be closed by the caller.
func openService(cfg service.Config, sink capture.ProgressSink, options ...service.Option) (*service.Service, service.Components) {
	if sink == nil {
		sink = capture.SinkFunc(func(capture.Progress) {})
	}
	components, err := service.Assemble(cfg, sink, chrono.Local(), telemetry.SlogAPI{})
	if err != nil {
		serviceutil.Fatal("failed to open session storage", err)
	}
	options = append(
		options,
		service.WithCookieSink(components.Fetcher),
		service.WithCustomTelemetryAPI(telemetry.SlogAPI{}),
	)
	return service.New(components.Store, components.Coordinator, options...), components
}

// statusLine keeps rewriting a single terminal line with the latest
// progress.
type statusLine struct {
	out io.Writer

	mu      sync.Mutex
	written bool
}

func newStatusLine(out io.Writer) *statusLine {
	return &statusLine{out: out}
}

func (s *statusLine) Update(progress capture.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r\033[K%s", progress.String())
	s.written = true
}

// Done ends the status line so later output starts on a fresh line.
func (s *statusLine) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		fmt.Fprintln(s.out)
		s.written = false
	}
}
