package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"txexport/lib/configutil"

	"go.opentelemetry.io/otel"
)

// Telemetry holds the otel providers installed by Setup.
type Telemetry struct {
	shutdown []func(context.Context) error
}

// Shutdown flushes and stops every installed provider, a zero Telemetry is a no-op.
func (t Telemetry) Shutdown(ctx context.Context) error {
	errlist := []error{}
	for _, fn := range t.shutdown {
		err := fn(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}

// SetupForTesting sets up telemetry for a test binary when a telemetry.json5
// can be found, otherwise it does nothing.
func SetupForTesting(serviceName string) func() {
	tel, err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		return func() {}
	}
	return func() {
		tel.Shutdown(context.Background())
	}
}

// SetupFromEnv searches up the filesystem from the cwd for a telemetry.json5
// and sets up telemetry with it. Without one, os.ErrNotExist is returned and
// nothing is installed.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	cfg, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("telemetry.json5 not found, tracing disabled")
		return Telemetry{}, err
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, cfg)
}

// Setup installs a global provider for every enabled signal in cfg.
func Setup(ctx context.Context, serviceName string, cfg Config) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	if !cfg.Traces.Enabled() && !cfg.Metrics.Enabled() {
		slog.Warn("telemetry.json5 has no endpoints, telemetry disabled")
		return Telemetry{}, nil
	}

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tel := Telemetry{}
	if cfg.Traces.Enabled() {
		tracerProvider, err := newTraceProvider(ctx, r, cfg)
		if err != nil {
			return Telemetry{}, fmt.Errorf("trace provider: %w", err)
		}
		otel.SetTracerProvider(tracerProvider)
		tel.shutdown = append(tel.shutdown, tracerProvider.Shutdown)
	}
	if cfg.Metrics.Enabled() {
		meterProvider, err := newMetricProvider(ctx, r, cfg)
		if err != nil {
			tel.Shutdown(ctx)
			return Telemetry{}, fmt.Errorf("metric provider: %w", err)
		}
		otel.SetMeterProvider(meterProvider)
		tel.shutdown = append(tel.shutdown, meterProvider.Shutdown)
	}
	return tel, nil
}

// Optional is for binaries that run fine without telemetry: a missing
// telemetry.json5 is silent, any other setup error is logged and telemetry
// stays disabled.
//
//	tel := telemetry.Optional(telemetry.SetupFromEnv(ctx, "txexport"))
func Optional(tel Telemetry, err error) Telemetry {
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup telemetry, continuing without it", "err", err.Error())
	}
	return tel
}
