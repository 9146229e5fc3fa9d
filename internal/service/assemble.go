package service

import (
	"database/sql"
	"fmt"
	"txexport/internal/capture"
	"txexport/internal/components/chrono"
	"txexport/internal/components/telemetry"
	"txexport/internal/enrich"
	"txexport/internal/extract"
	"txexport/internal/ledger"
	"txexport/lib/restyutil"
)

// Components are the long lived pieces a Service is built from.
type Components struct {
	DB          *sql.DB
	Store       *ledger.Store
	Fetcher     *enrich.Fetcher
	Coordinator *capture.Coordinator
}

// Assemble opens the session storage described by cfg and wires the capture
// pipeline on top of it. sink receives live progress.
func Assemble(cfg Config, sink capture.ProgressSink, time chrono.API, tel telemetry.API) (Components, error) {
	database, err := cfg.Storage.OpenDB()
	if err != nil {
		return Components{}, fmt.Errorf("open storage: %w", err)
	}
	storage, err := ledger.NewSqliteStorage(database, time)
	if err != nil {
		database.Close()
		return Components{}, fmt.Errorf("prepare storage: %w", err)
	}
	store := ledger.NewStore(storage, time, tel)

	var dump restyutil.InstrumentOutput
	if cfg.Enrichment.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.Enrichment.DumpDir)
		if err != nil {
			database.Close()
			return Components{}, fmt.Errorf("prepare dump dir: %w", err)
		}
		dump = output
	}

	fetcher, err := enrich.NewFetcher(enrich.Options{
		BaseUrl:           cfg.BaseUrl,
		DetailPath:        cfg.Enrichment.DetailPath,
		Delay:             millis(cfg.Enrichment.DelayMs),
		RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
		UserAgent:         cfg.Enrichment.UserAgent,
		Dump:              dump,
	}, time, tel)
	if err != nil {
		database.Close()
		return Components{}, fmt.Errorf("create enrichment fetcher: %w", err)
	}

	coordinator := capture.NewCoordinator(
		extract.NewExtractor(cfg.Layout, time, tel),
		fetcher,
		store,
		sink,
		tel,
	)

	return Components{
		DB:          database,
		Store:       store,
		Fetcher:     fetcher,
		Coordinator: coordinator,
	}, nil
}

func (c Components) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
