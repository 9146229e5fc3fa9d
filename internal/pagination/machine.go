package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"txexport/internal/capture"
	"txexport/internal/components/assert"
	"txexport/internal/components/chrono"
	"txexport/internal/components/race"
	"txexport/internal/components/telemetry"
	"txexport/internal/ledger"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("txexport/internal/pagination")

const (
	report_machine_ready      = "machine.ready"
	report_machine_navigate   = "machine.navigate"
	report_machine_transition = "machine.transition"
	report_machine_finish     = "machine.finish"
	report_machine_stale      = "machine.stale"
)

var (
	ErrNoNavigationControl = errors.New("no next page control found")
	ErrStopRequested       = errors.New("stop requested")
)

type State int

const (
	Idle State = iota
	CapturingPage
	AwaitingTransition
	Aborted
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CapturingPage:
		return "capturing-page"
	case AwaitingTransition:
		return "awaiting-transition"
	case Aborted:
		return "aborted"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Watch is an armed subscription to content changes of the live page.
type Watch interface {
	// Wait blocks until new page content is detected or ctx ends.
	Wait(ctx context.Context) error
	Cancel()
}

// Page is the live document a multi-page run walks through.
//
// note: fault injection point
type Page interface {
	capture.Marker
	Snapshot(ctx context.Context) (*goquery.Document, error)
	Activate(ctx context.Context, control Control) error
	Watch(ctx context.Context) (Watch, error)
}

// Capturer processes a single page, see capture.Coordinator.
type Capturer interface {
	CapturePage(ctx context.Context, doc *goquery.Document, marker capture.Marker, page *capture.PageInfo) (capture.Result, error)
}

type Options struct {
	// Deadline bounds the wait for new content after activating the control.
	Deadline time.Duration
	// Settle is waited after every transition before the next capture.
	Settle time.Duration
	// Fallback is waited instead of the race when no watch can be armed.
	Fallback      time.Duration
	ReadyAttempts int
	ReadyInterval time.Duration
	Strategies    []Strategy
}

func DefaultOptions() Options {
	return Options{
		Deadline:      10 * time.Second,
		Settle:        time.Second,
		Fallback:      3 * time.Second,
		ReadyAttempts: 20,
		ReadyInterval: 500 * time.Millisecond,
		Strategies:    DefaultStrategies(),
	}
}

// Summary describes a finished multi-page run.
type Summary struct {
	RunID         uuid.UUID
	State         State
	PagesCaptured int
	TotalPages    int
	Progress      capture.Progress
	Inserted      int
	// Cause is why an aborted run ended.
	Cause error
}

func (s Summary) String() string {
	out := fmt.Sprintf(
		"%s after %d/%d pages: %d captured, %d failed, %d skipped",
		s.State, s.PagesCaptured, s.TotalPages,
		s.Progress.Captured, s.Progress.Failed, s.Progress.Skipped,
	)
	if s.Cause != nil {
		out += fmt.Sprintf(" (%v)", s.Cause)
	}
	return out
}

func (s Summary) record() ledger.RunSummary {
	reason := ""
	if s.Cause != nil {
		reason = s.Cause.Error()
	}
	return ledger.RunSummary{
		ID:            s.RunID,
		Outcome:       s.State.String(),
		Reason:        reason,
		PagesCaptured: s.PagesCaptured,
		TotalPages:    s.TotalPages,
		Captured:      s.Progress.Captured,
		Failed:        s.Progress.Failed,
		Skipped:       s.Progress.Skipped,
	}
}

func (s *Summary) add(result capture.Result) {
	s.Progress.Captured += result.Captured
	s.Progress.Failed += result.Failed
	s.Progress.Skipped += result.Skipped
	s.Progress.Total += result.Total
	s.Progress.CurrentPage = result.CurrentPage
	s.Progress.TotalPages = result.TotalPages
	s.Inserted += result.Inserted
}

// Machine walks a live page through a bounded number of result pages,
// capturing each one before moving on.
type Machine struct {
	page     Page
	capturer Capturer
	store    *ledger.Store
	time     chrono.API
	tel      telemetry.API
	opts     Options

	mu    sync.Mutex
	state State
}

func NewMachine(
	page Page,
	capturer Capturer,
	store *ledger.Store,
	time chrono.API,
	tel telemetry.API,
	opts Options,
) *Machine {
	assert.NotNil(page)
	assert.NotNil(capturer)
	assert.NotNil(store)
	assert.NotNil(time)
	assert.NotNil(tel)

	if len(opts.Strategies) == 0 {
		opts.Strategies = DefaultStrategies()
	}
	if opts.ReadyAttempts < 1 {
		opts.ReadyAttempts = 1
	}

	return &Machine{
		page:     page,
		capturer: capturer,
		store:    store,
		time:     time,
		tel:      telemetry.NewScopedAPI("pagination", tel),
		opts:     opts,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// DiscardStale drops a multi-page run left behind by an earlier process. An
// interrupted run is never resumed. It reports whether a run was discarded.
func (m *Machine) DiscardStale(ctx context.Context) (bool, error) {
	m.setState(Idle)
	return DiscardStale(ctx, m.store, m.tel)
}

// DiscardStale is Machine.DiscardStale for callers without a live page.
func DiscardStale(ctx context.Context, store *ledger.Store, tel telemetry.API) (bool, error) {
	err := store.Load(ctx)
	if err != nil {
		return false, err
	}
	stale := store.Session().MultiPageRun
	if stale == nil {
		return false, nil
	}

	tel.ReportWarning(
		report_machine_stale,
		"discarding interrupted multi-page run",
		stale.ID.String(), stale.CurrentPage, stale.TotalPages,
	)
	err = store.ClearMultiPageRun(ctx)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Run captures up to totalPages pages, starting with the one currently
// loaded. Page level failures end the run in Aborted and are reported
// through Summary.Cause, pages committed before the failure are kept. The
// returned error is only set when the run could not be started.
func (m *Machine) Run(ctx context.Context, totalPages int) (Summary, error) {
	ctx, span := tracer.Start(ctx, "pagination:Run")
	defer span.End()

	totalPages = ledger.ClampPages(totalPages)
	span.SetAttributes(attribute.Int("total_pages", totalPages))

	run, err := m.store.StartMultiPageRun(ctx, totalPages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start run")
		m.setState(Aborted)
		return Summary{State: Aborted, TotalPages: totalPages, Cause: err}, err
	}

	summary := Summary{
		RunID:      run.ID,
		TotalPages: totalPages,
	}
	current := run.CurrentPage

	for {
		m.setState(CapturingPage)

		doc, err := m.awaitReady(ctx)
		if err != nil {
			return m.finish(ctx, summary, Aborted, err), nil
		}

		result, err := m.capturer.CapturePage(ctx, doc, m.page, &capture.PageInfo{
			CurrentPage: current,
			TotalPages:  totalPages,
		})
		summary.add(result)
		if err != nil {
			span.RecordError(err)
			return m.finish(ctx, summary, Aborted, err), nil
		}
		summary.PagesCaptured++
		m.tel.ReportDebug(result.String())

		if current >= totalPages {
			return m.finish(ctx, summary, Completed, nil), nil
		}

		m.setState(AwaitingTransition)
		err = m.transition(ctx, doc)
		if err != nil {
			span.RecordError(err)
			return m.finish(ctx, summary, Aborted, err), nil
		}

		current++
		err = m.store.AdvanceMultiPageRun(ctx, current)
		if err != nil {
			return m.finish(ctx, summary, Aborted, err), nil
		}

		err = m.time.Sleep(ctx, m.opts.Settle)
		if err != nil {
			return m.finish(ctx, summary, Aborted, err), nil
		}
	}
}

// awaitReady polls the page until its pagination widget has rendered. The
// stop flag is checked before every attempt. Once the attempts run out the
// last snapshot is used as is.
func (m *Machine) awaitReady(ctx context.Context) (*goquery.Document, error) {
	for attempt := 1; ; attempt++ {
		stop, err := m.store.StopRequested(ctx)
		if err != nil {
			return nil, err
		}
		if stop {
			return nil, ErrStopRequested
		}

		doc, err := m.page.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot page: %w", err)
		}
		if PaginationReady(doc) {
			return doc, nil
		}
		if attempt >= m.opts.ReadyAttempts {
			m.tel.ReportWarning(report_machine_ready, "pagination not ready, continuing anyway", attempt)
			return doc, nil
		}

		err = m.time.Sleep(ctx, m.opts.ReadyInterval)
		if err != nil {
			return nil, err
		}
	}
}

// transition activates the next page control found on doc and waits for the
// page to change. A deadline is not a failure, the page is assumed to have
// advanced.
func (m *Machine) transition(ctx context.Context, doc *goquery.Document) error {
	control, ok := FindNextControl(doc, m.opts.Strategies)
	if !ok {
		m.tel.ReportBroken(report_machine_navigate, ErrNoNavigationControl)
		return ErrNoNavigationControl
	}
	m.tel.ReportDebug("next page control found", "strategy", control.Strategy, "index", control.Index)

	watch, err := m.page.Watch(ctx)
	if err != nil {
		m.tel.ReportWarning(report_machine_transition, "could not watch for new content", err)
		return m.blindTransition(ctx, control)
	}
	defer watch.Cancel()

	err = m.activate(ctx, control)
	if err != nil {
		return err
	}

	outcome, err := race.FirstOf(ctx, watch.Wait, m.opts.Deadline)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.tel.ReportWarning(report_machine_transition, "content watch failed", err)
		return m.time.Sleep(ctx, m.opts.Fallback)
	}
	if outcome == race.Deadline {
		m.tel.ReportWarning(
			report_machine_transition,
			"no new content before deadline, assuming the page advanced",
			m.opts.Deadline.String(),
		)
	}
	return nil
}

func (m *Machine) blindTransition(ctx context.Context, control Control) error {
	err := m.activate(ctx, control)
	if err != nil {
		return err
	}
	return m.time.Sleep(ctx, m.opts.Fallback)
}

func (m *Machine) activate(ctx context.Context, control Control) error {
	err := m.page.Activate(ctx, control)
	if err != nil {
		m.tel.ReportBroken(report_machine_navigate, err, control.Strategy)
		return fmt.Errorf("activate %s control: %w", control.Strategy, err)
	}
	return nil
}

// finish clears the run and persists its summary even when ctx has ended.
func (m *Machine) finish(ctx context.Context, summary Summary, state State, cause error) Summary {
	summary.State = state
	summary.Cause = cause
	m.setState(state)

	err := m.store.FinishMultiPageRun(context.WithoutCancel(ctx), summary.record())
	if err != nil {
		m.tel.ReportBroken(report_machine_finish, err)
	}
	if cause != nil {
		m.tel.ReportWarning(report_machine_finish, summary.String())
	} else {
		m.tel.ReportDebug(summary.String())
	}
	return summary
}
