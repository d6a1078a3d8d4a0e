package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-lislink/link"
)

// Manager runs one Supervisor per active instrument of a ConfigProvider.
type Manager struct {
	provider link.ConfigProvider
	sink     link.MessageSink
	opts     []Option
	cfg      *config

	entries *xsync.MapOf[string, *entry]

	mu     sync.Mutex // serializes Start, Reload and Stop
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	sup  *Supervisor
	lcfg link.InstrumentLinkConfig
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (e *entry) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *entry) getErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.err
}

func (e *entry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// NewManager creates a manager. opts apply to every supervisor it starts.
func NewManager(provider link.ConfigProvider, sink link.MessageSink, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("supervisor: config provider is nil")
	}
	if sink == nil {
		return nil, errors.New("supervisor: message sink is nil")
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Manager{
		provider: provider,
		sink:     sink,
		opts:     opts,
		cfg:      cfg,
		entries:  xsync.NewMapOf[string, *entry](),
	}, nil
}

// Start launches a supervisor for every active instrument. Supervisors run
// until Stop is called or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	return m.Reload(ctx)
}

// Reload reconciles the running supervisors with the provider: new or
// re-activated instruments are started, removed or deactivated ones are
// stopped, changed ones are restarted and supervisors that gave up are
// started again.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil || m.ctx.Err() != nil {
		return ErrNotStarted
	}

	cfgs, err := m.provider.Instruments(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: list instruments: %w", err)
	}

	wanted := make(map[string]link.InstrumentLinkConfig, len(cfgs))
	for _, c := range cfgs {
		if c.Active {
			wanted[c.InstrumentID] = c
		}
	}

	var stale []string
	m.entries.Range(func(id string, e *entry) bool {
		c, ok := wanted[id]
		if !ok || c != e.lcfg || e.finished() {
			stale = append(stale, id)
		}

		return true
	})

	for _, id := range stale {
		m.stopEntry(id)
	}

	var errs []error
	for id, c := range wanted {
		if _, ok := m.entries.Load(id); ok {
			continue
		}

		if err := m.startEntry(id, c); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("supervisor: %d instruments failed to start: %w", len(errs), errs[0])
	}

	return nil
}

// Stop stops every supervisor and waits for them to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}

	m.entries.Range(func(_ string, e *entry) bool {
		e.sup.Stop()
		return true
	})
	m.mu.Unlock()

	m.wg.Wait()
}

// Instruments returns the ids of the managed instruments in order.
func (m *Manager) Instruments() []string {
	var ids []string
	m.entries.Range(func(id string, _ *entry) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)

	return ids
}

// Status returns the connection status of an instrument.
func (m *Manager) Status(instrumentID string) (link.ConnStatus, error) {
	e, ok := m.entries.Load(instrumentID)
	if !ok {
		return link.ConnStatusUnknown, fmt.Errorf("%w: %s", link.ErrUnknownInstrument, instrumentID)
	}

	return e.sup.Status(), nil
}

// Metrics returns the counters of an instrument link.
func (m *Manager) Metrics(instrumentID string) (*Metrics, error) {
	e, ok := m.entries.Load(instrumentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", link.ErrUnknownInstrument, instrumentID)
	}

	return e.sup.Metrics(), nil
}

// Err returns the error a supervisor gave up with, or nil while it runs.
func (m *Manager) Err(instrumentID string) error {
	e, ok := m.entries.Load(instrumentID)
	if !ok {
		return fmt.Errorf("%w: %s", link.ErrUnknownInstrument, instrumentID)
	}

	return e.getErr()
}

func (m *Manager) startEntry(id string, lcfg link.InstrumentLinkConfig) error {
	sup, err := New(id, m.provider, m.sink, m.opts...)
	if err != nil {
		return err
	}

	e := &entry{sup: sup, lcfg: lcfg, done: make(chan struct{})}
	m.entries.Store(id, e)

	ctx := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)

		if err := sup.Run(ctx); err != nil {
			e.setErr(err)
			m.cfg.logger.Error("supervisor: instrument link stopped", "instrument", id, "error", err)
		}
	}()

	m.cfg.logger.Info("supervisor: instrument started", "instrument", id, "endpoint", lcfg.Endpoint())

	return nil
}

func (m *Manager) stopEntry(id string) {
	e, ok := m.entries.LoadAndDelete(id)
	if !ok {
		return
	}

	e.sup.Stop()
	<-e.done

	m.cfg.logger.Info("supervisor: instrument stopped", "instrument", id)
}
