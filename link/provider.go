package link

import (
	"context"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// ConfigProvider supplies instrument link configurations.
//
// Implementations must be safe for concurrent use; supervisors of different
// instruments query the provider independently.
type ConfigProvider interface {
	// InstrumentConfig returns the current configuration of one instrument,
	// or an error wrapping ErrUnknownInstrument.
	InstrumentConfig(ctx context.Context, instrumentID string) (InstrumentLinkConfig, error)
	// Instruments returns every configured instrument ordered by id.
	Instruments(ctx context.Context) ([]InstrumentLinkConfig, error)
}

// StaticProvider is an in-memory ConfigProvider.
type StaticProvider struct {
	configs *xsync.MapOf[string, InstrumentLinkConfig]
}

var _ ConfigProvider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider holding cfgs.
func NewStaticProvider(cfgs ...InstrumentLinkConfig) *StaticProvider {
	p := &StaticProvider{configs: xsync.NewMapOf[string, InstrumentLinkConfig]()}
	for _, cfg := range cfgs {
		p.Set(cfg)
	}

	return p
}

// Set adds or replaces the configuration of cfg.InstrumentID.
func (p *StaticProvider) Set(cfg InstrumentLinkConfig) {
	p.configs.Store(cfg.InstrumentID, cfg)
}

// Delete removes an instrument.
func (p *StaticProvider) Delete(instrumentID string) {
	p.configs.Delete(instrumentID)
}

func (p *StaticProvider) InstrumentConfig(_ context.Context, instrumentID string) (InstrumentLinkConfig, error) {
	cfg, ok := p.configs.Load(instrumentID)
	if !ok {
		return InstrumentLinkConfig{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, instrumentID)
	}

	return cfg, nil
}

func (p *StaticProvider) Instruments(_ context.Context) ([]InstrumentLinkConfig, error) {
	out := make([]InstrumentLinkConfig, 0, p.configs.Size())
	p.configs.Range(func(_ string, cfg InstrumentLinkConfig) bool {
		out = append(out, cfg)
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })

	return out, nil
}
