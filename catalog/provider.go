package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"

	"github.com/arloliu/go-lislink/internal/pool"
	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// FileProvider serves instrument configurations loaded from a catalog file.
//
// A failed reload keeps the previous snapshot.
type FileProvider struct {
	path string
	cfg  *config

	mu      sync.RWMutex
	configs map[string]link.InstrumentLinkConfig
	loaded  time.Time
}

var _ link.ConfigProvider = (*FileProvider)(nil)

// Open loads the catalog at path.
func Open(path string, opts ...Option) (*FileProvider, error) {
	cfg := &config{
		debounce: DefaultDebounce,
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve %s: %w", path, err)
	}

	p := &FileProvider{
		path: abs,
		cfg:  cfg,
	}
	cfg.logger = cfg.logger.With("catalog", abs)

	if err := p.Reload(); err != nil {
		return nil, err
	}

	return p, nil
}

// Path returns the absolute catalog path.
func (p *FileProvider) Path() string { return p.path }

// LoadedAt returns when the current snapshot was loaded.
func (p *FileProvider) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.loaded
}

func (p *FileProvider) InstrumentConfig(_ context.Context, instrumentID string) (link.InstrumentLinkConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cfg, ok := p.configs[instrumentID]
	if !ok {
		return link.InstrumentLinkConfig{}, fmt.Errorf("%w: %s", link.ErrUnknownInstrument, instrumentID)
	}

	return cfg, nil
}

func (p *FileProvider) Instruments(_ context.Context) ([]link.InstrumentLinkConfig, error) {
	p.mu.RLock()
	out := make([]link.InstrumentLinkConfig, 0, len(p.configs))
	for _, cfg := range p.configs {
		out = append(out, cfg)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })

	return out, nil
}

// Reload re-reads the catalog file and replaces the snapshot when it parses.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", p.path, err)
	}

	configs, err := Parse(formatOf(p.path), data)
	if err != nil {
		return fmt.Errorf("catalog: %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.configs = configs
	p.loaded = time.Now()
	p.mu.Unlock()

	p.cfg.logger.Info("catalog loaded", "instruments", len(configs))

	return nil
}

// Watch reloads the catalog whenever the file is written, created or
// renamed into place and calls onChange after each successful reload.
// It blocks until ctx is done.
//
// The parent directory is watched so that editors replacing the file
// atomically are observed.
func (p *FileProvider) Watch(ctx context.Context, onChange func(context.Context)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", filepath.Dir(p.path), err)
	}

	var pending <-chan time.Time
	timer := pool.GetTimer(time.Hour)
	defer pool.PutTimer(timer)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != p.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			p.cfg.logger.Debug("catalog changed", "op", ev.Op.String())
			if pending != nil && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.cfg.debounce)
			pending = timer.C

		case <-pending:
			pending = nil
			if err := p.Reload(); err != nil {
				p.cfg.logger.Warn("catalog reload failed, keeping previous snapshot", "error", err)
				continue
			}
			if onChange != nil {
				onChange(ctx)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.cfg.logger.Error("catalog watcher error", "error", err)
		}
	}
}

// Format is a catalog encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return Format(strings.TrimPrefix(filepath.Ext(path), "."))
	}
}

// Parse decodes a catalog document and validates every entry.
// Unknown keys are rejected.
func Parse(format Format, data []byte) (map[string]link.InstrumentLinkConfig, error) {
	var doc document

	switch format {
	case FormatTOML:
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc)
		if err != nil {
			return nil, fmt.Errorf("%w: decode toml: %w", link.ErrInvalidConfig, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}

			return nil, fmt.Errorf("%w: unknown keys %s", link.ErrInvalidConfig, strings.Join(keys, ", "))
		}
	case FormatYAML:
		if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %w", link.ErrInvalidConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	configs := make(map[string]link.InstrumentLinkConfig, len(doc.Instruments))
	for _, e := range doc.Instruments {
		cfg, err := e.config()
		if err != nil {
			return nil, err
		}
		if _, dup := configs[cfg.InstrumentID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInstrument, cfg.InstrumentID)
		}
		configs[cfg.InstrumentID] = cfg
	}

	return configs, nil
}

// IsInvalid reports whether err is a catalog content error rather than an I/O failure.
func IsInvalid(err error) bool {
	return errors.Is(err, link.ErrInvalidConfig) ||
		errors.Is(err, ErrDuplicateInstrument) ||
		errors.Is(err, ErrUnsupportedFormat)
}
