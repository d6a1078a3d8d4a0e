package catalog

import "errors"

var (
	// ErrUnsupportedFormat indicates a catalog file extension that is neither TOML nor YAML.
	ErrUnsupportedFormat = errors.New("catalog: unsupported file format")

	// ErrDuplicateInstrument indicates two catalog entries share an instrument id.
	ErrDuplicateInstrument = errors.New("catalog: duplicate instrument id")
)
