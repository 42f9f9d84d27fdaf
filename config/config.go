// Package config loads generation settings from TOML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

// Config holds the settings of one generation run.
type Config struct {
	ABIVersion   string                  `toml:"abi_version"`
	Namespace    string                  `toml:"namespace"`
	PointerWidth uint32                  `toml:"pointer_width"`
	Primitives   []string                `toml:"primitives"`
	Layouts      map[string]LayoutConfig `toml:"layouts,omitempty"`

	version *semver.Version     `toml:"-"`
	prims   map[string]abi.Prim `toml:"-"`
}

// LayoutConfig is a side-supplied opaque type layout.
type LayoutConfig struct {
	Size  uint32 `toml:"size"`
	Align uint32 `toml:"align"`
}

// Default returns a validated configuration with the standard primitive set
// and a 64-bit target.
func Default() *Config {
	c := &Config{
		ABIVersion:   abi.DefaultVersion,
		PointerWidth: 8,
	}
	for _, p := range abi.StandardPrims() {
		c.Primitives = append(c.Primitives, p.String())
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}
	return Parse(data)
}

// Parse decodes and validates TOML configuration. Omitted settings take
// their defaults.
func Parse(data []byte) (*Config, error) {
	raw := &Config{}
	if err := toml.Unmarshal(data, raw); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode configuration")
	}

	if raw.ABIVersion == "" {
		raw.ABIVersion = abi.DefaultVersion
	}
	if raw.PointerWidth == 0 {
		raw.PointerWidth = 8
	}
	if raw.Primitives == nil {
		for _, p := range abi.StandardPrims() {
			raw.Primitives = append(raw.Primitives, p.String())
		}
	}

	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return raw, nil
}

// Validate checks every setting and caches the derived values. It must be
// called after a Config is modified by hand.
func (c *Config) Validate() error {
	v, err := abi.ParseVersion(c.ABIVersion)
	if err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("abi_version").Cause(err).Detail("unsupported abi version").Build()
	}

	if c.PointerWidth != 4 && c.PointerWidth != 8 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("pointer_width").Detail("pointer width must be 4 or 8, got %d", c.PointerWidth).Build()
	}

	prims := make(map[string]abi.Prim, len(c.Primitives))
	for _, name := range c.Primitives {
		p, ok := abi.ParsePrim(name)
		if !ok {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("primitives").Detail("unknown primitive %q", name).Build()
		}
		prims[name] = p
	}

	for name, l := range c.Layouts {
		if err := (abi.Layout{Size: l.Size, Align: l.Align}).Validate(); err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidLayout).
				Path("layouts", name).Cause(err).Detail("invalid layout for %q", name).Build()
		}
	}

	c.version = v
	c.prims = prims
	return nil
}

// Version returns the parsed ABI version.
func (c *Config) Version() *semver.Version {
	if c.version == nil {
		v, _ := semver.NewVersion(abi.DefaultVersion)
		return v
	}
	return c.version
}

// Target returns the machine target.
func (c *Config) Target() abi.Target {
	return abi.Target{PointerWidth: c.PointerWidth}
}

// Mangler returns the symbol mangler for the configured version and
// namespace.
func (c *Config) Mangler() abi.Mangler {
	return abi.NewMangler(c.Version(), c.Namespace)
}

// Primitive returns the enabled primitive spelled name.
func (c *Config) Primitive(name string) (abi.Prim, bool) {
	p, ok := c.prims[name]
	return p, ok
}

// OpaqueLayout implements abi.LayoutSource.
func (c *Config) OpaqueLayout(name string) (abi.Layout, bool) {
	l, ok := c.Layouts[name]
	if !ok {
		return abi.Layout{}, false
	}
	return abi.Layout{Size: l.Size, Align: l.Align}, true
}

// LayoutNames returns the names with a configured layout, sorted.
func (c *Config) LayoutNames() []string {
	names := make([]string, 0, len(c.Layouts))
	for n := range c.Layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	return nil
}

// String returns the TOML encoding of c.
func (c *Config) String() string {
	var b bytes.Buffer
	if err := c.Encode(&b); err != nil {
		return ""
	}
	return b.String()
}
