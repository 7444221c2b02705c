// Package config loads the VM's tuning knobs (initial stack/call-info
// sizes, maximum call depth) from an optional YAML file, the way
// a small embedded-service config struct is loaded elsewhere in the
// retrieved example pack — one `yaml.Unmarshal` into a plain struct,
// no framework.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the interpreter's tunable limits. Zero value is invalid;
// call WithDefaults (NewState does this automatically) before use.
type Config struct {
	// StackInitSize is mruby's STACK_INIT_SIZE: the value stack's
	// initial register capacity (spec.md §5).
	StackInitSize int `yaml:"stack_init_size"`
	// CallInfoInitSize is mruby's CALLINFO_INIT_SIZE: the call-info
	// stack's initial frame capacity.
	CallInfoInitSize int `yaml:"callinfo_init_size"`
	// MaxCallDepth is loaded and kept on vm.State.Config, but the VM
	// does not consult it: SEND/CALL nesting is not limited by it.
	MaxCallDepth int `yaml:"max_call_depth"`
}

// Default matches mruby's compiled-in constants.
func Default() Config {
	return Config{
		StackInitSize:    128,
		CallInfoInitSize: 32,
		MaxCallDepth:     0,
	}
}

// WithDefaults fills any zero field with the default, so a caller can
// supply a partially populated Config (e.g. just MaxCallDepth) without
// having to spell out every field.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.StackInitSize <= 0 {
		c.StackInitSize = d.StackInitSize
	}
	if c.CallInfoInitSize <= 0 {
		c.CallInfoInitSize = d.CallInfoInitSize
	}
	return c
}

// Load reads a YAML config file. A missing file is not an error; it
// simply yields Default() so embedders can ship without one.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c.WithDefaults(), nil
}
