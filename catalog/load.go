package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed queryables.yaml
var defaultDocument []byte

// document is the YAML layout of a registry declaration file.
type document struct {
	Queryables []Queryable `yaml:"queryables"`
}

// Load parses a YAML registry declaration and builds an immutable registry.
//
// Example document:
//
//	queryables:
//	  - name: site
//	    kind: string
//	    encoding: literal
//	    params:
//	      - name: site
func Load(r io.Reader, opts Options) (Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", ErrInvalidRegistry, err)
	}

	return NewStaticRegistry(doc.Queryables, opts)
}

var (
	defaultOnce sync.Once
	defaultReg  Registry
	defaultErr  error

	hourlyOnce sync.Once
	hourlyReg  Registry
	hourlyErr  error
)

// Default returns the AERONET registry with day precision date ranges.
// The embedded declaration is parsed once; the result is shared process-wide.
func Default() (Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(bytes.NewReader(defaultDocument), Options{})
	})
	return defaultReg, defaultErr
}

// DefaultHourly returns the AERONET registry with hour precision date ranges
// (hour/hour2 parameters are emitted in addition to year/month/day).
func DefaultHourly() (Registry, error) {
	hourlyOnce.Do(func() {
		hourlyReg, hourlyErr = Load(bytes.NewReader(defaultDocument), Options{Hourly: true})
	})
	return hourlyReg, hourlyErr
}

// MustDefault is like Default but panics if the embedded declaration is invalid.
func MustDefault() Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}
