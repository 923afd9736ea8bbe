package daw

import (
	"fmt"
	"sort"
	"strings"
)

// Flavor names a supported DAW.
type Flavor string

const (
	FlavorLive   Flavor = "live"
	FlavorBitwig Flavor = "bitwig"
)

// Constructor builds a driver for one flavor.
type Constructor func(deps Deps) (Driver, error)

// Factory maps flavors to driver constructors. It is populated once at
// startup; there is no package-level registration.
type Factory struct {
	ctors map[Flavor]Constructor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[Flavor]Constructor)}
}

// Register adds or replaces the constructor for flavor.
func (f *Factory) Register(flavor Flavor, ctor Constructor) {
	f.ctors[flavor] = ctor
}

// Flavors returns the registered flavors in sorted order.
func (f *Factory) Flavors() []Flavor {
	out := make([]Flavor, 0, len(f.ctors))
	for fl := range f.ctors {
		out = append(out, fl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds the driver for the named flavor. Names match exactly.
func (f *Factory) New(name string, deps Deps) (Driver, error) {
	ctor, ok := f.ctors[Flavor(name)]
	if !ok {
		names := make([]string, 0, len(f.ctors))
		for _, fl := range f.Flavors() {
			names = append(names, string(fl))
		}
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFlavor, name, strings.Join(names, ", "))
	}
	return ctor(deps)
}
