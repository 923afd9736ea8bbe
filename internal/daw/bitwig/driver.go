package bitwig

import (
	"context"
	"errors"
	"fmt"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/osc"
)

// OSC addresses spoken by the Bitwig extension.
const (
	Prefix = "/musalce4bitwig"

	AddressControllers      = Prefix + "/controllers"
	AddressController       = Prefix + "/controller"
	AddressControllerUpdate = Prefix + "/controller/update"
	AddressChannels         = Prefix + "/channels"
)

// Driver connects the Bitwig extension to a Registry.
type Driver struct {
	*daw.Base
	registry *Registry
}

// New builds the Bitwig driver. It satisfies daw.Constructor.
func New(deps daw.Deps) (daw.Driver, error) {
	return NewDriver(deps)
}

// NewDriver is New returning the concrete type.
func NewDriver(deps daw.Deps) (*Driver, error) {
	base, err := daw.NewBase(daw.FlavorBitwig, deps, Prefix, AddressControllers)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(deps.Devices, deps.Clock)
	reg.SetLogger(base.Logger())
	if deps.Observer != nil {
		reg.SetObserver(deps.Observer)
	}

	return &Driver{Base: base, registry: reg}, nil
}

// Registry returns the controller registry.
func (d *Driver) Registry() *Registry {
	return d.registry
}

// Tracks implements daw.Driver.
func (d *Driver) Tracks() daw.TrackSet {
	return d.registry
}

// Routes implements daw.Driver.
func (d *Driver) Routes(r daw.Router) {
	r.Handle(daw.AddressHello, d.handleHello)
	r.Handle(AddressControllers, d.handleControllers)
	r.Handle(AddressController, d.handleController)
	r.Handle(AddressControllerUpdate, d.handleControllerUpdate)
	r.Handle(AddressChannels, d.handleChannels)
}

// Stop releases the clock input.
func (d *Driver) Stop() {
	if c := d.Deps().Clock; c != nil {
		c.Clear()
	}
	d.Base.Stop()
}

// Reroute implements daw.Driver.
func (d *Driver) Reroute(ctx context.Context) {
	d.registry.Reroute(ctx)
}

// handleHello resyncs devices, moves every controller onto its current
// device and asks Bitwig for a new snapshot.
func (d *Driver) handleHello(msg osc.Message) {
	d.HandleHello(msg)
	d.registry.Reroute(d.Context())
}

func (d *Driver) handleControllers(msg osc.Message) {
	names := make([]string, 0, len(msg.Args))
	for _, a := range msg.Args {
		name, err := osc.String(a)
		if err != nil {
			d.Reject(msg.Address, "type", err)
			return
		}
		names = append(names, name)
	}
	d.registry.ApplyControllerList(names)
}

func (d *Driver) handleController(msg osc.Message) {
	if len(msg.Args) != 3 {
		d.Reject(msg.Address, "arity", fmt.Errorf("%w: got %d, want 3", osc.ErrArity, len(msg.Args)))
		return
	}
	name, port, isClock, err := parseController(msg.Args[0], msg.Args[1], msg.Args[2])
	if err != nil {
		d.Reject(msg.Address, "type", err)
		return
	}
	if err := d.registry.DefineController(d.Context(), name, port, isClock); err != nil {
		d.reject(msg.Address, err)
	}
}

func (d *Driver) handleControllerUpdate(msg osc.Message) {
	if len(msg.Args) != 4 {
		d.Reject(msg.Address, "arity", fmt.Errorf("%w: got %d, want 4", osc.ErrArity, len(msg.Args)))
		return
	}
	oldName, err := osc.String(msg.Args[0])
	if err != nil {
		d.Reject(msg.Address, "type", err)
		return
	}
	newName, port, isClock, err := parseController(msg.Args[1], msg.Args[2], msg.Args[3])
	if err != nil {
		d.Reject(msg.Address, "type", err)
		return
	}
	if err := d.registry.RenameController(d.Context(), oldName, newName, port, isClock); err != nil {
		d.reject(msg.Address, err)
	}
}

func (d *Driver) handleChannels(msg osc.Message) {
	if len(msg.Args) < 1 {
		d.Reject(msg.Address, "arity", fmt.Errorf("%w: missing controller name", osc.ErrArity))
		return
	}
	controller, err := osc.String(msg.Args[0])
	if err != nil {
		d.Reject(msg.Address, "type", err)
		return
	}
	names := make([]string, 0, len(msg.Args)-1)
	for _, a := range msg.Args[1:] {
		name, err := osc.OptString(a)
		if err != nil {
			d.Reject(msg.Address, "type", err)
			return
		}
		if name == nil {
			names = append(names, "")
			continue
		}
		names = append(names, *name)
	}
	if err := d.registry.NameChannels(controller, names); err != nil {
		d.reject(msg.Address, err)
	}
}

func (d *Driver) reject(address string, err error) {
	if errors.Is(err, daw.ErrNotFound) {
		d.Reject(address, "not_found", err)
		return
	}
	d.Reject(address, "error", err)
}

func parseController(nameArg, portArg, clockArg any) (name, port string, isClock bool, err error) {
	if name, err = osc.String(nameArg); err != nil {
		return
	}
	if port, err = osc.String(portArg); err != nil {
		return
	}
	isClock, err = osc.Flag(clockArg)
	return
}
