package midi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Directory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Directory is the set of currently attached output devices, keyed by name.
//
// Lookups iterate in observation order: the order in which devices were
// first seen by Sync. Suffix lookups are therefore deterministic.
type Directory struct {
	enum Enumerator

	mu      sync.RWMutex
	devices map[string]*Device
	order   []string

	logger   Logger
	onChange ChangeFunc
}

// ChangeFunc is called after a sync that attached or detached devices.
type ChangeFunc func(attached bool, device string, total int)

// NewDirectory creates an empty directory. Call Sync to populate it.
func NewDirectory(enum Enumerator) *Directory {
	return &Directory{
		enum:    enum,
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// SetOnChange registers fn to be told about every attach and detach.
// Call it before the first Sync.
func (d *Directory) SetOnChange(fn ChangeFunc) {
	d.onChange = fn
}

// Enumerator returns the enumerator the directory syncs from.
func (d *Directory) Enumerator() Enumerator {
	return d.enum
}

// Sync re-enumerates output ports. New port names become Devices, resident
// devices whose names are gone are detached and removed. Sync is idempotent.
// On enumeration failure the directory is left unchanged.
func (d *Directory) Sync(ctx context.Context) (added, removed []string, err error) {
	ports, err := d.enum.OutPorts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("enumerating output ports: %w", err)
	}

	seen := make(map[string]bool, len(ports))
	var gone []*Device

	d.mu.Lock()
	for _, p := range ports {
		name := p.Name()
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := d.devices[name]; ok {
			continue
		}
		d.devices[name] = newDevice(p)
		d.order = append(d.order, name)
		added = append(added, name)
	}

	kept := d.order[:0]
	for _, name := range d.order {
		if seen[name] {
			kept = append(kept, name)
			continue
		}
		gone = append(gone, d.devices[name])
		delete(d.devices, name)
		removed = append(removed, name)
	}
	d.order = kept
	total := len(d.order)
	d.mu.Unlock()

	for _, dev := range gone {
		if err := dev.detach(); err != nil {
			d.logger.Warn("closing detached midi device", "device", dev.name, "error", err)
		}
	}

	for _, name := range added {
		d.logger.Info("midi device attached", "device", name)
	}
	for _, name := range removed {
		d.logger.Info("midi device detached", "device", name)
	}

	if d.onChange != nil {
		for _, name := range added {
			d.onChange(true, name, total)
		}
		for _, name := range removed {
			d.onChange(false, name, total)
		}
	}

	return added, removed, nil
}

// Lookup returns the device with exactly this name.
func (d *Directory) Lookup(name string) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dev, ok := d.devices[name]
	return dev, ok
}

// Find returns the first device, in observation order, whose name ends with
// suffix. DAWs often report a shortened port name.
func (d *Directory) Find(suffix string) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, name := range d.order {
		if strings.HasSuffix(name, suffix) {
			return d.devices[name], true
		}
	}
	return nil, false
}

// Devices returns the resident devices in observation order.
func (d *Directory) Devices() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Device, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.devices[name])
	}
	return out
}

// Len returns the number of resident devices.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}

// Panic silences every channel of every resident device.
func (d *Directory) Panic() error {
	var errs []error
	for _, dev := range d.Devices() {
		if err := dev.Panic(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run syncs immediately and then every interval until ctx is cancelled.
// A non-positive interval performs only the initial sync.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	if _, _, err := d.Sync(ctx); err != nil {
		d.logger.Warn("midi device sync failed", "error", err)
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := d.Sync(ctx); err != nil {
				d.logger.Warn("midi device sync failed", "error", err)
			}
		}
	}
}
