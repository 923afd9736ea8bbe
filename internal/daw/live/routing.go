package live

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/midi"
)

var (
	iacDriverPattern  = regexp.MustCompile(`Driver IAC \((.+)\)`)
	subRoutingPattern = regexp.MustCompile(`Ch\. (\d+)`)
)

// NormalizeDeviceName strips the "Driver IAC (...)" wrapper Live puts
// around IAC bus names. Other names are returned unchanged.
func NormalizeDeviceName(name string) string {
	if m := iacDriverPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// ParseSubRouting extracts the 1-based channel from a sub-routing such as
// "Ch. 3". It reports false when no channel is present.
func ParseSubRouting(sub string) (int, bool) {
	m := subRoutingPattern.FindStringSubmatch(sub)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DeviceFinder resolves a possibly shortened device name.
// *midi.Directory implements it.
type DeviceFinder interface {
	Find(suffix string) (*midi.Device, bool)
}

// resolve maps a track's MIDI input routing to a device channel.
func resolve(devices DeviceFinder, hasMIDIInput bool, routing, sub string) (*midi.Channel, error) {
	if !hasMIDIInput {
		return nil, fmt.Errorf("%w: track has no midi input", daw.ErrUnresolvedRouting)
	}
	if routing == "" {
		return nil, fmt.Errorf("%w: no input routing", daw.ErrUnresolvedRouting)
	}
	dev, ok := devices.Find(routing)
	if !ok {
		return nil, fmt.Errorf("%w: no midi device matches %q", daw.ErrUnresolvedRouting, routing)
	}
	n, ok := ParseSubRouting(sub)
	if !ok {
		return nil, fmt.Errorf("%w: no channel in sub-routing %q", daw.ErrUnresolvedRouting, sub)
	}
	ch, err := dev.Channel(n - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", daw.ErrUnresolvedRouting, err)
	}
	return ch, nil
}
