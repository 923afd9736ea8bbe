package daw

import (
	"fmt"

	"github.com/musalce/musalce-server/internal/osc"
)

// Panicker silences every attached output. *midi.Directory implements it.
type Panicker interface {
	Panic() error
}

// Commands are the outbound operations towards the DAW extension. Every
// command is a single fire-and-forget OSC message under the flavor's prefix.
type Commands struct {
	sender      osc.Sender
	prefix      string
	syncAddress string
	beatsPerBar int
	version     string
	panicker    Panicker
}

// NewCommands builds the command set for prefix (e.g. "/musalce4live").
// syncAddress is the address that asks the DAW to push a full snapshot.
func NewCommands(sender osc.Sender, prefix, syncAddress string, beatsPerBar int, version string, panicker Panicker) *Commands {
	if beatsPerBar < 1 {
		beatsPerBar = 4
	}
	return &Commands{
		sender:      sender,
		prefix:      prefix,
		syncAddress: syncAddress,
		beatsPerBar: beatsPerBar,
		version:     version,
		panicker:    panicker,
	}
}

// Prefix returns the flavor's address prefix.
func (c *Commands) Prefix() string {
	return c.prefix
}

// Sync asks the DAW to push its full entity snapshot.
func (c *Commands) Sync() error {
	return c.sender.Send(c.syncAddress)
}

// Play starts the DAW transport.
func (c *Commands) Play() error {
	return c.sender.Send(c.prefix + "/play")
}

// Stop stops the DAW transport.
func (c *Commands) Stop() error {
	return c.sender.Send(c.prefix + "/stop")
}

// Continue resumes the DAW transport from its current position.
func (c *Commands) Continue() error {
	return c.sender.Send(c.prefix + "/continue")
}

// Record starts recording.
func (c *Commands) Record() error {
	return c.sender.Send(c.prefix + "/record")
}

// Goto moves the DAW playhead to the start of bar (1-based).
func (c *Commands) Goto(bar int) error {
	if bar < 1 {
		return fmt.Errorf("goto: bar must be at least 1, got %d", bar)
	}
	beats := float32((bar - 1) * c.beatsPerBar)
	return c.sender.Send(c.prefix+"/goto", beats)
}

// Reload asks the DAW extension to reload itself.
func (c *Commands) Reload() error {
	return c.sender.Send(c.prefix + "/reload")
}

// AnnounceVersion tells the DAW extension which server version it talks to.
func (c *Commands) AnnounceVersion() error {
	return c.sender.Send(c.prefix+"/version", c.version)
}

// Panic silences every attached MIDI output. It is local; nothing is sent
// to the DAW.
func (c *Commands) Panic() error {
	if c.panicker == nil {
		return nil
	}
	return c.panicker.Panic()
}
