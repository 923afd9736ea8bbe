// MusaLCE server - DAW control-surface bridge
//
// This is the main entry point for the MusaLCE server. It sits between a DAW
// extension (Ableton Live or Bitwig Studio) and the host's MIDI ports:
//   - Learns the DAW's tracks and their MIDI routing over OSC
//   - Binds each track to a hardware MIDI device channel
//   - Follows a MIDI clock input for transport position
//
// Usage:
//
//	musalce [live|bitwig]
//
// The positional argument overrides the daw key of the configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/musalce/musalce-server/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "0.6.0"   // Semantic version, also announced to the DAW
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command line. The only argument is the DAW flavor.
func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "musalce [live|bitwig]",
		Short: "Bridge a DAW control surface to hardware MIDI devices",
		Long: `musalce listens for the MusaLCE DAW extension over OSC, learns which
tracks are routed to which MIDI device channels, and keeps one output per
track pointed at the right hardware.

The flavor argument selects the DAW. Without it, the "daw" key of the
configuration file is used. The configuration path defaults to
configs/config.yaml and can be overridden with MUSALCE_CONFIG.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     []string{"live", "bitwig"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flavor := ""
			if len(args) == 1 {
				flavor = args[0]
			}
			return run(cmd.Context(), flavor)
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses MUSALCE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MUSALCE_CONFIG"); path != "" {
		return path
	}
	return config.DefaultPath
}
