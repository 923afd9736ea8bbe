package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/musalce/musalce-server/internal/daw"
	"github.com/musalce/musalce-server/internal/infrastructure/config"
	"github.com/musalce/musalce-server/internal/midi"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("MUSALCE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "live"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_NoFlavor verifies run refuses to start without a DAW flavor.
func TestRun_NoFlavor(t *testing.T) {
	t.Setenv("MUSALCE_CONFIG", writeConfig(t, "osc:\n  listen_port: 11011\n"))
	t.Setenv("MUSALCE_DAW", "")

	err := run(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "no daw flavor") {
		t.Fatalf("run() error = %v, want no daw flavor", err)
	}
}

func TestLoadConfig_FlavorArgumentWins(t *testing.T) {
	t.Setenv("MUSALCE_CONFIG", writeConfig(t, "daw: live\n"))
	t.Setenv("MUSALCE_DAW", "")

	cfg, err := loadConfig("bitwig")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.DAW != "bitwig" {
		t.Errorf("DAW = %q, want bitwig", cfg.DAW)
	}

	cfg, err = loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.DAW != "live" {
		t.Errorf("DAW = %q, want live", cfg.DAW)
	}
}

func TestLoadConfig_UnknownFlavor(t *testing.T) {
	t.Setenv("MUSALCE_CONFIG", writeConfig(t, "daw: live\n"))

	if _, err := loadConfig("reaper"); err == nil {
		t.Fatal("loadConfig() should reject an unknown flavor")
	}
	if _, err := loadConfig("LIVE"); err == nil {
		t.Fatal("loadConfig() should reject a flavor in the wrong case")
	}
}

func TestChainDeviceHooks(t *testing.T) {
	var got []string
	hook := func(tag string) midi.ChangeFunc {
		return func(attached bool, device string, total int) {
			got = append(got, fmt.Sprintf("%s:%t:%s:%d", tag, attached, device, total))
		}
	}

	chainDeviceHooks(hook("influx"), hook("hub"), hook("reroute"))(true, "IAC Driver Bass", 2)

	want := []string{"influx:true:IAC Driver Bass:2", "hub:true:IAC Driver Bass:2", "reroute:true:IAC Driver Bass:2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("hooks ran as %v, want %v", got, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("MUSALCE_CONFIG", "")
	if got := getConfigPath(); got != config.DefaultPath {
		t.Errorf("getConfigPath() = %q, want %q", got, config.DefaultPath)
	}

	t.Setenv("MUSALCE_CONFIG", "/etc/musalce.yaml")
	if got := getConfigPath(); got != "/etc/musalce.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/musalce.yaml", got)
	}
}

func TestNewFactory_RegistersFlavors(t *testing.T) {
	got := newFactory().Flavors()
	want := []daw.Flavor{daw.FlavorBitwig, daw.FlavorLive}
	if len(got) != len(want) {
		t.Fatalf("Flavors() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Flavors()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRootCmd_Args(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "none", args: nil},
		{name: "live", args: []string{"live"}},
		{name: "bitwig", args: []string{"bitwig"}},
		{name: "unknown", args: []string{"reaper"}, wantErr: true},
		{name: "upper case", args: []string{"LIVE"}, wantErr: true},
		{name: "too many", args: []string{"live", "bitwig"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			err := cmd.ValidateArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}
