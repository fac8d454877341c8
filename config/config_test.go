package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"macroprox/game"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MACROPROX_PORT", "")
	t.Setenv("MACROPROX_BROADCAST_INTERVAL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != DefaultPort || cfg.ListenAddr(cfg.Port) != "0.0.0.0:5508" {
		t.Fatalf("listen addr = %s", cfg.ListenAddr(cfg.Port))
	}
	if got := cfg.ListenAddr(6000); got != "0.0.0.0:6000" {
		t.Fatalf("overridden listen addr = %s", got)
	}
	if cfg.BroadcastDelay != 500*time.Millisecond || cfg.BroadcastInterval != 15*time.Millisecond {
		t.Fatalf("timing = %s / %s", cfg.BroadcastDelay, cfg.BroadcastInterval)
	}
	if cfg.BaseSpeed != game.BaseSpeed {
		t.Fatalf("base speed = %f", cfg.BaseSpeed)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "MACROPROX_BROADCAST_INTERVAL=40ms\nMACROPROX_SPAWN_X=12.5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv 不覆盖已存在的变量；t.Setenv 负责在结束时还原
	t.Setenv("MACROPROX_BROADCAST_INTERVAL", "")
	t.Setenv("MACROPROX_SPAWN_X", "")
	os.Unsetenv("MACROPROX_BROADCAST_INTERVAL")
	os.Unsetenv("MACROPROX_SPAWN_X")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BroadcastInterval != 40*time.Millisecond {
		t.Fatalf("interval = %s", cfg.BroadcastInterval)
	}
	if cfg.Spawn.X != 12.5 {
		t.Fatalf("spawn = %v", cfg.Spawn)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("MACROPROX_PORT", "70000")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestParseColour(t *testing.T) {
	tests := []struct {
		in      string
		want    game.Colour
		wantErr bool
	}{
		{in: "white", want: game.White},
		{in: " Orange ", want: game.Colour{R: 1, G: 0.63, B: 0, A: 1}},
		{in: "#ff0000", want: game.Colour{R: 1, G: 0, B: 0, A: 1}},
		{in: "00ff00", want: game.Colour{R: 0, G: 1, B: 0, A: 1}},
		{in: "not-a-colour", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseColour(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseColour(%q) succeeded", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseColour(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseColour(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestSettings(t *testing.T) {
	s, err := NewSettings(Config{Name: "a", Colour: "blue", Port: 6000}, ModeJoin)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if !s.IsHost() {
		t.Fatalf("empty host should mean host mode")
	}
	s.Host = "10.0.0.2"
	if s.IsHost() || s.JoinAddr() != "10.0.0.2:6000" {
		t.Fatalf("join addr = %s", s.JoinAddr())
	}
	if _, err := NewSettings(Config{Colour: "nope"}, ModeHost); err == nil {
		t.Fatalf("bad colour accepted")
	}
}
