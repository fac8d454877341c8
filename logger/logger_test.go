package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	prev := Log
	t.Cleanup(func() { Log = prev })

	if err := Init(Options{FilePath: path, Level: "info"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	Log.Debug("hidden")
	Log.Infof("session %d registered", 7)
	_, _ = Writer().Write([]byte("potential deadlock\nsecond line\n"))
	Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	for _, want := range []string{"INFO", "session 7 registered", "WARN", "potential deadlock", "second line"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level")
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })
	if err := Init(Options{FilePath: filepath.Join(t.TempDir(), "x.log"), Level: "loud"}); err == nil {
		t.Fatalf("bad level accepted")
	}
}

func TestRollingFilePolicy(t *testing.T) {
	lj := rollingFile("x.log")
	if lj.Filename != "x.log" || lj.MaxSize != 10 || lj.MaxBackups != 3 || lj.MaxAge != 7 {
		t.Fatalf("rotation policy = %+v", lj)
	}
}
