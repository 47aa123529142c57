package jit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvNameForOption(t *testing.T) {
	cases := map[string]string{
		"jit":                        "PYTHONJIT",
		"jit-list-file":              "PYTHONJITLISTFILE",
		"jit-batch-compile-workers":  "PYTHONJITBATCHCOMPILEWORKERS",
		"jit-enable-jit-list-wildcards": "PYTHONJITENABLEJITLISTWILDCARDS",
	}
	for opt, want := range cases {
		if got := envNameForOption(opt); got != want {
			t.Errorf("envNameForOption(%s) = %s, want %s", opt, got, want)
		}
	}
}

func TestEnvTruthiness(t *testing.T) {
	resetJit(t)
	t.Setenv("PYTHONJIT", "")
	if isFlagSet("jit") {
		t.Error("empty env must not count as set")
	}
	t.Setenv("PYTHONJIT", "0")
	if isFlagSet("jit") {
		t.Error("\"0\" must not count as set")
	}
	t.Setenv("PYTHONJIT", "1")
	if !isFlagSet("jit") {
		t.Error("\"1\" must count as set")
	}
}

func TestXOptionBeatsEnv(t *testing.T) {
	resetJit(t)
	t.Setenv("PYTHONJITBATCHCOMPILEWORKERS", "2")
	if got := flagLong("jit-batch-compile-workers", 0); got != 2 {
		t.Errorf("env fallback = %d, want 2", got)
	}
	SetXOption("jit-batch-compile-workers=6")
	if got := flagLong("jit-batch-compile-workers", 0); got != 6 {
		t.Errorf("X option must win, got %d", got)
	}
}

func TestInvalidNumericFallsBack(t *testing.T) {
	resetJit(t)
	SetXOption("jit-batch-compile-workers=banana")
	if got := flagLong("jit-batch-compile-workers", 3); got != 3 {
		t.Errorf("invalid value must fall back to the default, got %d", got)
	}
}

func TestFlagBytes(t *testing.T) {
	resetJit(t)
	if got := flagBytes("jit-code-cache-size", DefaultCodeCacheSize); got != DefaultCodeCacheSize {
		t.Errorf("unset size flag = %d, want default", got)
	}
	SetXOption("jit-code-cache-size=4MiB")
	if got := flagBytes("jit-code-cache-size", 0); got != 4*1024*1024 {
		t.Errorf("4MiB parsed as %d", got)
	}
	ClearXOptions()
	SetXOption("jit-code-cache-size=nonsense")
	if got := flagBytes("jit-code-cache-size", 99); got != 99 {
		t.Errorf("invalid size must fall back, got %d", got)
	}
}

func TestEnvEnablesJit(t *testing.T) {
	resetJit(t)
	withGIL(t)
	t.Setenv("PYTHONJIT", "1")
	if err := Initialize(newFakeCompiler()); err != nil {
		t.Fatal(err)
	}
	if !IsEnabled() {
		t.Error("PYTHONJIT=1 must enable the JIT")
	}
}

func TestLogFilePidSubstitution(t *testing.T) {
	resetJit(t)
	withGIL(t)
	dir := t.TempDir()
	SetXOption("jit")
	SetXOption("jit-log-file=" + filepath.Join(dir, "jit-{pid}.log"))
	if err := Initialize(newFakeCompiler()); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, fmt.Sprintf("jit-%d.log", os.Getpid()))
	if _, err := os.Stat(want); err != nil {
		t.Errorf("log file %s was not created: %v", want, err)
	}
	Log("hello from the test")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello from the test") {
		t.Error("log output must go to the configured file")
	}
}

func TestBatchWorkersResolved(t *testing.T) {
	initJit(t, "jit", "jit-batch-compile-workers=7")
	if Config.BatchCompileWorkers != 7 {
		t.Errorf("BatchCompileWorkers = %d, want 7", Config.BatchCompileWorkers)
	}
	if Config.TestMultithreadedCompile {
		t.Error("test mode must be off unless requested")
	}
}
