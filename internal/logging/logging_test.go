package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// readLogFile returns the contents of today's log file in dir.
func readLogFile(t *testing.T, dir string) string {
	t.Helper()
	name := fmt.Sprintf("triage-%s.log", time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(data)
}

func TestNewWritesJSONToDateFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("spool scan finished")
	_ = logger.Close()

	data := readLogFile(t, dir)
	if !strings.Contains(data, `"message":"spool scan finished"`) {
		t.Errorf("output missing the message, got: %s", data)
	}
	if !strings.Contains(data, `"level":"info"`) {
		t.Errorf("output missing the level, got: %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewWithoutPath(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.file != nil {
		t.Error("no file should be opened without a path")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close without a file: %v", err)
	}
}

func TestTextFormatIsNotJSON(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Path: dir, Format: "text"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("plain line")
	_ = logger.Close()

	data := readLogFile(t, dir)
	if strings.HasPrefix(strings.TrimSpace(data), "{") {
		t.Errorf("text format should not emit JSON, got: %s", data)
	}
	if !strings.Contains(data, "plain line") {
		t.Errorf("text output missing the message, got: %s", data)
	}
}

func TestLevelFiltersOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Path: dir, Level: "warn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("below the line")
	logger.Warn("above the line")
	_ = logger.Close()

	data := readLogFile(t, dir)
	if strings.Contains(data, "below the line") {
		t.Error("info entries should be dropped at warn level")
	}
	if !strings.Contains(data, "above the line") {
		t.Error("warn entries should pass at warn level")
	}
}

func TestAllLevelsReachTheFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Path: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("d0")
	logger.Debugf("d%d", 1)
	logger.Info("i0")
	logger.Infof("i%d", 1)
	logger.Warn("w0")
	logger.Warnf("w%d", 1)
	logger.Error("e0")
	logger.Errorf("e%d", 1)
	_ = logger.Close()

	data := readLogFile(t, dir)
	for _, want := range []string{"d0", "d1", "i0", "i1", "w0", "w1", "e0", "e1"} {
		if !strings.Contains(data, `"message":"`+want+`"`) {
			t.Errorf("missing %s entry in: %s", want, data)
		}
	}
}

func TestStructuredFields(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.InfoFields("file archived", map[string]any{"dir": "/spool"})
	logger.WarnFields("slow drain", map[string]any{"count": 3})
	logger.Err(errors.New("watcher died")).Msg("spool watch failed")
	_ = logger.Close()

	data := readLogFile(t, dir)
	if !strings.Contains(data, `"dir":"/spool"`) {
		t.Errorf("InfoFields fields missing, got: %s", data)
	}
	if !strings.Contains(data, `"count":3`) {
		t.Errorf("WarnFields fields missing, got: %s", data)
	}
	if !strings.Contains(data, `"error":"watcher died"`) {
		t.Errorf("Err attachment missing, got: %s", data)
	}
}

func TestComponentTagging(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child := logger.WithComponent("spool")
	if child.component != "spool" {
		t.Errorf("component = %q, want spool", child.component)
	}
	child.Info("watch started")
	_ = logger.Close()

	if data := readLogFile(t, dir); !strings.Contains(data, `"component":"spool"`) {
		t.Errorf("entries should carry the component field, got: %s", data)
	}
}

func TestPruneRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()

	stamp := func(daysAgo int) string {
		return time.Now().AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}
	for _, name := range []string{
		"triage-" + stamp(30) + ".log",
		"triage-" + stamp(9) + ".log",
		"triage-" + stamp(2) + ".log",
		"triage-scratch.log", // no date, never pruned
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	logger, err := New(Config{Path: dir, RetentionDays: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	// prune runs on its own goroutine
	time.Sleep(150 * time.Millisecond)

	for _, gone := range []string{"triage-" + stamp(30) + ".log", "triage-" + stamp(9) + ".log"} {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been pruned", gone)
		}
	}
	for _, kept := range []string{"triage-" + stamp(2) + ".log", "triage-scratch.log"} {
		if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
			t.Errorf("%s should have survived: %v", kept, err)
		}
	}
}

func TestInitSwapsTheGlobalLogger(t *testing.T) {
	first := t.TempDir()
	if err := Init(Config{Path: first}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("first wave")

	second := t.TempDir()
	if err := Init(Config{Path: second}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("second wave")
	Debug("quiet") // default level is info
	Warn("warned")
	Error("errored")
	_ = Get().Close()

	if data := readLogFile(t, first); !strings.Contains(data, "first wave") {
		t.Errorf("first file missing its entry: %s", data)
	}

	data := readLogFile(t, second)
	if strings.Contains(data, "first wave") {
		t.Error("second file should only hold entries written after the swap")
	}
	for _, want := range []string{"second wave", "warned", "errored"} {
		if !strings.Contains(data, want) {
			t.Errorf("second file missing %q", want)
		}
	}
	if strings.Contains(data, "quiet") {
		t.Error("debug entries should be filtered at the default level")
	}

	if got := Component("queue").component; got != "queue" {
		t.Errorf("Component() = %q, want queue", got)
	}
}

func TestGetWithoutInit(t *testing.T) {
	globalMu.Lock()
	saved := global
	global = nil
	globalMu.Unlock()
	t.Cleanup(func() {
		globalMu.Lock()
		global = saved
		globalMu.Unlock()
	})

	logger := Get()
	if logger == nil {
		t.Fatal("Get() must never return nil")
	}
	if logger.file != nil {
		t.Error("the fallback logger should not own a file")
	}
	logger.Info("goes to stderr")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.RetentionDays != 7 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.Path, filepath.Join("triage", "logs")) {
		t.Errorf("Path = %q, want a triage/logs directory", cfg.Path)
	}
}

func TestParseLevel(t *testing.T) {
	valid := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"WARN":  zerolog.WarnLevel,
		"Error": zerolog.ErrorLevel,
	}
	for name, want := range valid {
		got, err := parseLevel(name)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}

	for _, name := range []string{"", "loud", "trace"} {
		if _, err := parseLevel(name); err == nil {
			t.Errorf("parseLevel(%q) should fail", name)
		}
	}
}
