package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeLoggingConfig(t *testing.T, ws string, cfg loggingConfig) {
	t.Helper()
	dir := filepath.Join(ws, ".noesis")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(configFile{Logging: cfg})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func resetLogging() {
	CloseAll()
	configMu.Lock()
	config = loggingConfig{}
	configLoaded = false
	logLevel = LevelInfo
	configMu.Unlock()
	logsDir = ""
	workspace = ""
}

func TestInitialize_NoConfigIsSilent(t *testing.T) {
	defer resetLogging()

	ws := t.TempDir()
	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if IsDebugMode() {
		t.Fatal("debug mode should default to off")
	}

	// No logs directory should be created in production mode
	if _, err := os.Stat(filepath.Join(ws, ".noesis", "logs")); !os.IsNotExist(err) {
		t.Fatal("logs directory should not exist when debug mode is off")
	}
}

func TestInitialize_DebugModeCreatesLogs(t *testing.T) {
	defer resetLogging()

	ws := t.TempDir()
	writeLoggingConfig(t, ws, loggingConfig{DebugMode: true, Level: "debug"})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Meta("paradigm selected: %s", "rule_engine")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".noesis", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one log file")
	}
}

func TestCategoryFiltering(t *testing.T) {
	defer resetLogging()

	ws := t.TempDir()
	writeLoggingConfig(t, ws, loggingConfig{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"rules": true},
	})

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryRules) {
		t.Fatal("rules category should be enabled")
	}
	if IsCategoryEnabled(CategoryBayes) {
		t.Fatal("bayes category should be disabled")
	}
}

func TestTimerStop(t *testing.T) {
	defer resetLogging()

	timer := StartTimer(CategoryMeta, "TestOperation")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()

	if elapsed < 5*time.Millisecond {
		t.Fatalf("elapsed %v too short", elapsed)
	}
}
