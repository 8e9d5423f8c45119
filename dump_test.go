package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	return &App{settings: &SettingsStore{
		path: filepath.Join(t.TempDir(), "settings.json"),
		data: map[string]json.RawMessage{},
	}}
}

func seedCardFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("seed mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
}

func TestDumpFileCreatesDestinationFolder(t *testing.T) {
	root := t.TempDir()
	seedCardFile(t, root, "3ds/boot9.bin", "boot9-bytes")

	dest := filepath.Join(t.TempDir(), "nested", "dumps")
	rec := &eventRecorder{}
	ok, msg := dumpFile(root, "3ds/boot9.bin", dest, rec.report)
	if !ok {
		t.Fatalf("dumpFile failed: %s", msg)
	}
	if got := mustReadFile(t, filepath.Join(dest, "boot9.bin")); got != "boot9-bytes" {
		t.Fatalf("dumped content mismatch: %q", got)
	}
	final := rec.finalEvent(t)
	if final.percent != 100 || final.status != statusSuccess {
		t.Fatalf("expected a 100%% success event, got %+v", final)
	}
}

func TestDumpFileMissingSource(t *testing.T) {
	rec := &eventRecorder{}
	ok, msg := dumpFile(t.TempDir(), "3ds/boot9.bin", t.TempDir(), rec.report)
	if ok {
		t.Fatalf("expected failure for a missing source file")
	}
	if !strings.Contains(msg, "not found") {
		t.Fatalf("expected a not-found message, got %q", msg)
	}
	if rec.finalEvent(t).status != statusError {
		t.Fatalf("expected a terminal error event, got %+v", rec.finalEvent(t))
	}
}

func TestDumpSelectedContinuesPastFailures(t *testing.T) {
	root := t.TempDir()
	seedCardFile(t, root, "boot9strap/firm0_enc.bak", "firm0")
	seedCardFile(t, root, "3ds/boot9.bin", "boot9")
	// bios7i_part1.bin is deliberately absent.

	dest := t.TempDir()
	app := newTestApp(t)
	result := app.DumpSelected(root, []string{"firm0_enc.bak", "bios7i_part1.bin", "boot9.bin"}, dest)

	if result.Total != 3 || result.Succeeded != 2 {
		t.Fatalf("expected 2 of 3 dumped, got %d of %d", result.Succeeded, result.Total)
	}
	if result.Folder != dest {
		t.Fatalf("unexpected result folder %q", result.Folder)
	}
	if got := mustReadFile(t, filepath.Join(dest, "firm0_enc.bak")); got != "firm0" {
		t.Fatalf("firm0_enc.bak content mismatch: %q", got)
	}
	if got := mustReadFile(t, filepath.Join(dest, "boot9.bin")); got != "boot9" {
		t.Fatalf("boot9.bin content mismatch: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "bios7i_part1.bin")); !os.IsNotExist(err) {
		t.Fatalf("missing source must not produce a destination file, stat err=%v", err)
	}

	var failed *DumpFileResult
	for i := range result.Files {
		if result.Files[i].Key == "bios7i_part1.bin" {
			failed = &result.Files[i]
		}
	}
	if failed == nil || failed.Success {
		t.Fatalf("expected a per-file failure for bios7i_part1.bin, got %+v", failed)
	}
}

func TestDumpSelectedIgnoresUnknownKeys(t *testing.T) {
	root := t.TempDir()
	seedCardFile(t, root, "3ds/boot9.bin", "boot9")

	app := newTestApp(t)
	result := app.DumpSelected(root, []string{"boot9.bin", "nonsense.key"}, t.TempDir())
	if result.Total != 1 || result.Succeeded != 1 {
		t.Fatalf("unknown keys must not count, got %d of %d", result.Succeeded, result.Total)
	}
}

func TestDumpFolderFallsBackToDefault(t *testing.T) {
	app := newTestApp(t)
	if got := app.DumpFolder(); got != defaultDumpFolder() {
		t.Fatalf("expected the default dump folder, got %q", got)
	}
	if err := app.settings.SetString(settingKeyDumpFolder, "/somewhere/else"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if got := app.DumpFolder(); got != "/somewhere/else" {
		t.Fatalf("expected the persisted folder, got %q", got)
	}
}

func TestDumpOptionByKey(t *testing.T) {
	opt, ok := dumpOptionByKey("boot11.bin")
	if !ok || opt.Path != "3ds/boot11.bin" {
		t.Fatalf("unexpected option %+v ok=%v", opt, ok)
	}
	if _, ok := dumpOptionByKey("boot12.bin"); ok {
		t.Fatalf("unknown key must not resolve")
	}
}
