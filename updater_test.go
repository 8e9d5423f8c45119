package main

import (
	"archive/zip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedEvent struct {
	message string
	percent int
	status  string
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) report(message string, percent int, status string) {
	r.events = append(r.events, recordedEvent{message, percent, status})
}

func (r *eventRecorder) finalEvent(t *testing.T) recordedEvent {
	t.Helper()
	if len(r.events) == 0 {
		t.Fatalf("no progress events recorded")
	}
	return r.events[len(r.events)-1]
}

func (r *eventRecorder) assertMonotonic(t *testing.T) {
	t.Helper()
	last := 0
	for _, ev := range r.events {
		if ev.percent < last {
			t.Fatalf("progress went backwards: %d after %d (%q)", ev.percent, last, ev.message)
		}
		last = ev.percent
	}
}

func (r *eventRecorder) hasStatus(status string) bool {
	for _, ev := range r.events {
		if ev.status == status {
			return true
		}
	}
	return false
}

// writeZipFile builds a zip at path. Entries ending in "/" become directories.
func writeZipFile(t *testing.T, path string, entries []struct{ name, content string }) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip failed: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		if strings.HasSuffix(e.name, "/") {
			if _, err := zw.Create(e.name); err != nil {
				t.Fatalf("create zip dir failed: %v", err)
			}
			continue
		}
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create zip entry failed: %v", err)
		}
		if _, err := io.WriteString(w, e.content); err != nil {
			t.Fatalf("write zip entry failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file failed: %v", err)
	}
}

func serveFile(t *testing.T, path string) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}))
	t.Cleanup(ts.Close)
	return ts.URL + "/" + filepath.Base(path)
}

func mustReadFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s failed: %v", path, err)
	}
	return string(b)
}

func TestUpdateLumaCopiesExpectedFiles(t *testing.T) {
	work := t.TempDir()
	zipPath := filepath.Join(work, "luma.zip")
	writeZipFile(t, zipPath, []struct{ name, content string }{
		{"boot.firm", "firm-payload"},
		{"boot.3dsx", "3dsx-payload"},
		{"luma/config/config.ini", "# Luma3DS v13.0.2\n"},
		{"luma/config/sub/nested.bin", "must-not-be-copied"},
	})

	root := t.TempDir()
	rec := &eventRecorder{}
	ok, msg := updateLuma(root, serveFile(t, zipPath), rec.report)
	if !ok {
		t.Fatalf("updateLuma failed: %s", msg)
	}

	if got := mustReadFile(t, filepath.Join(root, "boot.firm")); got != "firm-payload" {
		t.Fatalf("boot.firm content mismatch: %q", got)
	}
	if got := mustReadFile(t, filepath.Join(root, "boot.3dsx")); got != "3dsx-payload" {
		t.Fatalf("boot.3dsx content mismatch: %q", got)
	}
	if got := mustReadFile(t, filepath.Join(root, "luma", "config", "config.ini")); !strings.Contains(got, "v13.0.2") {
		t.Fatalf("config.ini content mismatch: %q", got)
	}
	// The config copy is non-recursive: nested directories must not be copied.
	if _, err := os.Stat(filepath.Join(root, "luma", "config", "sub")); !os.IsNotExist(err) {
		t.Fatalf("expected luma/config/sub to be skipped, stat err=%v", err)
	}

	rec.assertMonotonic(t)
	final := rec.finalEvent(t)
	if final.percent != 100 || final.status != statusSuccess {
		t.Fatalf("expected a 100%% success event, got %+v", final)
	}
}

func TestUpdateLumaOptionalFileMissingIsOnlyAWarning(t *testing.T) {
	work := t.TempDir()
	zipPath := filepath.Join(work, "luma.zip")
	writeZipFile(t, zipPath, []struct{ name, content string }{
		{"boot.firm", "firm-payload"},
		{"luma/config/config.ini", "# Luma3DS v13.0.2\n"},
	})

	root := t.TempDir()
	rec := &eventRecorder{}
	ok, msg := updateLuma(root, serveFile(t, zipPath), rec.report)
	if !ok {
		t.Fatalf("updateLuma should succeed without boot.3dsx: %s", msg)
	}
	if !rec.hasStatus(statusWarning) {
		t.Fatalf("expected a warning event for the missing boot.3dsx")
	}
	final := rec.finalEvent(t)
	if final.percent != 100 || final.status != statusSuccess {
		t.Fatalf("expected a 100%% success event, got %+v", final)
	}
}

func TestUpdateLumaCorruptArchive(t *testing.T) {
	work := t.TempDir()
	bogus := filepath.Join(work, "luma.zip")
	if err := os.WriteFile(bogus, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatalf("write bogus zip failed: %v", err)
	}

	root := t.TempDir()
	rec := &eventRecorder{}
	ok, msg := updateLuma(root, serveFile(t, bogus), rec.report)
	if ok {
		t.Fatalf("expected failure on a corrupt archive")
	}
	if !strings.Contains(msg, "corrupted") {
		t.Fatalf("expected a corruption message, got %q", msg)
	}
	final := rec.finalEvent(t)
	if final.status != statusError {
		t.Fatalf("expected a terminal error event, got %+v", final)
	}
	if final.percent == 100 {
		t.Fatalf("a failed update must not reach 100%%")
	}
}

func TestUpdateLumaNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	rec := &eventRecorder{}
	ok, msg := updateLuma(t.TempDir(), ts.URL+"/luma.zip", rec.report)
	if ok {
		t.Fatalf("expected failure on a 404 download")
	}
	if !strings.Contains(msg, "network error") {
		t.Fatalf("expected a network error message, got %q", msg)
	}
}

func TestUpdateGodMode9FindsFirmAnywhere(t *testing.T) {
	work := t.TempDir()
	zipPath := filepath.Join(work, "gm9.zip")
	writeZipFile(t, zipPath, []struct{ name, content string }{
		{"GodMode9-v2.1.1/elf/GodMode9.elf", "elf"},
		{"GodMode9-v2.1.1/GodMode9.firm", "gm9-firm"},
	})

	root := t.TempDir()
	rec := &eventRecorder{}
	ok, msg := updateGodMode9(root, serveFile(t, zipPath), rec.report)
	if !ok {
		t.Fatalf("updateGodMode9 failed: %s", msg)
	}
	if got := mustReadFile(t, filepath.Join(root, "luma", "payloads", "GodMode9.firm")); got != "gm9-firm" {
		t.Fatalf("GodMode9.firm content mismatch: %q", got)
	}
	rec.assertMonotonic(t)
	final := rec.finalEvent(t)
	if final.percent != 100 || final.status != statusSuccess {
		t.Fatalf("expected a 100%% success event, got %+v", final)
	}
}

func TestUpdateGodMode9RequiredFirmMissing(t *testing.T) {
	work := t.TempDir()
	zipPath := filepath.Join(work, "gm9.zip")
	writeZipFile(t, zipPath, []struct{ name, content string }{
		{"gm9/support/new.db", "db"},
	})

	root := t.TempDir()
	rec := &eventRecorder{}
	ok, msg := updateGodMode9(root, serveFile(t, zipPath), rec.report)
	if ok {
		t.Fatalf("expected failure when GodMode9.firm is absent")
	}
	if !strings.Contains(msg, "GodMode9.firm") {
		t.Fatalf("expected the firm name in the message, got %q", msg)
	}
	for _, ev := range rec.events {
		if ev.percent == 100 {
			t.Fatalf("a failed update must not reach 100%%: %+v", ev)
		}
	}
}

func TestUpdateGodMode9MergePreservesScripts(t *testing.T) {
	work := t.TempDir()
	zipPath := filepath.Join(work, "gm9.zip")
	writeZipFile(t, zipPath, []struct{ name, content string }{
		{"GodMode9.firm", "gm9-firm"},
		{"gm9/scripts/shipped.gm9", "shipped"},
		{"gm9/support/new.db", "new-db"},
		{"gm9/readme.txt", "new-readme"},
	})

	root := t.TempDir()
	// Pre-existing card content: user scripts, a stale support dir, an old
	// readme, and a directory the archive does not ship.
	seed := map[string]string{
		"gm9/scripts/user.gm9": "my precious script",
		"gm9/support/old.db":   "old-db",
		"gm9/readme.txt":       "old-readme",
		"gm9/out/dump.bin":     "user dump",
	}
	for p, content := range seed {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("seed mkdir failed: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("seed write failed: %v", err)
		}
	}

	rec := &eventRecorder{}
	ok, msg := updateGodMode9(root, serveFile(t, zipPath), rec.report)
	if !ok {
		t.Fatalf("updateGodMode9 failed: %s", msg)
	}

	// scripts is untouched: user content intact, shipped script not imposed.
	if got := mustReadFile(t, filepath.Join(root, "gm9", "scripts", "user.gm9")); got != "my precious script" {
		t.Fatalf("user script was modified: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "gm9", "scripts", "shipped.gm9")); !os.IsNotExist(err) {
		t.Fatalf("scripts dir must not receive archive content, stat err=%v", err)
	}

	// support was replaced wholesale: no stale files survive.
	if _, err := os.Stat(filepath.Join(root, "gm9", "support", "old.db")); !os.IsNotExist(err) {
		t.Fatalf("expected stale support/old.db to be gone, stat err=%v", err)
	}
	if got := mustReadFile(t, filepath.Join(root, "gm9", "support", "new.db")); got != "new-db" {
		t.Fatalf("support/new.db content mismatch: %q", got)
	}

	// plain files are overwritten.
	if got := mustReadFile(t, filepath.Join(root, "gm9", "readme.txt")); got != "new-readme" {
		t.Fatalf("readme.txt not overwritten: %q", got)
	}

	// directories absent from the archive are left alone.
	if got := mustReadFile(t, filepath.Join(root, "gm9", "out", "dump.bin")); got != "user dump" {
		t.Fatalf("unrelated directory was touched: %q", got)
	}
}

func TestExtractZipArchiveRejectsEscapingEntries(t *testing.T) {
	work := t.TempDir()
	zipPath := filepath.Join(work, "evil.zip")
	writeZipFile(t, zipPath, []struct{ name, content string }{
		{"../escape.txt", "evil"},
	})

	err := extractZipArchive(zipPath, filepath.Join(work, "out"))
	if err == nil {
		t.Fatalf("expected an error for a path-traversal entry")
	}
	if _, statErr := os.Stat(filepath.Join(work, "escape.txt")); !os.IsNotExist(statErr) {
		t.Fatalf("entry escaped the extraction dir")
	}
}
