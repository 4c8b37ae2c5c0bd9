package artifacts

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestArchive(t *testing.T) {
	appDir := t.TempDir()
	root := t.TempDir()
	log := filepath.Join(appDir, "logs", "jvm-run.log")
	touch(t, log)

	a := NewArchiver(root, testLogger())
	if err := a.Archive(log, "quarkus", "jax-rs-minimal", "jvm"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	dst := filepath.Join(root, "quarkus", "jax-rs-minimal", "jvm", "jvm-run.log")
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	if string(data) != "jvm-run.log" {
		t.Errorf("archived content = %q", data)
	}
	if !exists(log) {
		t.Error("source log should be left in place")
	}
}

func TestArchiveMissingFile(t *testing.T) {
	root := t.TempDir()
	a := NewArchiver(root, testLogger())

	if err := a.Archive(filepath.Join(t.TempDir(), "never-written.log"), "s", "a", "m"); err != nil {
		t.Errorf("missing log should be skipped, got %v", err)
	}
	if exists(filepath.Join(root, "s")) {
		t.Error("no archive dir should be created for a missing log")
	}
}

func TestArchiveDirSanitizes(t *testing.T) {
	a := NewArchiver("/archive", testLogger())
	if got, want := a.Dir("suite", "../escape", "a/b"), filepath.Join("/archive", "suite", "__escape", "a_b"); got != want {
		t.Errorf("Dir = %q, want %q", got, want)
	}
	if got, want := a.SuiteDir("nightly/jdk21"), filepath.Join("/archive", "nightly_jdk21"); got != want {
		t.Errorf("SuiteDir = %q, want %q", got, want)
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "target", "classes", "App.class"))
	touch(t, filepath.Join(dir, "logs", "jvm-build.log"))
	touch(t, filepath.Join(dir, "sub", "nested", "scratch.tmp"))
	touch(t, filepath.Join(dir, "pom.xml"))
	touch(t, filepath.Join(dir, "src", "main", "App.java"))

	c := NewCleaner(testLogger())
	if err := c.Clean(dir, []string{"target", "logs", "**/*.tmp", "does-not-exist"}); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	for _, gone := range []string{"target", "logs", "sub/nested/scratch.tmp"} {
		if exists(filepath.Join(dir, gone)) {
			t.Errorf("%s should be removed", gone)
		}
	}
	for _, kept := range []string{"pom.xml", "src/main/App.java"} {
		if !exists(filepath.Join(dir, kept)) {
			t.Errorf("%s should be kept", kept)
		}
	}
}

func TestCleanInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "target", "x"))

	err := NewCleaner(testLogger()).Clean(dir, []string{"[", "target"})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
	if exists(filepath.Join(dir, "target")) {
		t.Error("valid patterns should still be applied")
	}
}

func TestCleanMissingDir(t *testing.T) {
	err := NewCleaner(testLogger()).Clean(filepath.Join(t.TempDir(), "absent"), []string{"target"})
	if err != nil {
		t.Errorf("cleaning a missing dir should be a no-op, got %v", err)
	}
}
