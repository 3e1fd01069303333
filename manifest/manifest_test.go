package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "loom.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[source]
dirs = ["src"]
entry = "Main run"

[vm]
yield-on-send = true
record = "methods.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("source dirs = %v", m.Source.Dirs)
	}
	if m.Source.Entry != "Main run" {
		t.Errorf("entry = %q", m.Source.Entry)
	}
	if !m.VM.YieldOnSend {
		t.Error("yield-on-send not read")
	}
	if m.VM.Record != "methods.db" {
		t.Errorf("record = %q", m.VM.Record)
	}
	if m.Dir != dir {
		t.Errorf("dir = %q, want %q", m.Dir, dir)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "bare"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.VM.YieldOnSend {
		t.Error("yield-on-send should default to false")
	}
	if m.VM.Record != "" {
		t.Error("record should default to empty")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error for a missing loom.toml")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("Exists on empty dir")
	}
	writeManifest(t, dir, "[project]\nname = \"x\"\n")
	if !Exists(dir) {
		t.Error("Exists after write")
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"a.loom", "nested/b.loom", "ignored.txt"} {
		if err := os.WriteFile(filepath.Join(src, f), []byte("42"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeManifest(t, dir, "[source]\ndirs = [\"src\"]\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	files, err := m.SourceFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 .loom files", files)
	}
}
