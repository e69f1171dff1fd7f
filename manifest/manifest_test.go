package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "wollok.toml"), []byte(content), 0o644); err != nil {
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
image = "demo.image"
entry = "demo.main"

[vm]
decimal-precision = 3
max-frame-stack = 256
max-operand-stack = 4096
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Project.Name != "demo" {
		t.Errorf("project name: got %q", m.Project.Name)
	}
	if m.Source.Image != "demo.image" || m.Source.Entry != "demo.main" {
		t.Errorf("source config: got %+v", m.Source)
	}
	if m.VM.DecimalPrecision != 3 || m.VM.MaxFrameStackSize != 256 || m.VM.MaxOperandStackSize != 4096 {
		t.Errorf("vm config: got %+v", m.VM)
	}
	if m.Dir == "" {
		t.Error("Dir should be set at load time")
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
		t.Fatalf("load failed: %v", err)
	}
	if m.Source.Image != "main.image" {
		t.Errorf("image should default to main.image, got %q", m.Source.Image)
	}
	if m.VM.DecimalPrecision != 0 {
		t.Error("unset vm tunables should stay zero so callers keep their defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("loading a directory without wollok.toml should fail")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "not toml [[[")
	if _, err := Load(dir); err == nil {
		t.Error("malformed toml should fail")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"up\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if m == nil || m.Project.Name != "up" {
		t.Error("FindAndLoad should locate the manifest in an ancestor directory")
	}
}
