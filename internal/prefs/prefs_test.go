package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func writePrefs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p != Default() {
		t.Fatalf("Load = %+v, want %+v", p, Default())
	}
}

func TestLoad_ReadsDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "gridwatch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	body := "theme = \"Slate\"\npage = 3\nshow_legend = true\n"
	if err := os.WriteFile(filepath.Join(dir, "prefs.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Prefs{Theme: "Slate", Page: 3, ShowLegend: true}
	if p != want {
		t.Fatalf("Load = %+v, want %+v", p, want)
	}
}

func TestSave_CreatesFileAndDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "prefs.toml")

	want := Prefs{Theme: "Kanagawa", Page: 4}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestLoad_NormalizesValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty theme", "theme = \"\"\n"},
		{"zero page", "page = 0\n"},
		{"negative page", "theme = \"  \"\npage = -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Load(writePrefs(t, tt.body))
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if p.Theme != defaultTheme || p.Page != 1 {
				t.Fatalf("Load = %+v, want theme %q page 1", p, defaultTheme)
			}
		})
	}
}

func TestLoad_InvalidTOMLFallsBackToDefault(t *testing.T) {
	p, err := Load(writePrefs(t, "not valid toml {{{\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p != Default() {
		t.Fatalf("Load = %+v, want defaults", p)
	}
}

func TestSave_ReplacesWithoutLeavingTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/home/op/.config/gridwatch/prefs.toml"

	if err := save(fs, path, Prefs{Theme: "Slate", Page: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := save(fs, path, Prefs{Theme: "Kanagawa", Page: 3, ShowLegend: true}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	want := Prefs{Theme: "Kanagawa", Page: 3, ShowLegend: true}
	if got := load(fs, path); got != want {
		t.Fatalf("load = %+v, want %+v", got, want)
	}

	entries, err := afero.ReadDir(fs, filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("prefs dir has %d files, want 1", len(entries))
	}
}
