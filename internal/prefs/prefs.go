// Package prefs persists gridwatch's per-user view state: colour theme, the
// last viewed events page and whether the status legend is shown.
// Preferences are stored in ~/.config/gridwatch/prefs.toml.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme      string `toml:"theme"`
	Page       int    `toml:"page"`
	ShowLegend bool   `toml:"show_legend"`
}

const (
	defaultPrefsPath = "~/.config/gridwatch/prefs.toml"
	defaultTheme     = "Nightfox"
)

// Default returns the preferences of a first run.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, Page: 1}
}

// Load reads preferences from path (empty uses the default location). A
// missing, unreadable or malformed file yields Default(); prefs never stop
// the dashboard from starting.
func Load(path string) (Prefs, error) {
	return load(afero.NewOsFs(), path), nil
}

// Save writes preferences to path, replacing the file atomically.
func Save(path string, p Prefs) error {
	return save(afero.NewOsFs(), path, p)
}

func load(fs afero.Fs, path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default()
	}
	raw, err := afero.ReadFile(fs, resolved)
	if err != nil {
		return Default()
	}
	p := Default()
	if err := toml.Unmarshal(raw, &p); err != nil {
		return Default()
	}
	return p.normalize()
}

func save(fs afero.Fs, path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	raw, err := toml.Marshal(p.normalize())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp, err := afero.TempFile(fs, dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	_, werr := tmp.Write(raw)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = fs.Rename(tmp.Name(), resolved)
	}
	if werr != nil {
		_ = fs.Remove(tmp.Name())
		return fmt.Errorf("write prefs: %w", werr)
	}
	return nil
}

func (p Prefs) normalize() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
