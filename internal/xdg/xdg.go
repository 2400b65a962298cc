// Package xdg resolves the XDG base directories pathogen reads its
// configuration from and writes campaign results to.
package xdg

import (
	"os"
	"path/filepath"
)

type XDGDirs struct {
	configHome string
	stateHome  string
	configDirs []string
}

// NewXDGDirs reads XDG_CONFIG_HOME, XDG_STATE_HOME and XDG_CONFIG_DIRS,
// falling back to the defaults of the base directory specification.
func NewXDGDirs() *XDGDirs {
	home := homeDir()
	x := &XDGDirs{
		configHome: envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		stateHome:  envOr("XDG_STATE_HOME", filepath.Join(home, ".local", "state")),
		configDirs: []string{"/etc/xdg"},
	}
	if dirs := os.Getenv("XDG_CONFIG_DIRS"); dirs != "" {
		x.configDirs = filepath.SplitList(dirs)
	}
	return x
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func (x *XDGDirs) ConfigHome() string {
	return x.configHome
}

func (x *XDGDirs) StateHome() string {
	return x.stateHome
}

// ConfigDirs lists configuration base directories, most preferred first.
func (x *XDGDirs) ConfigDirs() []string {
	return append([]string{x.configHome}, x.configDirs...)
}

// AppStateDir is where app keeps results between runs.
func (x *XDGDirs) AppStateDir(app string) string {
	return filepath.Join(x.stateHome, app)
}

// FindConfigFile returns the first existing app/file under ConfigDirs, or "".
func (x *XDGDirs) FindConfigFile(app string, file string) string {
	for _, dir := range x.ConfigDirs() {
		path := filepath.Join(dir, app, file)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
