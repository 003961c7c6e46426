package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	appName       = "switcher"
	configFile    = "config.yaml"
	irSetDir      = "irsets"
	schemaVersion = 1
)

// ConfigPathEnvVar overrides the location of the configuration file
const ConfigPathEnvVar = "SWITCHER_CONFIG"

// GetConfigDir returns the per-user configuration directory:
//   - Linux: $XDG_CONFIG_HOME/switcher or $HOME/.config/switcher
//   - macOS: $HOME/.config/switcher
//   - Windows: %LOCALAPPDATA%\switcher
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			profile := os.Getenv("USERPROFILE")
			if profile == "" {
				return "", errors.New("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			base = filepath.Join(profile, "AppData", "Local")
		}
		return filepath.Join(base, appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "darwin" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns the configuration file: $SWITCHER_CONFIG if set,
// otherwise config.yaml in GetConfigDir.
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry loads the registry from GetConfigPath. A missing file yields
// the defaults.
func LoadRegistry() (*Registry, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads a registry from path. A missing file yields the defaults;
// Save writes back to path either way.
func LoadFrom(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		r := NewRegistry()
		r.path = path
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	// files written by hand may omit the version
	if r.Version == 0 {
		r.Version = schemaVersion
	}
	if r.Version != schemaVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", r.Version, schemaVersion)
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
	if err := r.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences in %s: %w", path, err)
	}
	r.path = path
	return &r, nil
}

// Validate checks the preference values a user may have edited
func (p *Preferences) Validate() error {
	if p.DiscoverTimeout < 0 {
		return fmt.Errorf("discover_timeout must not be negative, got %d", p.DiscoverTimeout)
	}
	if p.BridgeAddr != "" {
		if _, _, err := net.SplitHostPort(p.BridgeAddr); err != nil {
			return fmt.Errorf("bridge_addr %q: %w", p.BridgeAddr, err)
		}
	}
	switch strings.ToLower(p.LogLevel) {
	case "", "off", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: use debug, info, warn, error or off", p.LogLevel)
	}
	return nil
}

// Path returns the file the registry is saved to, or "" for a registry
// built with NewRegistry.
func (r *Registry) Path() string { return r.path }

// Save writes the registry back to the file it was loaded from, or to
// GetConfigPath for a new registry.
func (r *Registry) Save() error {
	path := r.path
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	return r.SaveTo(path)
}

const fileHeader = `# Switcher configuration
# Devices are keyed by the hex id announced in their beacon. Nicknames,
# breeze remotes and shutter channel labels may be edited by hand.
`

// SaveTo writes the registry to path through a temporary file in the same
// directory, so a crash never leaves a truncated config behind.
func (r *Registry) SaveTo(path string) error {
	var buf bytes.Buffer
	buf.WriteString(fileHeader + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+configFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	r.path = path
	return nil
}

// IRSetDir returns the directory holding breeze capability sets: the
// ir_set_dir preference, or irsets/ next to the config file. A relative
// preference is taken relative to the config file as well.
func (r *Registry) IRSetDir() (string, error) {
	base := filepath.Dir(r.path)
	if r.path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return "", err
		}
		base = filepath.Dir(p)
	}

	if r.Preferences != nil && r.Preferences.IRSetDir != "" {
		dir := r.Preferences.IRSetDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		return dir, nil
	}
	return filepath.Join(base, irSetDir), nil
}
