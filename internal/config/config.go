// Package config handles loading and managing mailidx configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Error is a user-facing configuration problem. Aux carries extra detail,
// usually the underlying cause. The CLI prints it on its own line.
type Error struct {
	Msg string
	Aux string
}

func (e *Error) Error() string {
	if e.Aux == "" {
		return e.Msg
	}
	return e.Msg + ": " + e.Aux
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Language        string `toml:"language"`          // Snowball stemmer language
	HTMLCommand     string `toml:"html_command"`      // External HTML-to-text command; empty uses the built-in converter
	Incremental     bool   `toml:"incremental"`       // Trust checkpoints when a mailbox has only grown
	MaxMessageBytes int64  `toml:"max_message_bytes"` // Messages larger than this are skipped
}

// BrowseConfig holds search browser configuration.
type BrowseConfig struct {
	PageSize    int      `toml:"page_size"`    // Results per page before the terminal size is known
	StrictClamp bool     `toml:"strict_clamp"` // Stop the cursor at the last known result
	MyAddresses []string `toml:"my_addresses"` // Own addresses; listing shows the recipient instead
}

// Config represents the mailidx configuration.
type Config struct {
	Index  IndexConfig  `toml:"index"`
	Browse BrowseConfig `toml:"browse"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default mailidx home directory.
// Respects MAILIDX_HOME environment variable.
func DefaultHome() (string, error) {
	if h := os.Getenv("MAILIDX_HOME"); h != "" {
		return expandPath(h), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &Error{Msg: "cannot determine home directory", Aux: err.Error()}
	}
	return filepath.Join(home, ".mailidx"), nil
}

func defaults(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Index: IndexConfig{
			Language:        "english",
			HTMLCommand:     "elinks -dump",
			MaxMessageBytes: 128 << 20,
		},
		Browse: BrowseConfig{
			PageSize:    10,
			MyAddresses: []string{},
		},
	}
}

// Load resolves the configuration directory and reads config.toml from it.
//
// An empty confdir means the default home, which is created when missing.
// An explicit confdir must already exist. If path is empty the file is
// config.toml inside the configuration directory and may be absent, in
// which case defaults apply. An explicit path must exist.
func Load(confdir, path string) (*Config, error) {
	homeDir, err := resolveHome(confdir)
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := defaults(homeDir)

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if explicit {
			return nil, &Error{Msg: "config file not found", Aux: path}
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("cannot read %s", path), Aux: err.Error()}
	}

	if cfg.Index.MaxMessageBytes <= 0 {
		cfg.Index.MaxMessageBytes = defaults(homeDir).Index.MaxMessageBytes
	}
	if cfg.Browse.PageSize < 1 {
		cfg.Browse.PageSize = 1
	}
	return cfg, nil
}

func resolveHome(confdir string) (string, error) {
	if confdir != "" {
		dir := expandPath(confdir)
		info, err := os.Stat(dir)
		if err != nil {
			return "", &Error{Msg: fmt.Sprintf("%s is not a directory", dir), Aux: err.Error()}
		}
		if !info.IsDir() {
			return "", &Error{Msg: fmt.Sprintf("%s is not a directory", dir)}
		}
		return dir, nil
	}

	dir, err := DefaultHome()
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", &Error{Msg: fmt.Sprintf("cannot create %s", dir), Aux: err.Error()}
		}
		return dir, nil
	case err != nil:
		return "", &Error{Msg: fmt.Sprintf("cannot access %s", dir), Aux: err.Error()}
	case !info.IsDir():
		return "", &Error{Msg: fmt.Sprintf("%s exists and is not a directory", dir)}
	}
	return dir, nil
}

// DatabasePath returns the path to the SQLite index.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.HomeDir, "index.db")
}

// expandPath expands a leading ~ or ~/ to the user's home directory.
// ~user forms are left alone.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
