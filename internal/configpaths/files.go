// Package configpaths locates jctool configuration files.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "jctool"

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, appName), nil
		}
		return "", errors.New("AppData not set")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", appName), nil
	}
	return "", errors.New("HOME not set")
}

// Ext returns the file extension for a config format; unknown formats map to json.
func Ext(format string) string {
	switch format {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	}
	return "json"
}

// DefaultNamedConfigPath returns <config dir>/<baseName>.<ext>.
func DefaultNamedConfigPath(baseName, format string) (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, baseName+"."+Ext(format)), nil
}

// EnsureDir creates the parent directory of filePath.
func EnsureDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0o755)
}

// Candidates are config files grouped by loader.
type Candidates struct {
	JSON, YAML, TOML []string
}

func (c *Candidates) add(dir, base string) {
	c.JSON = append(c.JSON, filepath.Join(dir, base+".json"))
	c.YAML = append(c.YAML, filepath.Join(dir, base+".yaml"), filepath.Join(dir, base+".yml"))
	c.TOML = append(c.TOML, filepath.Join(dir, base+".toml"))
}

// ConfigCandidatePaths lists config files to try, most specific first: the
// user supplied path, the working directory, the user config dir, then
// /etc/jctool on unix.
func ConfigCandidatePaths(userPath string) Candidates {
	var c Candidates

	if userPath != "" {
		switch filepath.Ext(userPath) {
		case ".yaml", ".yml":
			c.YAML = append(c.YAML, userPath)
		case ".toml":
			c.TOML = append(c.TOML, userPath)
		default:
			c.JSON = append(c.JSON, userPath)
		}
	}

	bases := []string{appName, "config", "serve"}
	if wd, err := os.Getwd(); err == nil {
		for _, b := range bases {
			c.add(wd, b)
		}
	}
	if dir, err := DefaultConfigDir(); err == nil {
		for _, b := range bases[1:] {
			c.add(dir, b)
		}
	}
	if runtime.GOOS != "windows" {
		for _, b := range bases[1:] {
			c.add(filepath.Join("/etc", appName), b)
		}
	}
	return c
}
