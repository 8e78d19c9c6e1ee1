package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "logq"

// PlatformDataDir returns the platform-specific data directory, or
// LOGQ_DATA_DIR when set.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/logq/
//   - Linux:   ~/.local/share/logq/
//   - Windows: %LOCALAPPDATA%\logq\
func PlatformDataDir() string {
	if v := os.Getenv("LOGQ_DATA_DIR"); v != "" {
		return v
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "windows":
		return filepath.Join(windowsLocalAppData(), appName)
	default:
		return xdgDir("XDG_DATA_HOME", ".local/share")
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", appName)
	default:
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	case "windows":
		return filepath.Join(windowsLocalAppData(), appName, "logs")
	default:
		return xdgDir("XDG_STATE_HOME", ".local/state")
	}
}

func xdgDir(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(homeDir(), filepath.FromSlash(fallback), appName)
}

func windowsLocalAppData() string {
	if v := os.Getenv("LOCALAPPDATA"); v != "" {
		return v
	}
	return filepath.Join(homeDir(), "AppData", "Local")
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
