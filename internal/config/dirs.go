package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	clientAppName = "wifiprov"
	daemonAppName = "wifiprovd"
	registryFile  = "devices.yaml"
)

// GetConfigDir returns the OS-appropriate configuration directory for app.
//   - Linux: $XDG_CONFIG_HOME/<app> or $HOME/.config/<app>
//   - macOS: $HOME/.config/<app>
//   - Windows: %LOCALAPPDATA%\<app>
func GetConfigDir(app string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, app), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", app), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", app), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, app), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", app), nil
	}
}

// RegistryPath returns the default location of the client registry.
func RegistryPath() (string, error) {
	dir, err := GetConfigDir(clientAppName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, registryFile), nil
}
