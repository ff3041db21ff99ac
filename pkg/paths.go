package pkg

import (
	"fmt"
	"os"
	"path/filepath"
)

// UserConfigDir resolves (and creates) the per-platform configuration
// directory for app: %APPDATA%\<app> on Windows, ~/Library/Application
// Support/<app> on macOS, ~/.config/<app> on Linux. When the platform
// directory cannot be created it falls back to a hidden .<app> directory
// under the current working directory.
func UserConfigDir(app string) (string, error) {
	if app == "" {
		return "", fmt.Errorf("app name must not be empty")
	}

	if base, err := os.UserConfigDir(); err == nil {
		dir := filepath.Join(base, app)
		if err := os.MkdirAll(dir, 0o700); err == nil {
			return dir, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	dir := filepath.Join(cwd, "."+app)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating fallback config directory %s: %w", dir, err)
	}
	return dir, nil
}
