package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.baworkbench/logs, or a temp directory when the
// home directory cannot be resolved.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".baworkbench", "logs")
	}
	return filepath.Join(home, ".baworkbench", "logs")
}

// DefaultLogPath returns the workbench log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "workbench.log")
}

// FindLogFile returns explicit if it exists, otherwise the default log
// path if it exists.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found, expected at %s", path)
}
