package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.docsearch/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsearch", "logs")
	}
	return filepath.Join(home, ".docsearch", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docsearch.log")
}

// FindLogFile returns explicit if it exists, otherwise the default log path.
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
	return "", fmt.Errorf("no log file found at %s\n\nTo generate logs:\n  docsearch serve", path)
}
