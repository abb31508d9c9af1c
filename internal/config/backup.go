package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the maximum number of config backups to keep.
	MaxBackups = 3

	// BackupSuffix marks backup files: config.yaml.bak.20260102-150405.
	BackupSuffix = ".bak"
)

// BackupFile copies path to a timestamped backup next to it and prunes
// backups beyond MaxBackups. A missing file is not backed up and returns "".
func BackupFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s%s.%s", path, BackupSuffix, time.Now().Format("20060102-150405.000"))
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	// Pruning is best effort; the backup itself succeeded.
	if backups, err := ListBackups(path); err == nil && len(backups) > MaxBackups {
		for _, old := range backups[MaxBackups:] {
			_ = os.Remove(old)
		}
	}

	return backupPath, nil
}

// ListBackups returns the backups of path, newest first.
func ListBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + BackupSuffix + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}

	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// WriteUserConfig writes c to the user config path, backing up any existing file.
func WriteUserConfig(c *Config) (path, backup string, err error) {
	path = GetUserConfigPath()
	if backup, err = BackupFile(path); err != nil {
		return "", "", err
	}
	if err = c.WriteYAML(path); err != nil {
		return "", "", err
	}
	return path, backup, nil
}
