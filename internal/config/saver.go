package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Save writes config as YAML with atomic write + backup
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check write permissions before attempting write
	if err := checkWritePermission(path); err != nil {
		return err
	}

	// 1. Backup existing config
	if err := backupConfig(path); err != nil {
		// Continue anyway, the write itself is still atomic
		fmt.Fprintf(os.Stderr, "Warning: failed to create backup: %v\n", err)
	}

	// 2. Marshal YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 3. Round-trip to make sure what we write can be read back
	var check Config
	if err := yaml.Unmarshal(data, &check); err != nil {
		return &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Hint:    "Check configuration values and try again",
		}
	}

	// 4. Atomic write; the file may hold a password
	return atomicWrite(path, data, 0600)
}

func backupConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // First run, no backup needed
		}
		return err
	}

	return os.WriteFile(path+".bak", data, 0600)
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

// checkWritePermission fails early with a fix hint when neither the config
// directory nor an existing config file can be written.
func checkWritePermission(path string) error {
	dir := filepath.Dir(path)
	if err := probeDir(dir); err != nil {
		return writeDenied(dir, "Cannot create files in the config directory")
	}

	if _, err := os.Stat(path); err == nil {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return writeDenied(path, "Config file is read-only")
		}
		f.Close()
	}
	return nil
}

// probeDir creates and removes a scratch file in dir.
func probeDir(dir string) error {
	f, err := os.CreateTemp(dir, ".ric-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func writeDenied(path, details string) *PermissionError {
	fix := fmt.Sprintf("Run: chmod u+w %s", path)
	if runtime.GOOS == "windows" {
		fix = fmt.Sprintf("Grant your user 'Write' permission on %s", path)
	}
	return &PermissionError{Path: path, Op: "write", Fix: fix, Details: details}
}
