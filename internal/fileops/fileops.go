package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dooshek/multiboxer/internal/logger"
	"github.com/dooshek/multiboxer/internal/types"
)

// ErrConfigNotFound is returned when a configuration file does not exist
var ErrConfigNotFound = errors.New("configuration file not found")

// ErrProcessAlreadyRunning is returned when the multiboxer process is already running
var ErrProcessAlreadyRunning = errors.New("multiboxer process is already running")

const (
	pidFilename     = "multiboxer.pid"
	windowsFilename = "windows"
)

// FileOps interface defines operations for managing files in the multiboxer config directory
type FileOps interface {
	// GetConfigDir returns the full path to the multiboxer config directory
	GetConfigDir() string

	// SaveConfig saves data to a file in the config directory
	SaveConfig(filename string, data []byte) error

	// LoadConfig loads data from a file in the config directory
	LoadConfig(filename string) ([]byte, error)

	// SaveWindows records the last scanned window group
	SaveWindows(ids []types.WindowID) error

	// LoadWindows returns the last scanned window group
	LoadWindows() ([]types.WindowID, error)

	// EnsureDirectories creates necessary directories if they don't exist
	EnsureDirectories() error

	// SavePID saves the current process ID to a file
	SavePID() error

	// CheckPID checks if another instance is running
	// Returns ErrProcessAlreadyRunning if another instance is running
	CheckPID() error

	// CleanupPID removes the PID file
	CleanupPID() error

	// HandleExit ensures proper cleanup of PID file on application exit
	HandleExit()
}

// DefaultFileOps implements FileOps interface
type DefaultFileOps struct {
	configDir string
}

// NewDefaultFileOps creates a new DefaultFileOps instance
func NewDefaultFileOps() (*DefaultFileOps, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewFileOps(filepath.Join(homeDir, ".config", "multiboxer")), nil
}

// NewFileOps uses dir as the config directory.
func NewFileOps(dir string) *DefaultFileOps {
	return &DefaultFileOps{configDir: dir}
}

func (f *DefaultFileOps) GetConfigDir() string {
	return f.configDir
}

// SaveConfig writes through a temporary file and a rename, so a watcher
// never reads a half-written file.
func (f *DefaultFileOps) SaveConfig(filename string, data []byte) error {
	path := filepath.Join(f.configDir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (f *DefaultFileOps) LoadConfig(filename string) ([]byte, error) {
	path := filepath.Join(f.configDir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrConfigNotFound
	}
	return os.ReadFile(path)
}

func (f *DefaultFileOps) SaveWindows(ids []types.WindowID) error {
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = id.String()
	}
	path := filepath.Join(f.configDir, windowsFilename)
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

func (f *DefaultFileOps) LoadWindows() ([]types.WindowID, error) {
	data, err := os.ReadFile(filepath.Join(f.configDir, windowsFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []types.WindowID
	for _, line := range strings.Split(string(data), "\n") {
		n, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, types.WindowID(n))
	}
	return ids, nil
}

func (f *DefaultFileOps) EnsureDirectories() error {
	if err := os.MkdirAll(f.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

func (f *DefaultFileOps) getPIDFilePath() string {
	return filepath.Join(f.configDir, pidFilename)
}

func (f *DefaultFileOps) SavePID() error {
	pidFile := f.getPIDFilePath()
	pid := os.Getpid()
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0o644)
}

func (f *DefaultFileOps) CheckPID() error {
	pidFile := f.getPIDFilePath()

	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // PID file doesn't exist, application is not running
		}
		return fmt.Errorf("error reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid == os.Getpid() {
		return nil
	}

	// Check if process exists by sending signal 0
	process, err := os.FindProcess(pid)
	if err != nil {
		return nil // Process doesn't exist
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return ErrProcessAlreadyRunning
	}

	// If we get here, the process doesn't exist but the PID file does
	logger.Debug("Found stale PID file, will be overwritten")
	return nil
}

func (f *DefaultFileOps) CleanupPID() error {
	return os.Remove(f.getPIDFilePath())
}

func (f *DefaultFileOps) HandleExit() {
	if err := f.CleanupPID(); err != nil && !os.IsNotExist(err) {
		logger.Error("Failed to cleanup PID file on exit", err)
	}
}
