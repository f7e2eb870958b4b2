package systrace

// adb.go runs shell commands on an Android device through adb.

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// CommandRunner runs a shell command line on the device and returns its
// standard output.
type CommandRunner interface {
	Shell(ctx context.Context, command string) ([]byte, error)
}

// ADB runs commands through the adb binary. Each command is a separate
// adb invocation, so an ADB can be used from several goroutines.
type ADB struct {
	logger zerolog.Logger
	device string
	binary string
}

// ADBOption configures an ADB.
type ADBOption func(*ADB)

// WithBinary sets the adb binary, "adb" from PATH by default.
func WithBinary(path string) ADBOption {
	return func(a *ADB) {
		a.binary = path
	}
}

// NewADB returns a runner for device. An empty device selects the only
// attached device.
func NewADB(logger zerolog.Logger, device string, opts ...ADBOption) *ADB {
	a := &ADB{
		logger: logger,
		device: device,
		binary: "adb",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Args returns the adb arguments running command in a device shell.
func (a *ADB) Args(command string) []string {
	var args []string
	if a.device != "" {
		args = append(args, "-s", a.device)
	}
	return append(args, "shell", command)
}

// Shell implements CommandRunner.
func (a *ADB) Shell(ctx context.Context, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, a.binary, a.Args(command)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.logger.Debug().
		Str("device", a.device).
		Str("command", command).
		Msg("Running device command")

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if strings.Contains(errMsg, "no devices") || strings.Contains(errMsg, "not found") {
			return nil, fmt.Errorf("device %q not available: %s", a.device, errMsg)
		}
		return nil, fmt.Errorf("command failed: %w (stderr: %s)", err, errMsg)
	}

	return stdout.Bytes(), nil
}
