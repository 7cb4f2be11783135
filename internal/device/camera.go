// Package device drives the hardware around the capture loop: the camera,
// its power line, the climate sensor and the host reboot.
package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"baucam/internal/timelapse"
)

// killGrace bounds how long output pipes may stay open after the tool is killed.
const killGrace = 2 * time.Second

// CommandCamera runs an external imaging tool (gphoto2 by default) in the
// staging directory. The tool downloads its files into its working directory.
type CommandCamera struct {
	command string
	args    []string
}

var _ timelapse.Camera = (*CommandCamera)(nil)

// NewCommandCamera creates a camera that runs command with args.
func NewCommandCamera(command string, args []string) *CommandCamera {
	return &CommandCamera{command: command, args: args}
}

// Trigger runs the tool once and returns its combined output. A non-zero
// exit status is not an error: the output explains it and the collected
// files decide the outcome. Expiry of ctx kills the tool and is an error.
func (c *CommandCamera) Trigger(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = dir
	cmd.WaitDelay = killGrace
	out, err := cmd.CombinedOutput()
	output := string(out)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return output, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return strings.TrimRight(output, "\n") + fmt.Sprintf("\n%s exited with status %d", c.command, exitErr.ExitCode()), nil
	}
	if err != nil {
		return output, fmt.Errorf("running %s: %w", c.command, err)
	}
	return output, nil
}
