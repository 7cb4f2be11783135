package device

import (
	"errors"
	"fmt"
	"os/exec"

	"baucam/internal/timelapse"
)

// CommandRebooter reboots the host by running a command such as "sudo reboot".
type CommandRebooter struct {
	argv []string
}

var _ timelapse.Rebooter = (*CommandRebooter)(nil)

func NewCommandRebooter(argv []string) *CommandRebooter {
	return &CommandRebooter{argv: argv}
}

// Reboot runs the command and returns once it has exited.
func (r *CommandRebooter) Reboot() error {
	if len(r.argv) == 0 {
		return errors.New("no reboot command configured")
	}
	out, err := exec.Command(r.argv[0], r.argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", r.argv[0], err, out)
	}
	return nil
}
