package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"baucam/internal/timelapse"
)

// IIOSensor reads a humidity/temperature sensor exposed through the Linux
// industrial I/O subsystem, as the kernel dht11 driver does. Values are
// reported in thousandths.
type IIOSensor struct {
	device string
}

var _ timelapse.ClimateSensor = (*IIOSensor)(nil)

// NewIIOSensor creates a sensor reading from the IIO device directory.
func NewIIOSensor(device string) *IIOSensor {
	return &IIOSensor{device: device}
}

// Read returns whichever values could be read. The error joins the
// failures of both channels.
func (s *IIOSensor) Read(ctx context.Context) (humidity, temperature *float64, err error) {
	humidity, herr := readMilli(filepath.Join(s.device, "in_humidityrelative_input"))
	temperature, terr := readMilli(filepath.Join(s.device, "in_temp_input"))
	return humidity, temperature, errors.Join(herr, terr)
}

func readMilli(path string) (*float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	v /= 1000
	return &v, nil
}

// CommandSensor runs an external program that prints "<humidity> <temperature>".
type CommandSensor struct {
	argv []string
}

var _ timelapse.ClimateSensor = (*CommandSensor)(nil)

// NewCommandSensor creates a sensor running argv.
func NewCommandSensor(argv []string) *CommandSensor {
	return &CommandSensor{argv: argv}
}

func (s *CommandSensor) Read(ctx context.Context) (humidity, temperature *float64, err error) {
	if len(s.argv) == 0 {
		return nil, nil, errors.New("no climate command configured")
	}
	out, err := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...).Output()
	if err != nil {
		return nil, nil, fmt.Errorf("running %s: %w", s.argv[0], err)
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return nil, nil, fmt.Errorf("unexpected climate command output %q", strings.TrimSpace(string(out)))
	}
	var errs []error
	if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
		humidity = &v
	} else {
		errs = append(errs, fmt.Errorf("parsing humidity: %w", err))
	}
	if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
		temperature = &v
	} else {
		errs = append(errs, fmt.Errorf("parsing temperature: %w", err))
	}
	return humidity, temperature, errors.Join(errs...)
}
