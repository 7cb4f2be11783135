package device

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"baucam/internal/timelapse"
)

// GPIOPowerLine switches the camera supply through a relay on a GPIO pin.
type GPIOPowerLine struct {
	pin        gpio.PinOut
	activeHigh bool
}

var _ timelapse.PowerLine = (*GPIOPowerLine)(nil)

// NewGPIOPowerLine initializes the host drivers and opens the named pin
// ("GPIO2", "2", ...). With activeHigh the pin is driven high for "on".
func NewGPIOPowerLine(name string, activeHigh bool) (*GPIOPowerLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing GPIO drivers: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("GPIO pin %q not found", name)
	}
	return &GPIOPowerLine{pin: p, activeHigh: activeHigh}, nil
}

// On powers the camera.
func (l *GPIOPowerLine) On() error { return l.set(true) }

// Off cuts the camera supply.
func (l *GPIOPowerLine) Off() error { return l.set(false) }

func (l *GPIOPowerLine) set(on bool) error {
	level := gpio.Level(on == l.activeHigh)
	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("setting %s to %s: %w", l.pin, level, err)
	}
	return nil
}

// NopPowerLine is used when the camera supply is not switchable.
type NopPowerLine struct{}

var _ timelapse.PowerLine = NopPowerLine{}

func (NopPowerLine) On() error  { return nil }
func (NopPowerLine) Off() error { return nil }
