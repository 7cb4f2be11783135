package device

import (
	"fmt"

	"baucam/internal/config"
	"baucam/internal/timelapse"
)

// NewCameraFromConfig creates the Camera named by the camera config type.
func NewCameraFromConfig(cfg config.CameraConfig) (timelapse.Camera, error) {
	switch cfg.Type {
	case "gphoto2", "command":
		if cfg.Command == "" {
			return nil, fmt.Errorf("camera requires command to be set")
		}
		return NewCommandCamera(cfg.Command, cfg.Args), nil
	default:
		return nil, fmt.Errorf("unknown camera type: %s", cfg.Type)
	}
}

// NewPowerLineFromConfig creates the PowerLine named by the power config type.
func NewPowerLineFromConfig(cfg config.PowerConfig) (timelapse.PowerLine, error) {
	switch cfg.Type {
	case "gpio":
		return NewGPIOPowerLine(cfg.Pin, cfg.ActiveHigh)
	case "none":
		return NopPowerLine{}, nil
	default:
		return nil, fmt.Errorf("unknown power type: %s", cfg.Type)
	}
}

// NewClimateSensorFromConfig creates the ClimateSensor named by the climate
// config type. It returns nil for type "none".
func NewClimateSensorFromConfig(cfg config.ClimateConfig) (timelapse.ClimateSensor, error) {
	switch cfg.Type {
	case "iio":
		if cfg.Device == "" {
			return nil, fmt.Errorf("iio climate sensor requires device to be set")
		}
		return NewIIOSensor(cfg.Device), nil
	case "command":
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("command climate sensor requires command to be set")
		}
		return NewCommandSensor(cfg.Command), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown climate type: %s", cfg.Type)
	}
}
