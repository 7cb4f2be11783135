package timelapse

import (
	"context"
	"time"

	"baucam/internal/model"
)

// ClimateRecorder samples the climate sensor and persists each reading.
// A failed read is still recorded, with absent values, to keep the timeline continuous.
type ClimateRecorder struct {
	sensor ClimateSensor
	db     Database
	logger Logger
}

// NewClimateRecorder creates a new ClimateRecorder.
func NewClimateRecorder(sensor ClimateSensor, db Database, logger Logger) *ClimateRecorder {
	return &ClimateRecorder{sensor: sensor, db: db, logger: logger}
}

// Sample reads the sensor once and stores the result stamped with now.
func (c *ClimateRecorder) Sample(ctx context.Context, now time.Time) {
	humidity, temperature, err := c.sensor.Read(ctx)
	if err != nil {
		c.logger.Warn("climate sensor read failed", "error", err)
		humidity, temperature = nil, nil
	}

	sample := &model.ClimateSample{Time: now, Humidity: humidity, Temperature: temperature}
	if err := c.db.RecordClimate(sample); err != nil {
		c.logger.Error("recording climate sample", "error", err)
		return
	}
	c.logger.Debug("climate sampled", "humidity", fmtFloat(humidity), "temperature", fmtFloat(temperature))
}

func fmtFloat(v *float64) any {
	if v == nil {
		return "n/a"
	}
	return *v
}
