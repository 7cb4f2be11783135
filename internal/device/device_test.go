package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"baucam/internal/config"
)

func TestCommandCamera_Trigger(t *testing.T) {
	t.Parallel()

	t.Run("writes files into dir", func(t *testing.T) {
		dir := t.TempDir()
		cam := NewCommandCamera("sh", []string{"-c", "echo 'New file is in location capt0000.jpg'; touch capt0000.jpg"})

		out, err := cam.Trigger(context.Background(), dir)
		if err != nil {
			t.Fatalf("Trigger() error = %v", err)
		}
		if !strings.Contains(out, "capt0000.jpg") {
			t.Errorf("output = %q, want the tool output", out)
		}
		if _, err := os.Stat(filepath.Join(dir, "capt0000.jpg")); err != nil {
			t.Errorf("file not written into dir: %v", err)
		}
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		cam := NewCommandCamera("sh", []string{"-c", "echo '*** Error: No camera found. ***' >&2; exit 1"})

		out, err := cam.Trigger(context.Background(), t.TempDir())
		if err != nil {
			t.Fatalf("Trigger() error = %v", err)
		}
		if !strings.Contains(out, "No camera found") || !strings.Contains(out, "exited with status 1") {
			t.Errorf("output = %q, want stderr and exit status", out)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		cam := NewCommandCamera("sleep", []string{"5"})
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := cam.Trigger(ctx, t.TempDir())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Trigger() error = %v, want context.DeadlineExceeded", err)
		}
		if elapsed := time.Since(start); elapsed > 3*time.Second {
			t.Errorf("Trigger() took %v after timeout", elapsed)
		}
	})

	t.Run("missing tool", func(t *testing.T) {
		cam := NewCommandCamera("baucam-no-such-tool", nil)
		if _, err := cam.Trigger(context.Background(), t.TempDir()); err == nil {
			t.Error("Trigger() with a missing tool should return error")
		}
	})
}

func writeChannel(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIIOSensor_Read(t *testing.T) {
	t.Parallel()

	t.Run("both channels", func(t *testing.T) {
		dir := t.TempDir()
		writeChannel(t, dir, "in_humidityrelative_input", "45000\n")
		writeChannel(t, dir, "in_temp_input", "21500\n")

		h, temp, err := NewIIOSensor(dir).Read(context.Background())
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if h == nil || *h != 45 {
			t.Errorf("humidity = %v, want 45", h)
		}
		if temp == nil || *temp != 21.5 {
			t.Errorf("temperature = %v, want 21.5", temp)
		}
	})

	t.Run("one channel fails", func(t *testing.T) {
		dir := t.TempDir()
		writeChannel(t, dir, "in_temp_input", "19000")

		h, temp, err := NewIIOSensor(dir).Read(context.Background())
		if err == nil {
			t.Error("Read() error = nil, want error for the missing channel")
		}
		if h != nil {
			t.Errorf("humidity = %v, want nil", *h)
		}
		if temp == nil || *temp != 19 {
			t.Errorf("temperature = %v, want 19", temp)
		}
	})
}

func TestCommandSensor_Read(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		script  string
		wantH   *float64
		wantT   *float64
		wantErr bool
	}{
		{name: "valid", script: "echo 52.0 18.5", wantH: ptr(52), wantT: ptr(18.5)},
		{name: "partial", script: "echo nan? 18.5", wantT: ptr(18.5), wantErr: true},
		{name: "garbage", script: "echo checksum error", wantErr: true},
		{name: "fails", script: "exit 3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, temp, err := NewCommandSensor([]string{"sh", "-c", tt.script}).Read(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !equalPtr(h, tt.wantH) {
				t.Errorf("humidity = %v, want %v", h, tt.wantH)
			}
			if !equalPtr(temp, tt.wantT) {
				t.Errorf("temperature = %v, want %v", temp, tt.wantT)
			}
		})
	}
}

func TestCommandRebooter(t *testing.T) {
	t.Parallel()
	if err := NewCommandRebooter([]string{"true"}).Reboot(); err != nil {
		t.Errorf("Reboot() error = %v", err)
	}
	if err := NewCommandRebooter([]string{"false"}).Reboot(); err == nil {
		t.Error("Reboot() with a failing command should return error")
	}
	if err := NewCommandRebooter(nil).Reboot(); err == nil {
		t.Error("Reboot() without a command should return error")
	}
}

func TestFactories(t *testing.T) {
	t.Parallel()

	if _, err := NewCameraFromConfig(config.CameraConfig{Type: "gphoto2", Command: "gphoto2"}); err != nil {
		t.Errorf("NewCameraFromConfig(gphoto2) error = %v", err)
	}
	if _, err := NewCameraFromConfig(config.CameraConfig{Type: "webcam"}); err == nil {
		t.Error("NewCameraFromConfig(unknown) should return error")
	}

	if p, err := NewPowerLineFromConfig(config.PowerConfig{Type: "none"}); err != nil || p == nil {
		t.Errorf("NewPowerLineFromConfig(none) = %v, %v", p, err)
	}
	if _, err := NewPowerLineFromConfig(config.PowerConfig{Type: "usb"}); err == nil {
		t.Error("NewPowerLineFromConfig(unknown) should return error")
	}

	if s, err := NewClimateSensorFromConfig(config.ClimateConfig{Type: "none"}); err != nil || s != nil {
		t.Errorf("NewClimateSensorFromConfig(none) = %v, %v; want nil, nil", s, err)
	}
	if _, err := NewClimateSensorFromConfig(config.ClimateConfig{Type: "iio"}); err == nil {
		t.Error("NewClimateSensorFromConfig(iio) without device should return error")
	}
	if _, err := NewClimateSensorFromConfig(config.ClimateConfig{Type: "command", Command: []string{"read-dht"}}); err != nil {
		t.Errorf("NewClimateSensorFromConfig(command) error = %v", err)
	}
}

func ptr(v float64) *float64 { return &v }

func equalPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
