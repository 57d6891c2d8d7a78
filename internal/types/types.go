package types

import "time"

// Reading is a battery state-of-charge sample in percent.
// Valid is false when the upstream could not deliver a usable value.
type Reading struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Available wraps a numeric SoC. Values outside [0, 100] are reported as unavailable.
func Available(value float64) Reading {
	if value < 0 || value > 100 || value != value {
		return Unavailable()
	}
	return Reading{Value: value, Valid: true}
}

// Unavailable is the reading returned for any fetch failure.
func Unavailable() Reading {
	return Reading{}
}

// MonitoredDevice describes one inverter or station watched by the alerter.
type MonitoredDevice struct {
	Ref        string    `json:"ref" mapstructure:"ref"`
	Name       string    `json:"name" mapstructure:"name"`
	Thresholds []float64 `json:"thresholds" mapstructure:"thresholds"`
	Hysteresis float64   `json:"hysteresis" mapstructure:"hysteresis"`
}

// DisplayName falls back to the ref when no name is configured.
func (d MonitoredDevice) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Ref
}

// AlertEvent is emitted once per threshold-crossing episode.
type AlertEvent struct {
	DeviceRef  string    `json:"device_ref"`
	DeviceName string    `json:"device_name"`
	Threshold  float64   `json:"threshold"`
	SoC        float64   `json:"soc"`
	Severity   Severity  `json:"severity"`
	At         time.Time `json:"at"`
}

// ReadingPoint is a stored SoC sample.
type ReadingPoint struct {
	DeviceRef string    `json:"device_ref"`
	SoC       float64   `json:"soc"`
	At        time.Time `json:"at"`
}

// AlertRecord is a stored alert.
type AlertRecord struct {
	ID         int64     `json:"id"`
	DeviceRef  string    `json:"device_ref"`
	DeviceName string    `json:"device_name"`
	Threshold  float64   `json:"threshold"`
	SoC        float64   `json:"soc"`
	Severity   string    `json:"severity"`
	CreatedAt  time.Time `json:"created_at"`
}
