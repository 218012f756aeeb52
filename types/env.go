package types

// ------------------------
// Sensor payloads
// ------------------------

// SensorInfo describes a one-wire sensor capability (retained).
type SensorInfo struct {
	Sensor string `json:"sensor"` // "dht11"
	Pin    int    `json:"pin"`    // data line GPIO number
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 240 => 24.0°C).
	DeciC int16 `json:"deci_c"`
}

type HumidityValue struct {
	// Tenths of %RH (e.g. 500 => 50.0%).
	DeciPct int16 `json:"deci_pct"`
}

// ------------------------
// Status (retained)
// ------------------------

// Link is the health reported for a sensor.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type SensorStatus struct {
	Link  Link   `json:"link"`
	TSms  int64  `json:"ts_ms"`
	Error string `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Node heartbeat (retained)
// ------------------------

type NodeState struct {
	Level    string `json:"level"` // "ready", "stopped"
	UptimeMs int64  `json:"uptime_ms"`
	Readings uint32 `json:"readings"` // env values seen since boot
	TSms     int64  `json:"ts_ms"`
}
