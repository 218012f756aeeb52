// Package dht11 provides a driver for the DHT11 temperature/humidity
// sensor over its single-wire, timing-encoded protocol.
//
//	d := dht11.New(pin)
//	d.Configure()
//	m, err := d.Measure()
//
// The sensor is bit-banged on one bidirectional line: the host holds the
// line low to request a measurement, the sensor answers with a fixed
// low/high reply header followed by 40 pulse-width encoded bits
// (humidity, temperature, checksum). Bits are recovered by comparing
// each high-hold cycle count against its paired low-hold count, so no
// per-platform microsecond calibration is needed.
//
// Measure suspends at the millisecond-scale waits (power-up hold, start
// signal), but the pulse-counting loops are synchronous busy polls and
// must not yield: scheduler jitter inside the microsecond-scale region
// corrupts the timing.
//
// One Device owns one line. Exactly one measurement may be in flight per
// Device, and there is no mid-measurement cancellation; a caller that
// wants to abandon a read lets the current step finish (or time out) and
// discards the result.
package dht11

import (
	"errors"
	"strconv"
	"time"

	"dhtnode-go/x/timex"
)

// Protocol timing. The pre-delays are fixed sensor requirements; the
// cooldown keeps re-triggers above the sensor's minimum sample interval.
const (
	powerUpHold = 250 * time.Millisecond
	startSignal = 20 * time.Millisecond
	replySettle = 15 * time.Microsecond

	defaultCooldown  = 2 * time.Second
	defaultMaxCycles = 10000
)

// Errors returned by the driver. All of them abort the current attempt
// and reset the state machine to Idle; none is fatal across attempts.
var (
	ErrTimeout  = errors.New("dht11: pulse exceeded cycle budget")
	ErrNoReply  = errors.New("dht11: reply header missing")
	ErrData     = errors.New("dht11: malformed data pulse")
	ErrChecksum = errors.New("dht11: checksum mismatch")
)

// Pin is the bidirectional line the sensor is wired to. ConfigureOutput
// must enable the output driver stage; ConfigureInput must release the
// line so the sensor (or the pull-up) can drive it.
type Pin interface {
	ConfigureOutput()
	ConfigureInput()
	Set(level bool)
	Get() bool
}

// State identifies the current phase of the protocol state machine.
// Transitions form a strict cycle
// Idle → Init → BeginMeasurement → Read → Cooldown → Idle.
type State uint8

const (
	StateIdle State = iota
	StateInit
	StateBeginMeasurement
	StateRead
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInit:
		return "init"
	case StateBeginMeasurement:
		return "begin_measurement"
	case StateRead:
		return "read"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// MaxCycles bounds every pulse-counting loop so a disconnected or
	// shorted line cannot hang the driver. Counts are polling-loop
	// iterations, not calibrated time units. Default 10000.
	MaxCycles uint32
	// Cooldown is the minimum interval before the sensor may be
	// re-triggered. Default 2 s.
	Cooldown time.Duration
	// NowMs and Sleep exist for tests; they default to timex.NowMs and
	// time.Sleep.
	NowMs func() int64
	Sleep func(time.Duration)
}

// Measurement is one successful reading.
type Measurement struct {
	Humidity    float32 // %RH
	Temperature float32 // °C
}

func (m Measurement) String() string {
	return strconv.FormatFloat(float64(m.Humidity), 'f', -1, 32) + "% " +
		strconv.FormatFloat(float64(m.Temperature), 'f', -1, 32) + "°"
}

// Device drives one DHT11. The zero value is not usable; call New.
type Device struct {
	pin   Pin
	cfg   Config
	data  [5]byte // humidity int, humidity dec, temp int, temp dec, checksum
	state State
	stamp int64 // ms, recorded at phase entry; consulted by Cooldown
}

// New creates a driver bound to pin. It only creates the Device object;
// the line is not touched until Measure.
func New(pin Pin) Device {
	return Device{pin: pin}
}

// Configure applies optional config with zero-value defaulting. It may
// be called with no arguments.
func (d *Device) Configure(cfgs ...Config) {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.MaxCycles == 0 {
		c.MaxCycles = defaultMaxCycles
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.NowMs == nil {
		c.NowMs = timex.NowMs
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	d.cfg = c
}

// State returns the machine's current phase.
func (d *Device) State() State { return d.state }

// RawFrame returns a copy of the last raw frame. The frame is cleared at
// the start of every attempt and only fully valid after a successful
// Measure.
func (d *Device) RawFrame() [5]byte { return d.data }

// Measure runs one full measurement from idle to completion. On any step
// failure the machine resets to Idle and the error is returned; there is
// no retry inside the driver. A call made while a previous cooldown is
// still running returns the cached frame immediately; the machine moves
// back to Idle once the cooldown has elapsed on a later call.
func (d *Device) Measure() (Measurement, error) {
	if d.cfg.MaxCycles == 0 {
		d.Configure()
	}
	for {
		if err := d.step(); err != nil {
			d.state = StateIdle
			return Measurement{}, err
		}
		if d.state == StateCooldown {
			return Measurement{
				Humidity:    d.humidity(),
				Temperature: d.temperature(),
			}, nil
		}
	}
}

func (d *Device) step() error {
	switch d.state {
	case StateIdle:
		d.state = StateInit

	case StateInit:
		// Hold the line high while the sensor stabilises.
		d.pin.Set(true)
		d.pin.ConfigureOutput()
		d.data = [5]byte{}
		d.stamp = d.cfg.NowMs()
		d.cfg.Sleep(powerUpHold)
		d.state = StateBeginMeasurement

	case StateBeginMeasurement:
		// Start signal: pull the line low for at least 18 ms.
		d.pin.Set(false)
		d.pin.ConfigureOutput()
		d.stamp = d.cfg.NowMs()
		d.cfg.Sleep(startSignal)
		d.state = StateRead

	case StateRead:
		d.stamp = d.cfg.NowMs()
		d.state = StateCooldown
		return d.readData()

	case StateCooldown:
		if d.cfg.NowMs()-d.stamp > int64(d.cfg.Cooldown/time.Millisecond) {
			d.state = StateIdle
		}
	}
	return nil
}

// readData hands the line to the sensor, measures the reply handshake
// and the 80 data pulses, and rebuilds the 5-byte frame in place.
func (d *Device) readData() error {
	var cycles [80]uint32

	// End the start signal and release the line to the sensor.
	d.pin.Set(true)
	d.pin.ConfigureOutput()
	d.pin.ConfigureInput()

	// Give the sensor time to pull the line low.
	d.cfg.Sleep(replySettle)

	// Reply header: ~80 µs low, then ~80 µs high. A zero count means the
	// sensor never held the expected level.
	n, err := d.pulseCount(false)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoReply
	}
	n, err = d.pulseCount(true)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoReply
	}

	// 40 bits: each one a ~50 µs low start marker followed by the
	// encoded high pulse (~26-28 µs for 0, ~70 µs for 1).
	for i := 0; i < 80; i += 2 {
		if cycles[i], err = d.pulseCount(false); err != nil {
			return err
		}
		if cycles[i+1], err = d.pulseCount(true); err != nil {
			return err
		}
	}

	// Relative comparison: the high pulse of a 1 outlasts its low start
	// marker, the high pulse of a 0 does not. Packed MSB-first.
	for i := 0; i < 40; i++ {
		low := cycles[2*i]
		high := cycles[2*i+1]
		if low == 0 || high == 0 {
			return ErrData
		}
		d.data[i/8] <<= 1
		if high > low {
			d.data[i/8] |= 1
		}
	}

	return d.checksum()
}

func (d *Device) checksum() error {
	if d.data[4] != d.data[0]+d.data[1]+d.data[2]+d.data[3] {
		return ErrChecksum
	}
	return nil
}

// pulseCount busy-polls while the line holds level and returns the
// number of polling iterations. The loop is deliberately non-yielding.
func (d *Device) pulseCount(level bool) (uint32, error) {
	var count uint32
	for d.pin.Get() == level {
		count++
		if count >= d.cfg.MaxCycles {
			return 0, ErrTimeout
		}
	}
	return count, nil
}

// The sensor reports integral and decimal bytes; both are summed as
// whole units. On the DHT11 the decimal bytes read zero.

func (d *Device) humidity() float32 {
	return float32(d.data[0]) + float32(d.data[1])
}

func (d *Device) temperature() float32 {
	return float32(d.data[2]) + float32(d.data[3])
}
