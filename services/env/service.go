// Package env runs the environment-sensing service. It owns the node's
// DHT11 sensors, schedules periodic reads with per-sensor jitter,
// sanity-checks each sample and publishes fixed-point readings plus a
// retained per-sensor status on the bus.
//
// Topics:
//
//	env/sensor/<name>/info        retained types.SensorInfo
//	env/sensor/<name>/status      retained types.SensorStatus
//	env/humidity/<name>/value     retained types.HumidityValue
//	env/temperature/<name>/value  retained types.TemperatureValue
//	env/control/read              payload: sensor name, "" for all
package env

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"dhtnode-go/bus"
	"dhtnode-go/drivers/dht11"
	"dhtnode-go/errcode"
	"dhtnode-go/types"
	"dhtnode-go/x/mathx"
	"dhtnode-go/x/timex"
)

// Sanity window in fixed-point units. Readings outside it are reported
// as invalid_sample rather than forwarded.
const (
	minDeciPct = int16(0)
	maxDeciPct = int16(1000)
	minDeciC   = int16(-400)
	maxDeciC   = int16(800)
)

// Measurer is the slice of the DHT11 driver the service needs; tests
// substitute a scripted fake.
type Measurer interface {
	Measure() (dht11.Measurement, error)
}

// Sensor binds one driver instance to a bus name. Each sensor owns its
// own line; the service reads them one at a time.
type Sensor struct {
	Name     string
	Pin      int // reported in retained info only
	Dev      Measurer
	Interval time.Duration // floored to Config.MinInterval
	Jitter   time.Duration // uniform [0..Jitter] added on each re-arm
}

// Config controls scheduling. All fields are optional.
type Config struct {
	// MinInterval floors every sensor interval so no sensor is polled
	// faster than the caller contract allows. Default 500 ms.
	MinInterval time.Duration
}

type sensorState struct {
	Sensor
	due time.Time
}

type Service struct {
	conn    *bus.Connection
	cfg     Config
	sensors []*sensorState
	rand    *rand.Rand
}

func New(conn *bus.Connection, sensors []Sensor, cfgs ...Config) *Service {
	var c Config
	if len(cfgs) > 0 {
		c = cfgs[0]
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 500 * time.Millisecond
	}
	s := &Service{
		conn: conn,
		cfg:  c,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	now := time.Now()
	for i := range sensors {
		st := &sensorState{Sensor: sensors[i]}
		st.Interval = mathx.Clamp(st.Interval, c.MinInterval, time.Hour)
		if st.Jitter < 0 {
			st.Jitter = 0
		}
		st.due = now.Add(s.jittered(st))
		s.sensors = append(s.sensors, st)
	}
	return s
}

// Run drives the service until ctx is cancelled. Reads are sequential:
// exactly one measurement is in flight at a time, and each sensor
// exclusively owns its line for the measurement's full duration.
func (s *Service) Run(ctx context.Context) {
	for _, st := range s.sensors {
		s.conn.Publish(s.conn.NewMessage(
			bus.T("env", "sensor", st.Name, "info"),
			types.SensorInfo{Sensor: "dht11", Pin: st.Pin},
			true,
		))
		s.status(st, types.LinkDown, "")
	}

	ctrl := s.conn.Subscribe(bus.T("env", "control", "read"))
	defer s.conn.Unsubscribe(ctrl)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := time.Until(s.minDue())
		if wait < 0 {
			wait = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			println("[env] service stopping")
			return
		case msg := <-ctrl.Channel():
			name, _ := msg.Payload.(string)
			s.bump(name)
		case <-timer.C:
			now := time.Now()
			for _, st := range s.sensors {
				if now.Before(st.due) {
					continue
				}
				s.read(st)
				st.due = time.Now().Add(s.jittered(st))
			}
		}
	}
}

// bump moves the named sensor's next read to now; an empty name bumps
// every sensor.
func (s *Service) bump(name string) {
	now := time.Now()
	for _, st := range s.sensors {
		if name == "" || st.Name == name {
			st.due = now
		}
	}
}

func (s *Service) minDue() time.Time {
	var min time.Time
	for _, st := range s.sensors {
		if min.IsZero() || st.due.Before(min) {
			min = st.due
		}
	}
	if min.IsZero() {
		return time.Now().Add(time.Hour)
	}
	return min
}

func (s *Service) jittered(st *sensorState) time.Duration {
	if st.Jitter <= 0 {
		return st.Interval
	}
	return st.Interval + time.Duration(s.rand.Int63n(int64(st.Jitter)+1))
}

func (s *Service) read(st *sensorState) {
	m, err := st.Dev.Measure()
	if err != nil {
		println("[env] read failed:", st.Name, err.Error())
		s.status(st, types.LinkDegraded, string(codeFor(err)))
		return
	}

	deciH := int16(m.Humidity * 10)
	deciT := int16(m.Temperature * 10)
	if !mathx.Between(deciH, minDeciPct, maxDeciPct) ||
		!mathx.Between(deciT, minDeciC, maxDeciC) {
		println("[env] out-of-range sample:", st.Name)
		s.status(st, types.LinkDegraded, string(errcode.InvalidSample))
		return
	}

	s.conn.Publish(s.conn.NewMessage(
		bus.T("env", "humidity", st.Name, "value"),
		types.HumidityValue{DeciPct: deciH},
		true,
	))
	s.conn.Publish(s.conn.NewMessage(
		bus.T("env", "temperature", st.Name, "value"),
		types.TemperatureValue{DeciC: deciT},
		true,
	))
	s.status(st, types.LinkUp, "")
}

func (s *Service) status(st *sensorState, link types.Link, code string) {
	s.conn.Publish(s.conn.NewMessage(
		bus.T("env", "sensor", st.Name, "status"),
		types.SensorStatus{Link: link, TSms: timex.NowMs(), Error: code},
		true,
	))
}

// codeFor maps driver sentinels to stable bus-facing codes.
func codeFor(err error) errcode.Code {
	switch {
	case errors.Is(err, dht11.ErrTimeout):
		return errcode.Timeout
	case errors.Is(err, dht11.ErrNoReply):
		return errcode.NoReply
	case errors.Is(err, dht11.ErrData):
		return errcode.DataCorrupt
	case errors.Is(err, dht11.ErrChecksum):
		return errcode.ChecksumMismatch
	}
	return errcode.Of(err)
}
