//go:build rp2040 || rp2350

package platform

import (
	"machine"

	"dhtnode-go/drivers/dht11"
)

// flexPin adapts machine.Pin to the driver's bidirectional line. Input
// mode uses the internal pull-up so the released line idles high, as the
// sensor protocol expects.
type flexPin struct {
	p machine.Pin
}

func (f flexPin) ConfigureOutput() {
	f.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
}

func (f flexPin) ConfigureInput() {
	f.p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (f flexPin) Set(level bool) { f.p.Set(level) }
func (f flexPin) Get() bool      { return f.p.Get() }

// SensorPin returns the sensor data line for GPIO n.
func SensorPin(n int) dht11.Pin {
	return flexPin{p: machine.Pin(n)}
}
