//go:build rp2040 || rp2350

// Board smoke test: drives the raw DHT11 driver on the data line and
// prints every frame over UART0, bypassing the bus and services.
package main

import (
	"fmt"
	"time"

	"dhtnode-go/drivers/dht11"
	"dhtnode-go/platform"
)

const dhtPin = 15

func main() {
	time.Sleep(1500 * time.Millisecond)
	out := platform.Console()
	fmt.Fprintln(out, "[probe] boot")

	d := dht11.New(platform.SensorPin(dhtPin))
	d.Configure()

	for {
		m, err := d.Measure()
		if err != nil {
			fmt.Fprintln(out, "[probe] error:", err.Error())
		} else {
			f := d.RawFrame()
			fmt.Fprintf(out, "[probe] frame=%02x%02x%02x%02x%02x state=%s %s\n",
				f[0], f[1], f[2], f[3], f[4], d.State().String(), m.String())
		}
		time.Sleep(500 * time.Millisecond)
	}
}
