package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"dhtnode-go/bus"
	"dhtnode-go/drivers/dht11"
	"dhtnode-go/platform"
	"dhtnode-go/services/env"
	"dhtnode-go/services/heartbeat"
	"dhtnode-go/types"
)

// Data line for the on-board sensor.
const dhtPin = 15

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	out := platform.Console()
	fmt.Fprintln(out, "boot")

	ctx := context.Background()
	b := bus.NewBus(8)

	dev := dht11.New(platform.SensorPin(dhtPin))
	dev.Configure()

	svc := env.New(b.NewConnection("env"), []env.Sensor{{
		Name: "room",
		Pin:  dhtPin,
		Dev:  &dev,
	}})
	go svc.Run(ctx)

	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("hb"))

	ui := b.NewConnection("ui")
	vals := ui.Subscribe(bus.T("env", "+", "+", "value"))
	stats := ui.Subscribe(bus.T("env", "sensor", "+", "status"))

	for {
		select {
		case m := <-vals.Channel():
			name := m.Topic[2]
			switch v := m.Payload.(type) {
			case types.HumidityValue:
				fmt.Fprintln(out, name, "humidity:", deci(v.DeciPct)+"%")
			case types.TemperatureValue:
				fmt.Fprintln(out, name, "temperature:", deci(v.DeciC)+"°")
			}
		case m := <-stats.Channel():
			st, ok := m.Payload.(types.SensorStatus)
			if ok && st.Link != types.LinkUp {
				fmt.Fprintln(out, "sensor", m.Topic[2], string(st.Link), st.Error)
			}
		}
	}
}

// deci renders a tenths value like 505 as "50.5".
func deci(v int16) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + strconv.Itoa(int(v/10)) + "." + strconv.Itoa(int(v%10))
}
