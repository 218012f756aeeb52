//go:build !(rp2040 || rp2350)

package platform

import (
	"io"
	"os"

	"dhtnode-go/drivers/dht11"
)

// Console on host builds is stdout.
func Console() io.Writer { return os.Stdout }

// SensorPin on host builds returns a simulated sensor so the node can be
// run and observed without hardware.
func SensorPin(n int) dht11.Pin {
	return NewSimPin(
		[5]byte{52, 0, 23, 0, 0},
		[5]byte{53, 0, 23, 0, 0},
		[5]byte{51, 0, 24, 0, 0},
	)
}
