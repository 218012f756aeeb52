//go:build rp2040 || rp2350

package platform

import (
	"io"

	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// Console configures UART0 as the node's log output.
func Console() io.Writer {
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	return u
}
