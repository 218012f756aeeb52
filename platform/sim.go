//go:build !(rp2040 || rp2350)

package platform

import "dhtnode-go/drivers/dht11"

// simPin emulates a DHT11 on host builds. Every time the driver releases
// the line (ConfigureInput) a fresh transmission waveform is armed and
// replayed one sample per poll; frames cycle. The checksum byte of each
// frame is filled in automatically.
type simPin struct {
	frames [][5]byte
	next   int
	levels []bool
	idx    int
}

// NewSimPin builds a simulated sensor replaying the given frames.
func NewSimPin(frames ...[5]byte) dht11.Pin {
	if len(frames) == 0 {
		frames = [][5]byte{{50, 0, 24, 0, 0}}
	}
	for i := range frames {
		frames[i][4] = frames[i][0] + frames[i][1] + frames[i][2] + frames[i][3]
	}
	return &simPin{frames: frames}
}

func (p *simPin) ConfigureOutput() {}

func (p *simPin) ConfigureInput() {
	p.levels = simWaveform(p.frames[p.next])
	p.next = (p.next + 1) % len(p.frames)
	p.idx = 0
}

func (p *simPin) Set(bool) {}

func (p *simPin) Get() bool {
	if p.idx >= len(p.levels) {
		return true // idle pull-up
	}
	l := p.levels[p.idx]
	p.idx++
	return l
}

func simWaveform(frame [5]byte) []bool {
	var w []bool
	seg := func(level bool, n int) {
		for i := 0; i < n; i++ {
			w = append(w, level)
		}
	}
	seg(false, 40) // reply low
	seg(true, 40)  // reply high
	for _, b := range frame {
		for shift := 7; shift >= 0; shift-- {
			seg(false, 12) // bit start marker
			if (b>>uint(shift))&1 == 1 {
				seg(true, 30)
			} else {
				seg(true, 4)
			}
		}
	}
	seg(false, 6)
	return w
}
