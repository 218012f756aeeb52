// Package heartbeat publishes a retained node liveness document and a
// periodic console heartbeat. It also counts the env readings seen on
// the bus so the document doubles as a cheap activity counter.
package heartbeat

import (
	"context"
	"time"

	"dhtnode-go/bus"
	"dhtnode-go/types"
	"dhtnode-go/x/timex"
)

var (
	topicConfig = bus.T("config", "heartbeat")
	topicState  = bus.T("node", "state")
	topicValues = bus.T("env", "+", "+", "value")
)

type Service struct {
	boot     int64
	readings uint32
}

// Start launches the heartbeat loop.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.boot = timex.NowMs()
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)
	valSub := conn.Subscribe(topicValues)
	defer conn.Unsubscribe(valSub)

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[hb] service stopping")
			s.publishState(conn, "stopped")
			return
		case <-valSub.Channel():
			s.readings++
		case <-tick.C:
			s.publishState(conn, "ready")
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval_ms"]; ok {
					if ms, ok := iv.(int); ok && ms > 0 {
						tick.Reset(time.Duration(ms) * time.Millisecond)
						println("[hb] interval set to", ms, "ms")
					}
				}
			}
		}
	}
}

func (s *Service) publishState(conn *bus.Connection, level string) {
	conn.Publish(conn.NewMessage(topicState, types.NodeState{
		Level:    level,
		UptimeMs: timex.SinceMs(s.boot),
		Readings: s.readings,
		TSms:     timex.NowMs(),
	}, true))
}
