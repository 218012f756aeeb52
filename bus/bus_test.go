package bus

import (
	"testing"
	"time"
)

func expectOneOf(t *testing.T, s *Subscription, want string) {
	t.Helper()
	select {
	case got := <-s.Channel():
		if got.Payload.(string) != want {
			t.Fatalf("payload = %v (want %q)", got.Payload, want)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for %q on %v", want, s.Topic())
	}
}

func expectNoMessage(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case got := <-s.Channel():
		t.Fatalf("unexpected message on %v: %v", s.Topic(), got.Payload)
	default:
	}
}

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("env", "humidity", "room", "value"))
	conn.Publish(conn.NewMessage(T("env", "humidity", "room", "value"), "hello", false))

	expectOneOf(t, sub, "hello")
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("node", "state"), "persist", true))
	sub := conn.Subscribe(T("node", "state"))

	expectOneOf(t, sub, "persist")
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("node", "state"), "persist", true))
	conn.Publish(conn.NewMessage(T("node", "state"), nil, true))

	sub := conn.Subscribe(T("node", "state"))
	expectNoMessage(t, sub)
}

func TestWildcard_SingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a", "+", "c"))
	s2 := c.Subscribe(T("a", "+", "+"))
	s3 := c.Subscribe(T("a", "b", "+"))
	sNo := c.Subscribe(T("a", "+", "d"))

	c.Publish(b.NewMessage(T("a", "b", "c"), "m1", false))
	expectOneOf(t, s1, "m1")
	expectOneOf(t, s2, "m1")
	expectOneOf(t, s3, "m1")
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(T("a", "x", "y"), "m2", false))
	expectOneOf(t, s2, "m2")
	expectNoMessage(t, s1)
	expectNoMessage(t, s3)
	expectNoMessage(t, sNo)

	// "+" never matches across level counts.
	c.Publish(b.NewMessage(T("a", "c"), "m3", false))
	expectNoMessage(t, s1)
	expectNoMessage(t, s2)
	expectNoMessage(t, s3)
	expectNoMessage(t, sNo)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAHash := c.Subscribe(T("a", "#"))
	sHash := c.Subscribe(T("#"))
	sABHash := c.Subscribe(T("a", "b", "#"))
	sAExact := c.Subscribe(T("a"))

	c.Publish(b.NewMessage(T("a"), "p1", false))
	expectOneOf(t, sAHash, "p1")
	expectOneOf(t, sHash, "p1")
	expectOneOf(t, sAExact, "p1")
	expectNoMessage(t, sABHash)

	c.Publish(b.NewMessage(T("a", "b"), "p2", false))
	expectOneOf(t, sAHash, "p2")
	expectOneOf(t, sHash, "p2")
	expectOneOf(t, sABHash, "p2")
	expectNoMessage(t, sAExact)

	c.Publish(b.NewMessage(T("a", "b", "c"), "p3", false))
	expectOneOf(t, sAHash, "p3")
	expectOneOf(t, sHash, "p3")
	expectOneOf(t, sABHash, "p3")
	expectNoMessage(t, sAExact)
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("env", "humidity", "room", "value"), "h", true))
	c.Publish(b.NewMessage(T("env", "temperature", "room", "value"), "t", true))

	sub := c.Subscribe(T("env", "+", "room", "value"))
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-sub.Channel():
			got[m.Payload.(string)] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for retained replay")
		}
	}
	if !got["h"] || !got["t"] {
		t.Fatalf("retained replay incomplete: %v", got)
	}
}

func TestDropOldestWhenQueueFull(t *testing.T) {
	b := NewBus(1)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("x"))
	c.Publish(b.NewMessage(T("x"), "old", false))
	c.Publish(b.NewMessage(T("x"), "new", false))

	expectOneOf(t, sub, "new")
	expectNoMessage(t, sub)
}

func TestUnsubscribePrunes(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	sub := c.Subscribe(T("a", "b", "c"))
	c.Unsubscribe(sub)

	if len(b.root.children) != 0 {
		t.Fatalf("trie not pruned: %v", b.root.children)
	}

	// Closed channel must not receive further messages.
	c.Publish(b.NewMessage(T("a", "b", "c"), "late", false))
	if m, ok := <-sub.Channel(); ok {
		t.Fatalf("message after unsubscribe: %v", m.Payload)
	}
}

func TestDisconnectClosesAll(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a"))
	s2 := c.Subscribe(T("b"))
	c.Disconnect()

	if _, ok := <-s1.Channel(); ok {
		t.Fatal("s1 still open after disconnect")
	}
	if _, ok := <-s2.Channel(); ok {
		t.Fatal("s2 still open after disconnect")
	}
}
