package hub

import (
	"testing"
	"time"
)

// testClient registers a pump-less subscriber so tests can inspect the send
// queue directly.
func testClient(h *Hub, buffer int) *Client {
	c := &Client{ID: "test", hub: h, send: make(chan Message, buffer)}
	h.register <- c
	return c
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Client count never reached %d, have %d", want, h.ClientCount())
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
		return Message{}
	}
}

func TestFanOutReachesAllClients(t *testing.T) {
	h := New("status")
	go h.Run()
	defer h.Stop()

	a := testClient(h, 4)
	b := testClient(h, 4)
	waitForCount(t, h, 2)

	h.BroadcastFrame([]byte{0xff, 0xd8})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		if !msg.Binary || len(msg.Payload) != 2 {
			t.Errorf("Unexpected message %+v", msg)
		}
	}
}

func TestSlowClientEvicted(t *testing.T) {
	h := New("preview")
	go h.Run()
	defer h.Stop()

	slow := testClient(h, 1) // never drained
	fast := testClient(h, 4)
	waitForCount(t, h, 2)

	h.BroadcastFrame([]byte{1}) // fills slow's queue
	h.BroadcastFrame([]byte{2}) // overflows it: eviction
	waitForCount(t, h, 1)

	// The survivor got both frames.
	if msg := receive(t, fast); msg.Payload[0] != 1 {
		t.Errorf("Expected first frame, got %+v", msg)
	}
	if msg := receive(t, fast); msg.Payload[0] != 2 {
		t.Errorf("Expected second frame, got %+v", msg)
	}

	// The evicted client's queue holds the first frame, then is closed.
	<-slow.send
	if _, open := <-slow.send; open {
		t.Error("Expected evicted client's channel to be closed")
	}
}

// ClientCount is called from the capture loop every frame while the hub's
// Run goroutine broadcasts and evicts; both paths must take the write lock.
func TestClientCountDuringBroadcastStorm(t *testing.T) {
	h := New("race")
	go h.Run()
	defer h.Stop()

	// Unbuffered subscribers are evicted on the first fan-out, so the
	// storm keeps mutating the client set.
	for i := 0; i < 8; i++ {
		testClient(h, 0)
	}
	waitForCount(t, h, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			h.Broadcast(FrameMessage(nil))
		}
	}()

	for {
		select {
		case <-done:
			waitForCount(t, h, 0)
			return
		default:
			h.ClientCount()
		}
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	h := New("status")
	go h.Run()

	c := testClient(h, 1)
	waitForCount(t, h, 1)

	h.Stop()
	h.Stop() // idempotent

	select {
	case _, open := <-c.send:
		if open {
			t.Error("Expected send channel closed on Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Stop to close clients")
	}
}

func TestStatusMessageEncodesJSON(t *testing.T) {
	msg, err := StatusMessage(map[string]int{"fps": 30})
	if err != nil {
		t.Fatalf("StatusMessage: %v", err)
	}
	if msg.Binary {
		t.Error("Status messages must be text frames")
	}
	if string(msg.Payload) != `{"fps":30}` {
		t.Errorf("Unexpected payload %s", msg.Payload)
	}

	if _, err := StatusMessage(func() {}); err == nil {
		t.Error("Expected error for unencodable value")
	}
}
