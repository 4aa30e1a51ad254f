package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/cjeanneret/RecPause/internal/display"
)

type published struct {
	topic   string
	payload []byte
	retain  bool
}

// recordingPublisher records every publish; it can block until released.
type recordingPublisher struct {
	mu     sync.Mutex
	msgs   []published
	err    error
	closed bool
	gate   chan struct{}
}

func (p *recordingPublisher) Publish(topic string, payload []byte, retain bool) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, payload, retain})
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func TestEmitter_RenderAndAdvise(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(pub, "recpause/studio", "rig-1")

	e.Render(display.State{Session: "running", Mode: display.ModeMovie})
	e.Advise(display.Advisory{Kind: display.AdvisoryNotAuthorized, Message: "no camera"})
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !pub.closed {
		t.Error("publisher not closed")
	}
	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.msgs))
	}

	state := pub.msgs[0]
	if state.topic != "recpause/studio/state" || !state.retain {
		t.Errorf("state message: topic %q retain %v", state.topic, state.retain)
	}
	var m Message
	if err := json.Unmarshal(state.payload, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Kind != KindState || m.Source != "rig-1" || m.State == nil || m.State.Mode != display.ModeMovie {
		t.Errorf("state payload = %+v", m)
	}
	if m.Time.IsZero() {
		t.Error("message should carry a timestamp")
	}

	adv := pub.msgs[1]
	if adv.topic != "recpause/studio/advisory" || adv.retain {
		t.Errorf("advisory message: topic %q retain %v", adv.topic, adv.retain)
	}

	st := e.Stats()
	if st.Published["recpause/studio/state"] != 1 || st.Published["recpause/studio/advisory"] != 1 || st.Errors != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEmitter_PublishErrorsCounted(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e := New(pub, "rp", "x")
	e.Render(display.State{})
	e.Close()

	if st := e.Stats(); st.Errors != 1 || len(st.Published) != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEmitter_FullQueueDrops(t *testing.T) {
	pub := &recordingPublisher{gate: make(chan struct{})}
	e := New(pub, "rp", "x")

	// One update is held by the blocked publisher, queueSize wait in the queue.
	total := queueSize + 10
	for i := 0; i < total; i++ {
		e.Render(display.State{})
	}
	close(pub.gate)
	e.Close()

	st := e.Stats()
	sent := st.Published["rp/state"]
	if sent+st.Dropped != uint64(total) {
		t.Errorf("published %d + dropped %d != %d", sent, st.Dropped, total)
	}
	if st.Dropped == 0 {
		t.Error("expected drops while the publisher was blocked")
	}
}

func TestEmitter_CloseIdempotent(t *testing.T) {
	e := New(&recordingPublisher{}, "rp", "x")
	e.Close()
	e.Close()
	// after Close updates are discarded
	e.Render(display.State{})
}

func TestRoutingKey(t *testing.T) {
	cases := map[string]string{
		"recpause/studio/state": "recpause.studio.state",
		"/rp/advisory/":         "rp.advisory",
		"flat":                  "flat",
	}
	for in, want := range cases {
		if got := RoutingKey(in); got != want {
			t.Errorf("RoutingKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL("localhost:1883"); got != "tcp://localhost:1883" {
		t.Errorf("got %q", got)
	}
	if got := brokerURL("ssl://broker:8883"); got != "ssl://broker:8883" {
		t.Errorf("got %q", got)
	}
}
