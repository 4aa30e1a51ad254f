// Package emitter publishes display updates to a message broker so that
// remote dashboards can follow the capture session.
package emitter

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
)

// Message kinds, appended to the base topic or used as routing key suffix.
const (
	KindState    = "state"
	KindAdvisory = "advisory"
)

const queueSize = 32

// Publisher delivers one payload to a broker topic.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
	Close() error
}

// Message is the JSON body of every published update.
type Message struct {
	Time     time.Time         `json:"t"`
	Source   string            `json:"source"`
	Kind     string            `json:"kind"`
	State    *display.State    `json:"state,omitempty"`
	Advisory *display.Advisory `json:"advisory,omitempty"`
}

type outgoing struct {
	topic   string
	payload []byte
	retain  bool
}

// Emitter is a display.Surface that publishes asynchronously. Render and
// Advise never block; updates are dropped when the queue is full.
type Emitter struct {
	pub    Publisher
	base   string
	source string

	queue   chan outgoing
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	dropped   uint64
}

// Stats contains emitter statistics.
type Stats struct {
	Published map[string]uint64
	Errors    uint64
	Dropped   uint64
}

// New starts an emitter publishing under base (e.g. "recpause/studio").
func New(pub Publisher, base, source string) *Emitter {
	e := &Emitter{
		pub:       pub,
		base:      base,
		source:    source,
		queue:     make(chan outgoing, queueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		published: make(map[string]uint64),
	}
	go e.loop()
	return e
}

// Topic returns the full topic for a message kind.
func (e *Emitter) Topic(kind string) string {
	return fmt.Sprintf("%s/%s", e.base, kind)
}

// Render publishes s as a retained state message.
func (e *Emitter) Render(s display.State) {
	e.enqueue(Message{Kind: KindState, State: &s}, true)
}

// Advise publishes a.
func (e *Emitter) Advise(a display.Advisory) {
	e.enqueue(Message{Kind: KindAdvisory, Advisory: &a}, false)
}

func (e *Emitter) enqueue(m Message, retain bool) {
	m.Time = time.Now().UTC()
	m.Source = e.source
	payload, err := json.Marshal(m)
	if err != nil {
		e.countError()
		debug.Errorf("emitter: marshal %s: %v", m.Kind, err)
		return
	}
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.queue <- outgoing{topic: e.Topic(m.Kind), payload: payload, retain: retain}:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	}
}

func (e *Emitter) loop() {
	defer close(e.stopped)
	for {
		select {
		case o := <-e.queue:
			e.send(o)
		case <-e.done:
			// flush what is already queued
			for {
				select {
				case o := <-e.queue:
					e.send(o)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) send(o outgoing) {
	if err := e.pub.Publish(o.topic, o.payload, o.retain); err != nil {
		e.countError()
		debug.Errorf("emitter: publish %s: %v", o.topic, err)
		return
	}
	e.mu.Lock()
	e.published[o.topic]++
	e.mu.Unlock()
	debug.Trace("emitter: published %s (%d bytes)", o.topic, len(o.payload))
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Stats returns emitter statistics.
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Published: published, Errors: e.errors, Dropped: e.dropped}
}

// Close stops the emitter after queued updates are sent, then closes the
// publisher.
func (e *Emitter) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		<-e.stopped
		err = e.pub.Close()
	})
	return err
}
