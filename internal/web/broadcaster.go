package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/RecPause/internal/display"
)

// Event types sent on the status stream.
const (
	EventLog      = "log"
	EventState    = "state"
	EventAdvisory = "advisory"
)

// StatusEvent represents a single message for SSE.
type StatusEvent struct {
	Time     string            `json:"t"`
	Type     string            `json:"type"`
	Level    string            `json:"l,omitempty"`
	Msg      string            `json:"msg,omitempty"`
	State    *display.State    `json:"state,omitempty"`
	Advisory *display.Advisory `json:"advisory,omitempty"`
}

// StatusBroadcaster distributes log lines and display updates to SSE
// clients. It is a display.Surface.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}

	lastMu   sync.Mutex
	last     display.State
	hasLast  bool
	advisory *display.Advisory
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a log line to all subscribed clients.
// Messages are sent as JSON: {"t":"...","type":"log","l":"info","msg":"..."}
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.publish(StatusEvent{Type: EventLog, Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// Render remembers s and pushes it to clients.
func (b *StatusBroadcaster) Render(s display.State) {
	b.lastMu.Lock()
	b.last, b.hasLast = s, true
	b.lastMu.Unlock()
	b.publish(StatusEvent{Type: EventState, State: &s})
}

// Advise pushes a to clients. The latest advisory is kept for late joiners.
func (b *StatusBroadcaster) Advise(a display.Advisory) {
	b.lastMu.Lock()
	b.advisory = &a
	b.lastMu.Unlock()
	b.publish(StatusEvent{Type: EventAdvisory, Level: "warn", Msg: a.Message, Advisory: &a})
}

// Last returns the most recently rendered state.
func (b *StatusBroadcaster) Last() (display.State, bool) {
	b.lastMu.Lock()
	defer b.lastMu.Unlock()
	return b.last, b.hasLast
}

// Advisory returns the most recent advisory, if any.
func (b *StatusBroadcaster) Advisory() *display.Advisory {
	b.lastMu.Lock()
	defer b.lastMu.Unlock()
	return b.advisory
}

// publish encodes evt and hands it to every client. Slow clients may miss
// messages (non-blocking, buffered).
func (b *StatusBroadcaster) publish(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		msg := strings.TrimSpace(line)
		if msg == "" {
			continue
		}
		level := "info"
		if strings.Contains(msg, "[ERROR]") {
			level = "error"
		}
		w.b.Broadcast(level, msg)
	}
	return len(p), nil
}
