// Package capture tracks in-flight still captures.
//
// Each capture gets a Processor keyed by the unique ID of its settings. The
// processor gathers what the camera delivers (photo bytes, live photo
// companion, portrait matte) in whatever order it arrives, commits it to the
// media library once the capture finishes, and then releases itself from the
// Tracker. Finished fires exactly once per request.
package capture

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/media"
	"github.com/cjeanneret/RecPause/internal/permission"
)

// ErrNegativeLiveCount signals more live photo "done" events than "started"
// ones. The counter stays at zero.
var ErrNegativeLiveCount = errors.New("capture: live photo capture count below zero")

// Handlers are the checkpoints of one request. Any may be nil. They are
// called from the camera's callback goroutine.
type Handlers struct {
	// WillCapture fires right before the exposure.
	WillCapture func()
	// LivePhotoCapturing reports the start and end of a live photo movie.
	LivePhotoCapturing func(capturing bool)
	// Finished fires once, after the request has left the tracker.
	Finished func(Result)
}

// Result is the outcome of one request.
type Result struct {
	ID uuid.UUID
	// Err is the capture error, if the capture itself failed.
	Err error
	// Saved is true when the photo was committed to the library.
	Saved bool
	// Denied is true when photo library access was refused.
	Denied bool
	// PersistErr is a library or permission error; it is never retried.
	PersistErr error
}

// Tracker owns the in-flight requests.
type Tracker struct {
	capturer camera.PhotoCapturer
	auth     permission.Authority
	lib      media.Library

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[uuid.UUID]*Processor
	live     int
}

// NewTracker returns a tracker that starts captures on c and saves results
// to lib after asking auth for photo library access.
func NewTracker(c camera.PhotoCapturer, auth permission.Authority, lib media.Library) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		capturer: c,
		auth:     auth,
		lib:      lib,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[uuid.UUID]*Processor),
	}
}

// Close aborts pending permission prompts and saves. Requests still finish.
func (t *Tracker) Close() {
	t.cancel()
}

// Begin registers a request for settings and starts the capture. The
// returned ID is settings.ID.
func (t *Tracker) Begin(settings camera.PhotoSettings, h Handlers) uuid.UUID {
	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	p := &Processor{
		tracker:  t,
		settings: settings,
		handlers: h,
		done:     make(chan struct{}),
	}

	t.mu.Lock()
	t.inflight[settings.ID] = p
	n := len(t.inflight)
	t.mu.Unlock()
	debug.Request(settings.ID, "begin")
	debug.Trace("capture: %d request(s) in flight", n)

	t.capturer.CapturePhoto(settings, p)
	return settings.ID
}

// LiveCaptureChanged moves the live photo counter and returns its new value.
func (t *Tracker) LiveCaptureChanged(capturing bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if capturing {
		t.live++
		return t.live, nil
	}
	if t.live == 0 {
		return 0, ErrNegativeLiveCount
	}
	t.live--
	return t.live, nil
}

// LiveCount returns the live photo counter.
func (t *Tracker) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Len returns the number of in-flight requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// Pending returns the in-flight request IDs in a stable order.
func (t *Tracker) Pending() []uuid.UUID {
	t.mu.Lock()
	ids := make([]uuid.UUID, 0, len(t.inflight))
	for id := range t.inflight {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Processor returns the in-flight processor for id.
func (t *Tracker) Processor(id uuid.UUID) (*Processor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.inflight[id]
	return p, ok
}

// remove drops id and reports whether it was present.
func (t *Tracker) remove(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return false
	}
	delete(t.inflight, id)
	return true
}
