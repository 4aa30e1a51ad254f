package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
	"github.com/cjeanneret/RecPause/internal/logic/session"
	"github.com/cjeanneret/RecPause/internal/media"
)

const (
	// maxAssets caps GET /assets.
	maxAssets    = 500
	maxBodyBytes = 1 << 20
)

// StatusFunc returns the session-side status.
type StatusFunc func() session.Status

// EventInjector feeds simulated platform events to the capture backend.
type EventInjector interface {
	Inject(e camera.Event) error
}

// FocusRequest is a tap on a preview of the given size.
type FocusRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Display  *display.State    `json:"display,omitempty"`
	Session  *session.Status   `json:"session,omitempty"`
	Advisory *display.Advisory `json:"advisory,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Intents     display.Intents
	Status      StatusFunc
	Library     media.Library
	Injector    EventInjector
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies. status, lib and
// injector may be nil; the routes that need them then answer 503.
func NewHandlers(broadcaster *StatusBroadcaster, intents display.Intents, status StatusFunc, lib media.Library, injector EventInjector, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Intents:     intents,
		Status:      status,
		Library:     lib,
		Injector:    injector,
		staticFS:    staticFS,
	}
}

// ValidateFocus checks that a tap request is usable.
func ValidateFocus(f FocusRequest) error {
	for name, v := range map[string]float64{"x": f.X, "y": f.Y, "width": f.Width, "height": f.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	if f.Width <= 0 || f.Height <= 0 {
		return errors.New("width and height must be positive")
	}
	if f.X < 0 || f.Y < 0 || f.X > f.Width || f.Y > f.Height {
		return errors.New("tap must lie within the preview")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func accepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState returns the last rendered display state and the session status.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	var resp StateResponse
	if s, ok := h.Broadcaster.Last(); ok {
		resp.Display = &s
	}
	if h.Status != nil {
		st := h.Status()
		resp.Session = &st
	}
	resp.Advisory = h.Broadcaster.Advisory()
	writeJSON(w, http.StatusOK, resp)
}

// HandleAssets lists the media library, newest first.
func (h *Handlers) HandleAssets(w http.ResponseWriter, r *http.Request) {
	if h.Library == nil {
		http.Error(w, "media library not configured", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxAssets {
			http.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxAssets), http.StatusBadRequest)
			return
		}
		limit = n
	}
	assets, err := h.Library.List(r.Context(), limit)
	if err != nil {
		http.Error(w, "list assets: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []media.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// HandleMode handles POST /mode {"mode":"photo"|"movie"}.
func (h *Handlers) HandleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := display.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Intents.SetCaptureMode(m)
	accepted(w)
}

// HandleFocus handles POST /focus with a FocusRequest.
func (h *Handlers) HandleFocus(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := ValidateFocus(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Intents.FocusAndExposeTap(
		geometry.Point{X: req.X, Y: req.Y},
		geometry.Size{Width: req.Width, Height: req.Height},
	)
	accepted(w)
}

// HandleOrientation handles POST /orientation {"orientation":"landscape_left"}.
func (h *Handlers) HandleOrientation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Orientation string `json:"orientation"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := geometry.ParseDeviceOrientation(req.Orientation)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Intents.DeviceRotated(o)
	accepted(w)
}

// HandleToggle handles POST /toggle/{mode} for live, depth and matte.
func (h *Handlers) HandleToggle(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("mode") {
	case "live":
		h.Intents.ToggleLivePhoto()
	case "depth":
		h.Intents.ToggleDepth()
	case "matte":
		h.Intents.ToggleMatte()
	default:
		http.Error(w, "unknown toggle", http.StatusNotFound)
		return
	}
	accepted(w)
}

// intent adapts a no-argument intent to a handler.
func (h *Handlers) intent(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		accepted(w)
	}
}

// HandleSimEvent handles POST /sim/event with a camera.Event body.
func (h *Handlers) HandleSimEvent(w http.ResponseWriter, r *http.Request) {
	if h.Injector == nil {
		http.Error(w, "event injection not available", http.StatusServiceUnavailable)
		return
	}
	var e camera.Event
	if !decodeJSON(w, r, &e) {
		return
	}
	if err := h.Injector.Inject(e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	accepted(w)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Late joiners get the current state first.
	if s, ok := h.Broadcaster.Last(); ok {
		if data, err := json.Marshal(StatusEvent{Time: time.Now().Format(time.RFC3339), Type: EventState, State: &s}); err == nil {
			w.Write([]byte("data: " + string(data) + "\n\n"))
			flusher.Flush()
		}
	}

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
