package capture

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/media"
	"github.com/cjeanneret/RecPause/internal/permission"
)

// Processor is the camera.PhotoDelegate of a single request.
type Processor struct {
	tracker  *Tracker
	settings camera.PhotoSettings
	handlers Handlers

	mu          sync.Mutex
	photo       []byte
	companion   string
	matte       []byte
	livePending bool // LivePhotoCapturing(true) sent, false not yet
	finished    bool
	result      Result
	done        chan struct{}
}

// Settings returns the requested settings.
func (p *Processor) Settings() camera.PhotoSettings { return p.settings }

// Done is closed once the request has finished.
func (p *Processor) Done() <-chan struct{} { return p.done }

// Result returns the outcome; it is only meaningful after Done.
func (p *Processor) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *Processor) WillBeginCapture(resolved camera.ResolvedPhotoSettings) {
	if !resolved.HasLivePhotoMovie() {
		return
	}
	p.mu.Lock()
	p.livePending = true
	p.mu.Unlock()
	if p.handlers.LivePhotoCapturing != nil {
		p.handlers.LivePhotoCapturing(true)
	}
}

func (p *Processor) WillCapturePhoto(camera.ResolvedPhotoSettings) {
	if p.handlers.WillCapture != nil {
		p.handlers.WillCapture()
	}
}

func (p *Processor) DidFinishProcessingPhoto(photo camera.Photo, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		debug.Errorf("Error capturing photo %s: %v", p.settings.ID, err)
	} else {
		p.photo = photo.Data
	}
	// The matte only exists when a subject was detected.
	p.matte = photo.Matte
}

func (p *Processor) DidFinishRecordingLivePhotoMovie(string, camera.ResolvedPhotoSettings) {
	p.endLiveCapture()
}

// endLiveCapture sends the LivePhotoCapturing(false) matching the one sent
// by WillBeginCapture, at most once.
func (p *Processor) endLiveCapture() {
	p.mu.Lock()
	pending := p.livePending
	p.livePending = false
	p.mu.Unlock()
	if pending && p.handlers.LivePhotoCapturing != nil {
		p.handlers.LivePhotoCapturing(false)
	}
}

func (p *Processor) DidFinishProcessingLivePhotoMovie(path string, _ time.Duration, err error) {
	if err != nil {
		debug.Errorf("Error processing live photo companion movie: %v", err)
		return
	}
	p.mu.Lock()
	p.companion = path
	p.mu.Unlock()
}

func (p *Processor) DidFinishCapture(_ camera.ResolvedPhotoSettings, err error) {
	p.mu.Lock()
	finished := p.finished
	p.mu.Unlock()
	if finished {
		debug.Errorf("capture: request %s finished twice", p.settings.ID)
		return
	}

	res := Result{ID: p.settings.ID}
	if err != nil {
		debug.Errorf("Error capturing photo %s: %v", p.settings.ID, err)
		res.Err = err
		p.finish(res)
		return
	}

	p.mu.Lock()
	asset := media.PhotoAsset{
		ID:                 p.settings.ID,
		Data:               p.photo,
		Extension:          p.settings.Codec.Extension(false),
		CompanionMoviePath: p.companion,
		Matte:              p.matte,
		CapturedAt:         time.Now(),
	}
	p.mu.Unlock()

	if len(asset.Data) == 0 {
		debug.Live("No photo data for %s", p.settings.ID)
		p.finish(res)
		return
	}

	t := p.tracker
	granted, perr := t.auth.Request(t.ctx, permission.PhotoLibrary)
	switch {
	case perr != nil:
		res.PersistErr = fmt.Errorf("photo library permission: %w", perr)
		debug.Error(res.PersistErr)
	case !granted:
		res.Denied = true
		debug.Live("Photo library access denied, photo %s discarded", p.settings.ID)
	default:
		if serr := t.lib.SavePhoto(t.ctx, asset); serr != nil {
			res.PersistErr = serr
			debug.Errorf("Error occurred while saving photo to library: %v", serr)
		} else {
			res.Saved = true
		}
	}
	p.finish(res)
}

// finish closes any open live movie capture, removes the companion temp
// file, releases the request and fires Finished. Later calls are ignored.
func (p *Processor) finish(res Result) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		debug.Errorf("capture: request %s finished twice", p.settings.ID)
		return
	}
	p.finished = true
	p.result = res
	companion := p.companion
	if companion == "" {
		companion = p.settings.LivePhotoMoviePath
	}
	p.mu.Unlock()

	// A failed capture may never report the end of its live movie.
	p.endLiveCapture()

	if companion != "" {
		if err := os.Remove(companion); err != nil && !errors.Is(err, os.ErrNotExist) {
			debug.Errorf("Could not remove file at %s: %v", companion, err)
		}
	}

	if !p.tracker.remove(p.settings.ID) {
		debug.Errorf("capture: request %s was not tracked", p.settings.ID)
	}
	debug.Request(p.settings.ID, "finished")
	if p.handlers.Finished != nil {
		p.handlers.Finished(res)
	}
	close(p.done)
}
