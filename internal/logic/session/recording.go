package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
	"github.com/cjeanneret/RecPause/internal/logic/geometry"
	"github.com/cjeanneret/RecPause/internal/media"
	"github.com/cjeanneret/RecPause/internal/permission"
)

// recording is the movie in progress. Owned by sessionQ.
type recording struct {
	task    Task
	path    string
	started time.Time
}

// ToggleRecording starts a movie, or stops the one in progress.
func (c *Controller) ToggleRecording() {
	c.mainQ.Async(func() {
		ctl := &c.view.Controls
		if !ctl.Record.Enabled {
			debug.Trace("toggle recording ignored")
			return
		}
		// Re-enabled by the recording delegate.
		ctl.Camera.Enabled = false
		ctl.Record.Enabled = false
		ctl.CaptureMode.Enabled = false
		c.render()
		o := c.orientation
		c.sessionQ.Async(func() { c.toggleRecording(o) })
	})
}

func (c *Controller) toggleRecording(o geometry.VideoOrientation) {
	if !c.cam.HasOutput(camera.OutputMovie) {
		debug.Errorf("toggle recording without a movie output")
		c.runningChanged(c.cam.IsRunning())
		return
	}
	if c.rec != nil || c.cam.IsRecording() {
		c.cam.StopRecording()
		return
	}

	task := c.bg.Begin("recording")
	c.cam.SetVideoOrientation(camera.OutputMovie, o)

	codecs := c.cam.MovieCodecs()
	codec := camera.CodecH264
	switch {
	case camera.ContainsCodec(codecs, camera.CodecHEVC):
		codec = camera.CodecHEVC
	case !camera.ContainsCodec(codecs, camera.CodecH264) && len(codecs) > 0:
		codec = codecs[0]
	}

	path := filepath.Join(c.tempDir, uuid.NewString()+"."+codec.Extension(true))
	c.rec = &recording{task: task, path: path, started: time.Now()}
	debug.Value("recording", path)
	c.cam.StartRecording(path, codec, recordingDelegate{c})
}

// recordingDelegate keeps the camera.RecordingDelegate methods off the
// Controller's API.
type recordingDelegate struct{ c *Controller }

func (d recordingDelegate) DidStartRecording(string) {
	d.c.ui(func() {
		d.c.view.Recording = true
		d.c.view.Controls.Record.Enabled = true
		d.c.view.Icons.Record = display.RecordIconStop
	})
}

func (d recordingDelegate) DidFinishRecording(path string, err error) {
	c := d.c
	c.sessionQ.Async(func() {
		rec := c.rec
		c.rec = nil
		if rec != nil && rec.path != path {
			debug.Errorf("recording finished at %s, expected %s", path, rec.path)
		}
		go c.finishRecording(rec, path, err)

		multiCamera := c.discovery.UniquePositions() > 1
		c.ui(func() {
			c.view.Recording = false
			c.view.Controls.Camera.Enabled = multiCamera
			c.view.Controls.Record.Enabled = true
			c.view.Controls.CaptureMode.Enabled = true
			c.view.Icons.Record = display.RecordIconVideo
		})
	})
}

// finishRecording saves a usable movie to the library, then removes the
// temporary file and ends the background task.
func (c *Controller) finishRecording(rec *recording, path string, err error) {
	defer func() {
		if _, statErr := os.Stat(path); statErr == nil {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				debug.Errorf("Could not remove file at %s: %v", path, rmErr)
			}
		}
		if rec != nil {
			rec.task.End()
		}
	}()

	if err != nil {
		debug.Errorf("Movie file finishing error: %v", err)
	}
	if !camera.RecordingFinishedSuccessfully(err) {
		c.report(fmt.Errorf("%w: recording %s: %w", ErrCaptureFailed, filepath.Base(path), err))
		return
	}

	granted, perr := c.auth.Request(c.ctx, permission.PhotoLibrary)
	switch {
	case perr != nil:
		c.report(fmt.Errorf("%w: photo library permission: %w", ErrPersistenceFailed, perr))
	case !granted:
		debug.Live("Movie %s not saved, library access denied", filepath.Base(path))
	default:
		started := time.Now()
		if rec != nil {
			started = rec.started
		}
		if serr := c.lib.SaveMovie(c.ctx, media.MovieAsset{Path: path, CapturedAt: started}); serr != nil {
			c.report(fmt.Errorf("%w: %w", ErrPersistenceFailed, serr))
		}
	}
}

// report records err from outside sessionQ.
func (c *Controller) report(err error) {
	c.sessionQ.Async(func() { c.fail(err) })
}
