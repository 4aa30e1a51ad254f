//go:build gocv

package main

import (
	"fmt"

	"github.com/cjeanneret/RecPause/internal/config"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
)

// openCVBackend probes local capture devices and returns a frame source for them.
func openCVBackend(cfg *config.Config) (camera.FrameSource, []camera.Device, error) {
	devices := camera.ProbeOpenCV(cfg.Camera.GocvMaxIndex)
	if len(devices) == 0 {
		return nil, nil, fmt.Errorf("gocv: no capture device in indices [0, %d)", cfg.Camera.GocvMaxIndex)
	}
	return camera.NewOpenCVSource(cfg.Camera.FrameWidth, cfg.Camera.FrameHeight), devices, nil
}
