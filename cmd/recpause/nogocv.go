//go:build !gocv

package main

import (
	"errors"

	"github.com/cjeanneret/RecPause/internal/config"
	"github.com/cjeanneret/RecPause/internal/hw/camera"
)

func openCVBackend(*config.Config) (camera.FrameSource, []camera.Device, error) {
	return nil, nil, errors.New("gocv backend not built in (rebuild with -tags gocv)")
}
