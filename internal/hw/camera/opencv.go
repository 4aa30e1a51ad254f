//go:build gocv

package camera

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/RecPause/internal/debug"
)

// OpenCVSource grabs frames from local capture devices. Device IDs are of
// the form "cv<index>".
type OpenCVSource struct {
	width, height int

	mu   sync.Mutex
	open map[string]*gocv.VideoCapture
}

// NewOpenCVSource returns a source that opens devices lazily at the given size.
func NewOpenCVSource(width, height int) *OpenCVSource {
	return &OpenCVSource{
		width:  width,
		height: height,
		open:   make(map[string]*gocv.VideoCapture),
	}
}

// ProbeOpenCV tries capture indices [0, max) and returns the ones that open.
// Index 0 is reported as the back camera, index 1 as the front one.
func ProbeOpenCV(max int) []Device {
	var devices []Device
	for i := 0; i < max; i++ {
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		opened := vc.IsOpened()
		vc.Close()
		if !opened {
			continue
		}
		pos := PositionUnspecified
		switch i {
		case 0:
			pos = PositionBack
		case 1:
			pos = PositionFront
		}
		devices = append(devices, Device{
			ID:       fmt.Sprintf("cv%d", i),
			Name:     fmt.Sprintf("Camera %d", i),
			Position: pos,
			Type:     DeviceWideAngleCamera,
		})
		debug.Verbose("opencv: found capture device %d", i)
	}
	return devices
}

func (o *OpenCVSource) capture(deviceID string) (*gocv.VideoCapture, error) {
	if vc, ok := o.open[deviceID]; ok {
		return vc, nil
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(deviceID, "cv"))
	if err != nil {
		return nil, fmt.Errorf("invalid device ID: %s", deviceID)
	}
	vc, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, fmt.Errorf("error opening camera %s: %w", deviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %s is not open", deviceID)
	}
	if o.width > 0 && o.height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(o.width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(o.height))
	}
	o.open[deviceID] = vc
	return vc, nil
}

// Frame reads one frame from deviceID and encodes it as JPEG.
func (o *OpenCVSource) Frame(deviceID string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	vc, err := o.capture(deviceID)
	if err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	defer img.Close()
	if ok := vc.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("failed to read frame from camera %s", deviceID)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases every opened device.
func (o *OpenCVSource) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var firstErr error
	for id, vc := range o.open {
		if err := vc.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("error closing camera %s: %w", id, err)
		}
		delete(o.open, id)
	}
	return firstErr
}
