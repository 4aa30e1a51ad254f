package camera

import (
	"errors"
	"testing"
)

func TestStaticDiscovery(t *testing.T) {
	d := NewStaticDiscovery([]Device{testBackDual, testMic, testFrontWide})

	if got := len(d.Devices()); got != 2 {
		t.Errorf("Devices() = %d, want 2 (microphone excluded)", got)
	}
	if got := d.UniquePositions(); got != 2 {
		t.Errorf("UniquePositions() = %d, want 2", got)
	}
	if dev, ok := d.Default(DeviceDualCamera, PositionBack); !ok || dev.ID != "back-dual" {
		t.Errorf("Default(dual, back) = %v, %v", dev, ok)
	}
	if _, ok := d.Default(DeviceWideAngleCamera, PositionBack); ok {
		t.Error("Default(wide, back) found a device")
	}
	if mic, ok := d.DefaultAudio(); !ok || mic.ID != "mic" {
		t.Errorf("DefaultAudio() = %v, %v", mic, ok)
	}
}

func TestFindPreferred(t *testing.T) {
	frontDepth := Device{ID: "front-depth", Position: PositionFront, Type: DeviceTrueDepthCamera}
	devices := []Device{testBackDual, testFrontWide, frontDepth}

	tests := []struct {
		name   string
		pos    Position
		typ    DeviceType
		wantID string
		wantOK bool
	}{
		{"exact match wins over order", PositionFront, DeviceTrueDepthCamera, "front-depth", true},
		{"position fallback", PositionFront, DeviceDualCamera, "front-wide", true},
		{"back dual", PositionBack, DeviceDualCamera, "back-dual", true},
		{"no device at position", PositionUnspecified, DeviceDualCamera, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindPreferred(devices, tt.pos, tt.typ)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Errorf("FindPreferred = %q, %v; want %q, %v", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestParsers(t *testing.T) {
	if p, err := ParsePosition("Back"); err != nil || p != PositionBack {
		t.Errorf("ParsePosition(Back) = %v, %v", p, err)
	}
	if _, err := ParsePosition("sideways"); err == nil {
		t.Error("ParsePosition(sideways) should fail")
	}
	if dt, err := ParseDeviceType(" true_depth "); err != nil || dt != DeviceTrueDepthCamera {
		t.Errorf("ParseDeviceType = %v, %v", dt, err)
	}
	if _, err := ParseDeviceType("periscope"); err == nil {
		t.Error("ParseDeviceType(periscope) should fail")
	}
}

func TestCodecExtension(t *testing.T) {
	tests := []struct {
		codec Codec
		movie bool
		want  string
	}{
		{CodecHEVC, false, "heic"},
		{CodecJPEG, false, "jpg"},
		{CodecHEVC, true, "mov"},
		{CodecMJPG, true, "avi"},
	}
	for _, tt := range tests {
		if got := tt.codec.Extension(tt.movie); got != tt.want {
			t.Errorf("%s.Extension(%v) = %q, want %q", tt.codec, tt.movie, got, tt.want)
		}
	}
}

func TestRecordingFinishedSuccessfully(t *testing.T) {
	if !RecordingFinishedSuccessfully(nil) {
		t.Error("nil error should count as success")
	}
	if RecordingFinishedSuccessfully(errors.New("disk full")) {
		t.Error("plain error should not count as success")
	}
	if !RecordingFinishedSuccessfully(&RecordingError{Err: ErrNotRunning, SuccessfullyFinished: true}) {
		t.Error("finished flag ignored")
	}
}

func TestCapsSupport(t *testing.T) {
	if !testBackDual.Caps.SupportsFocus(FocusAuto) {
		t.Error("back dual should support auto focus")
	}
	if testFrontWide.Caps.SupportsFocus(FocusAuto) {
		t.Error("front wide has no focus point of interest")
	}
	if testBackDual.Caps.SupportsExposure(ExposureLocked) {
		t.Error("locked exposure not in mode list")
	}
}
