package geometry

import (
	"encoding/json"
	"math"
	"testing"
)

const epsilon = 1e-9

func near(a, b Point) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon
}

func TestDevicePoint_Orientations(t *testing.T) {
	layer := Size{Width: 100, Height: 200}
	tap := Point{X: 25, Y: 50} // x=0.25, y=0.25 normalized

	cases := []struct {
		name     string
		o        VideoOrientation
		mirrored bool
		want     Point
	}{
		{"portrait", Portrait, false, Point{0.25, 0.75}},
		{"portrait_mirrored", Portrait, true, Point{0.25, 0.25}},
		{"upside_down", PortraitUpsideDown, false, Point{0.75, 0.25}},
		{"landscape_right", LandscapeRight, false, Point{0.25, 0.25}},
		{"landscape_left", LandscapeLeft, false, Point{0.75, 0.75}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DevicePoint(tap, layer, tc.o, tc.mirrored)
			if err != nil {
				t.Fatalf("DevicePoint: %v", err)
			}
			if !near(got, tc.want) {
				t.Errorf("DevicePoint() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDevicePoint_CenterIsInvariant(t *testing.T) {
	layer := Size{Width: 640, Height: 480}
	tap := Point{X: 320, Y: 240}
	for _, o := range []VideoOrientation{Portrait, PortraitUpsideDown, LandscapeRight, LandscapeLeft} {
		for _, m := range []bool{false, true} {
			got, err := DevicePoint(tap, layer, o, m)
			if err != nil {
				t.Fatalf("%v: %v", o, err)
			}
			if !near(got, Center) {
				t.Errorf("%v mirrored=%v: got %+v, want center", o, m, got)
			}
		}
	}
}

func TestDevicePoint_ClampsOutsideTaps(t *testing.T) {
	got, err := DevicePoint(Point{X: -10, Y: 500}, Size{Width: 100, Height: 100}, LandscapeRight, false)
	if err != nil {
		t.Fatalf("DevicePoint: %v", err)
	}
	if !near(got, Point{0, 1}) {
		t.Errorf("got %+v, want {0 1}", got)
	}
}

func TestDevicePoint_InvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		tap   Point
		layer Size
	}{
		{"zero_layer", Point{1, 1}, Size{}},
		{"negative_layer", Point{1, 1}, Size{Width: -1, Height: 10}},
		{"inf_layer", Point{1, 1}, Size{Width: math.Inf(1), Height: 10}},
		{"nan_tap", Point{math.NaN(), 1}, Size{Width: 10, Height: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DevicePoint(tc.tap, tc.layer, Portrait, false); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestFromDeviceOrientation(t *testing.T) {
	cases := []struct {
		in   DeviceOrientation
		want VideoOrientation
		ok   bool
	}{
		{DevicePortrait, Portrait, true},
		{DevicePortraitUpsideDown, PortraitUpsideDown, true},
		{DeviceLandscapeLeft, LandscapeRight, true},
		{DeviceLandscapeRight, LandscapeLeft, true},
		{DeviceFaceUp, Portrait, false},
		{DeviceFaceDown, Portrait, false},
		{DeviceUnknown, Portrait, false},
	}
	for _, tc := range cases {
		got, ok := FromDeviceOrientation(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("FromDeviceOrientation(%d) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestInitialOrientation(t *testing.T) {
	if got := InitialOrientation(InterfaceUnknown); got != Portrait {
		t.Errorf("unknown layout: got %v, want portrait", got)
	}
	if got := InitialOrientation(InterfaceLandscapeLeft); got != LandscapeLeft {
		t.Errorf("landscape left layout: got %v, want landscape_left", got)
	}
}

func TestParseOrientation_RoundTrip(t *testing.T) {
	for _, o := range []VideoOrientation{Portrait, PortraitUpsideDown, LandscapeRight, LandscapeLeft} {
		got, err := ParseOrientation(o.String())
		if err != nil || got != o {
			t.Errorf("ParseOrientation(%q) = (%v, %v)", o.String(), got, err)
		}
	}
	if _, err := ParseOrientation("sideways"); err == nil {
		t.Error("expected error for unknown orientation")
	}
}

func TestVideoOrientation_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		O VideoOrientation `json:"o"`
	}{LandscapeLeft})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"o":"landscape_left"}` {
		t.Errorf("json = %s", b)
	}
	var v struct {
		O VideoOrientation `json:"o"`
	}
	if err := json.Unmarshal([]byte(`{"o":"portrait_upside_down"}`), &v); err != nil || v.O != PortraitUpsideDown {
		t.Errorf("unmarshal = %v, %v", v.O, err)
	}
}

func TestParseDeviceOrientation(t *testing.T) {
	if d, err := ParseDeviceOrientation("Landscape_Left"); err != nil || d != DeviceLandscapeLeft {
		t.Errorf("ParseDeviceOrientation = %v, %v", d, err)
	}
	if _, err := ParseDeviceOrientation("diagonal"); err == nil {
		t.Error("expected error")
	}
}

func TestParseInterfaceOrientation(t *testing.T) {
	cases := map[string]InterfaceOrientation{
		"":                     InterfaceUnknown,
		"portrait":             InterfacePortrait,
		"portrait_upside_down": InterfacePortraitUpsideDown,
		"LANDSCAPE_LEFT":       InterfaceLandscapeLeft,
		"landscape_right":      InterfaceLandscapeRight,
	}
	for in, want := range cases {
		if got, err := ParseInterfaceOrientation(in); err != nil || got != want {
			t.Errorf("ParseInterfaceOrientation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseInterfaceOrientation("face_up"); err == nil {
		t.Error("face_up is not a layout orientation")
	}
}
