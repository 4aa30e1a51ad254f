package geometry

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate. Device points are normalized to [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center is the middle of the normalized device space.
var Center = Point{X: 0.5, Y: 0.5}

// Size is the extent of a display layer in its own units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the size can be used as a conversion reference.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0 &&
		!math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// DevicePoint converts a tap on a preview layer into normalized device
// coordinates. Device space is the sensor in landscape-right orientation with
// (0,0) at the top left and (1,1) at the bottom right. mirrored is set for
// front cameras whose preview is flipped horizontally.
func DevicePoint(tap Point, layer Size, o VideoOrientation, mirrored bool) (Point, error) {
	if !layer.Valid() {
		return Point{}, fmt.Errorf("invalid layer size %vx%v", layer.Width, layer.Height)
	}
	if math.IsNaN(tap.X) || math.IsNaN(tap.Y) {
		return Point{}, fmt.Errorf("invalid tap point %v", tap)
	}

	x := clamp(tap.X / layer.Width)
	y := clamp(tap.Y / layer.Height)
	if mirrored {
		x = 1 - x
	}

	var p Point
	switch o {
	case Portrait:
		p = Point{X: y, Y: 1 - x}
	case PortraitUpsideDown:
		p = Point{X: 1 - y, Y: x}
	case LandscapeRight:
		p = Point{X: x, Y: y}
	case LandscapeLeft:
		p = Point{X: 1 - x, Y: 1 - y}
	default:
		return Point{}, fmt.Errorf("unsupported orientation %v", o)
	}
	return p, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
