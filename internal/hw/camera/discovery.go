package camera

// StaticDiscovery serves a fixed device list, in priority order.
type StaticDiscovery struct {
	devices []Device
}

// NewStaticDiscovery returns a discovery over devices. Order matters: lookups
// return the first match.
func NewStaticDiscovery(devices []Device) *StaticDiscovery {
	cp := make([]Device, len(devices))
	copy(cp, devices)
	return &StaticDiscovery{devices: cp}
}

// Devices returns the video devices.
func (s *StaticDiscovery) Devices() []Device {
	var out []Device
	for _, d := range s.devices {
		if d.Type != DeviceMicrophone {
			out = append(out, d)
		}
	}
	return out
}

// Default returns the first video device of type t at position p.
func (s *StaticDiscovery) Default(t DeviceType, p Position) (Device, bool) {
	for _, d := range s.devices {
		if d.Type == t && d.Position == p {
			return d, true
		}
	}
	return Device{}, false
}

// DefaultAudio returns the first microphone.
func (s *StaticDiscovery) DefaultAudio() (Device, bool) {
	for _, d := range s.devices {
		if d.Type == DeviceMicrophone {
			return d, true
		}
	}
	return Device{}, false
}

// UniquePositions counts distinct positions among video devices.
func (s *StaticDiscovery) UniquePositions() int {
	return uniquePositions(s.Devices())
}

func uniquePositions(devices []Device) int {
	seen := make(map[Position]struct{})
	for _, d := range devices {
		seen[d.Position] = struct{}{}
	}
	return len(seen)
}

// FindPreferred picks the first device matching both position and type,
// falling back to the first at the position.
func FindPreferred(devices []Device, p Position, t DeviceType) (Device, bool) {
	for _, d := range devices {
		if d.Position == p && d.Type == t {
			return d, true
		}
	}
	for _, d := range devices {
		if d.Position == p {
			return d, true
		}
	}
	return Device{}, false
}
