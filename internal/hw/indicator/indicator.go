// Package indicator drives a panel of LEDs from the capture session state.
package indicator

import (
	"sync"
	"time"

	"github.com/cjeanneret/RecPause/internal/debug"
	"github.com/cjeanneret/RecPause/internal/display"
	"github.com/cjeanneret/RecPause/internal/hw/gpio"
)

// Pins holds the BCM pin of each LED. 0 = not fitted.
type Pins struct {
	Recording   int
	LivePhoto   int
	Unavailable int
	Resume      int
	Flash       int
	Fault       int // lit on an advisory, cleared once the session runs
}

func (p Pins) all() []int {
	var pins []int
	for _, pin := range []int{p.Recording, p.LivePhoto, p.Unavailable, p.Resume, p.Flash, p.Fault} {
		if pin > 0 {
			pins = append(pins, pin)
		}
	}
	return pins
}

// Panel is a display.Surface that lights one LED per indicator. LEDs are
// active HIGH.
type Panel struct {
	gpio  gpio.Driver
	pins  Pins
	pulse time.Duration

	mu        sync.Mutex
	levels    map[int]gpio.Level
	lastFlash int
	wg        sync.WaitGroup
}

// NewPanel configures the fitted pins as outputs, all off.
// pulse is how long the flash LED stays lit per photo; 0 defaults to 100ms.
func NewPanel(g gpio.Driver, pins Pins, pulse time.Duration) *Panel {
	if pulse <= 0 {
		pulse = 100 * time.Millisecond
	}
	p := &Panel{
		gpio:   g,
		pins:   pins,
		pulse:  pulse,
		levels: make(map[int]gpio.Level),
	}
	for _, pin := range pins.all() {
		_ = g.SetupPin(pin, gpio.Output)
		p.write(pin, gpio.Low)
	}
	return p
}

// Render updates the LEDs to match s. A rising preview-flash counter pulses
// the flash LED once.
func (p *Panel) Render(s display.State) {
	p.mu.Lock()
	p.set(p.pins.Recording, s.Recording)
	p.set(p.pins.LivePhoto, s.Indicators.CapturingLivePhoto)
	p.set(p.pins.Unavailable, s.Indicators.CameraUnavailable)
	p.set(p.pins.Resume, s.Indicators.ResumeVisible)
	if s.Session == "running" {
		p.set(p.pins.Fault, false)
	}
	flash := s.Indicators.PreviewFlash > p.lastFlash
	p.lastFlash = s.Indicators.PreviewFlash
	p.mu.Unlock()

	if flash && p.pins.Flash > 0 {
		p.wg.Add(1)
		go p.pulseFlash()
	}
}

// Advise lights the fault LED.
func (p *Panel) Advise(a display.Advisory) {
	debug.Trace("indicator: advisory %s", a.Kind)
	p.mu.Lock()
	p.set(p.pins.Fault, true)
	p.mu.Unlock()
}

// Off waits for pending pulses and switches every LED off.
func (p *Panel) Off() {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pin := range p.pins.all() {
		p.write(pin, gpio.Low)
	}
}

func (p *Panel) pulseFlash() {
	defer p.wg.Done()
	p.mu.Lock()
	p.write(p.pins.Flash, gpio.High)
	p.mu.Unlock()

	time.Sleep(p.pulse)

	p.mu.Lock()
	p.write(p.pins.Flash, gpio.Low)
	p.mu.Unlock()
}

// set writes pin only when its level changes. Caller holds mu.
func (p *Panel) set(pin int, on bool) {
	if pin <= 0 {
		return
	}
	level := gpio.Level(on)
	if cur, ok := p.levels[pin]; ok && cur == level {
		return
	}
	p.write(pin, level)
}

func (p *Panel) write(pin int, level gpio.Level) {
	if err := p.gpio.WritePin(pin, level); err != nil {
		debug.Errorf("indicator: pin %d: %v", pin, err)
		return
	}
	p.levels[pin] = level
}
