package gpio

import "testing"

func TestMockDriver_PullUpReadsHighUntilSet(t *testing.T) {
	m := NewMockDriver()
	if err := m.SetupPin(23, InputPullUp); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := m.ReadPin(23); lvl != High {
		t.Errorf("idle pull-up pin = %v, want High", lvl)
	}
	m.Set(23, Low)
	if lvl, _ := m.ReadPin(23); lvl != Low {
		t.Errorf("pressed pin = %v, want Low", lvl)
	}
}

func TestMockDriver_WriteIsReadBack(t *testing.T) {
	m := NewMockDriver()
	_ = m.SetupPin(17, Output)
	_ = m.WritePin(17, High)
	if m.Level(17) != High {
		t.Error("written level not recorded")
	}
	if lvl, _ := m.ReadPin(5); lvl != Low {
		t.Errorf("unconfigured pin = %v, want Low", lvl)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
	_ = d.Close()
}
