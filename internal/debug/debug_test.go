package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(LevelLive)
	t.Cleanup(func() { Init(LevelOff) })

	Info("setup %s", "ok")
	Live("photo taken")
	Verbose("hidden")
	Trace("hidden too")

	got := buf.String()
	if !strings.Contains(got, "[INFO] setup ok") {
		t.Errorf("missing info line in %q", got)
	}
	if !strings.Contains(got, "[LIVE] photo taken") {
		t.Errorf("missing live line in %q", got)
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("verbose/trace output leaked at level %d: %q", LevelLive, got)
	}
}

func TestOffPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(LevelOff)

	Info("x")
	Error(errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if IsEnabled(LevelInfo) {
		t.Error("IsEnabled(LevelInfo) should be false at LevelOff")
	}
}
