package permission

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// countingPrompter records how often it was asked.
type countingPrompter struct {
	answer bool
	calls  int
}

func (c *countingPrompter) Prompt(context.Context, Kind) (bool, error) {
	c.calls++
	return c.answer, nil
}

func TestStore_StatusDefaults(t *testing.T) {
	s, err := NewStore(map[Kind]Status{Camera: Authorized}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Status(Camera); got != Authorized {
		t.Errorf("camera = %s, want authorized", got)
	}
	if got := s.Status(Microphone); got != NotDetermined {
		t.Errorf("microphone = %s, want not_determined", got)
	}
	if got := s.Status("teleport"); got != Restricted {
		t.Errorf("unknown kind = %s, want restricted", got)
	}
}

func TestStore_RequestDecidedKindsDoNotPrompt(t *testing.T) {
	p := &countingPrompter{answer: true}
	s, _ := NewStore(map[Kind]Status{Camera: Authorized, Microphone: Denied, PhotoLibrary: Restricted}, "", p)

	tests := []struct {
		kind Kind
		want bool
	}{
		{Camera, true},
		{Microphone, false},
		{PhotoLibrary, false},
	}
	for _, tt := range tests {
		got, err := s.Request(context.Background(), tt.kind)
		if err != nil || got != tt.want {
			t.Errorf("Request(%s) = %v, %v; want %v", tt.kind, got, err, tt.want)
		}
	}
	if p.calls != 0 {
		t.Errorf("prompted %d times, want 0", p.calls)
	}
}

func TestStore_UndeterminedPromptsOnce(t *testing.T) {
	p := &countingPrompter{answer: false}
	s, _ := NewStore(nil, "", p)

	for i := 0; i < 3; i++ {
		got, err := s.Request(context.Background(), Camera)
		if err != nil || got {
			t.Fatalf("Request = %v, %v; want false", got, err)
		}
	}
	if p.calls != 1 {
		t.Errorf("prompted %d times, want 1", p.calls)
	}
	if s.Status(Camera) != Denied {
		t.Errorf("status = %s, want denied", s.Status(Camera))
	}
}

func TestStore_RequestUnknownKind(t *testing.T) {
	s, _ := NewStore(nil, "", FixedPrompter(true))
	if _, err := s.Request(context.Background(), "teleport"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestStore_DecisionsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "permissions.yaml")
	s, err := NewStore(nil, path, FixedPrompter(true))
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Request(context.Background(), PhotoLibrary); !ok {
		t.Fatal("request not granted")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("decisions file not written: %v", err)
	}

	reloaded, err := NewStore(map[Kind]Status{PhotoLibrary: Denied}, path, FixedPrompter(false))
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Status(PhotoLibrary); got != Authorized {
		t.Errorf("reloaded photo_library = %s, want authorized", got)
	}
	if got := reloaded.Status(Camera); got != NotDetermined {
		t.Errorf("reloaded camera = %s, want not_determined", got)
	}
}

func TestStore_RejectsBadDecisionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	if err := os.WriteFile(path, []byte("decisions:\n  camera: maybe\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(nil, path, nil); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestStore_NoPrompterDenies(t *testing.T) {
	s, _ := NewStore(nil, "", nil)
	if ok, err := s.Request(context.Background(), Camera); ok || err != nil {
		t.Errorf("Request = %v, %v; want false, nil", ok, err)
	}
	if s.Status(Camera) != NotDetermined {
		t.Error("status changed without a prompt")
	}
}

func TestTerminalPrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := TerminalPrompter{In: strings.NewReader(tt.input), Out: &out}
		got, err := p.Prompt(context.Background(), PhotoLibrary)
		if err != nil || got != tt.want {
			t.Errorf("Prompt(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
		}
		if !strings.Contains(out.String(), "photo library") {
			t.Errorf("prompt text = %q", out.String())
		}
	}
}

func TestTerminalPrompter_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := TerminalPrompter{In: r, Out: io.Discard}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Prompt(ctx, Camera); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestParse(t *testing.T) {
	if k, err := ParseKind(" Photo_Library "); err != nil || k != PhotoLibrary {
		t.Errorf("ParseKind = %v, %v", k, err)
	}
	if st, err := ParseStatus(""); err != nil || st != NotDetermined {
		t.Errorf("ParseStatus(\"\") = %v, %v", st, err)
	}
	if _, err := ParseStatus("maybe"); err == nil {
		t.Error("ParseStatus(maybe) should fail")
	}
}
