// Package permission is the authority the controller asks before using the
// camera, the microphone or the photo library.
//
// "Not determined" is a state of its own: it is the only status that leads
// to a prompt, and a prompt's answer is recorded so the same kind is never
// asked twice.
package permission

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/RecPause/internal/debug"
)

// ErrUnknownKind is returned for a permission kind the store does not know.
var ErrUnknownKind = errors.New("permission: unknown kind")

// Kind names a protected resource.
type Kind string

const (
	Camera       Kind = "camera"
	Microphone   Kind = "microphone"
	PhotoLibrary Kind = "photo_library"
)

// Kinds lists every known kind.
var Kinds = []Kind{Camera, Microphone, PhotoLibrary}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Status is the authorization state of a kind.
type Status string

const (
	NotDetermined Status = "not_determined"
	Authorized    Status = "authorized"
	Denied        Status = "denied"
	Restricted    Status = "restricted"
)

// ParseStatus validates s as a Status. Empty means NotDetermined.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return NotDetermined, nil
	case NotDetermined, Authorized, Denied, Restricted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown permission status %q", s)
	}
}

// Authority answers permission questions. Request may block for as long as
// the user takes to answer; it honours ctx.
type Authority interface {
	Status(kind Kind) Status
	Request(ctx context.Context, kind Kind) (bool, error)
}

// Prompter asks the user for an undetermined permission.
type Prompter interface {
	Prompt(ctx context.Context, kind Kind) (bool, error)
}

// FixedPrompter answers every prompt the same way.
type FixedPrompter bool

func (f FixedPrompter) Prompt(context.Context, Kind) (bool, error) { return bool(f), nil }

// TerminalPrompter asks on Out and reads a y/n line from In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p TerminalPrompter) Prompt(ctx context.Context, kind Kind) (bool, error) {
	fmt.Fprintf(p.Out, "Allow access to the %s? [y/N] ", strings.ReplaceAll(string(kind), "_", " "))

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- answer{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, fmt.Errorf("read answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

type decisionsFile struct {
	Decisions map[Kind]Status `yaml:"decisions"`
}

// Store is an Authority backed by configured initial statuses and a YAML
// file of recorded decisions.
type Store struct {
	path     string
	prompter Prompter

	mu       sync.Mutex
	statuses map[Kind]Status

	promptMu sync.Mutex // one prompt at a time
}

// NewStore builds a store. Decisions already recorded at path override the
// initial statuses; path may be empty to keep decisions in memory only.
func NewStore(initial map[Kind]Status, path string, prompter Prompter) (*Store, error) {
	s := &Store{
		path:     path,
		prompter: prompter,
		statuses: make(map[Kind]Status, len(Kinds)),
	}
	for _, k := range Kinds {
		s.statuses[k] = NotDetermined
	}
	for k, st := range initial {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
		s.statuses[k] = st
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read decisions: %w", err)
	}
	var f decisionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal decisions: %w", err)
	}
	for k, st := range f.Decisions {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
		if _, err := ParseStatus(string(st)); err != nil {
			return nil, err
		}
		s.statuses[k] = st
	}
	debug.Verbose("permission: loaded %d decisions from %s", len(f.Decisions), path)
	return s, nil
}

// Status returns the current status; unknown kinds read as Restricted.
func (s *Store) Status(kind Kind) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[kind]
	if !ok {
		return Restricted
	}
	return st
}

// Request returns whether kind is authorized, prompting if undetermined.
func (s *Store) Request(ctx context.Context, kind Kind) (bool, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return false, err
	}

	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	switch s.Status(kind) {
	case Authorized:
		return true, nil
	case Denied, Restricted:
		return false, nil
	}

	if s.prompter == nil {
		return false, nil
	}
	granted, err := s.prompter.Prompt(ctx, kind)
	if err != nil {
		return false, fmt.Errorf("prompt %s: %w", kind, err)
	}

	st := Denied
	if granted {
		st = Authorized
	}
	s.mu.Lock()
	s.statuses[kind] = st
	s.mu.Unlock()
	debug.Info("Permission %s: %s", kind, st)

	if err := s.save(); err != nil {
		debug.Errorf("permission: %v", err)
	}
	return granted, nil
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	f := decisionsFile{Decisions: make(map[Kind]Status)}
	for k, st := range s.statuses {
		if st != NotDetermined {
			f.Decisions[k] = st
		}
	}
	s.mu.Unlock()

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal decisions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create decisions dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write decisions: %w", err)
	}
	return nil
}
