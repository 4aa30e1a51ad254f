package display

import "testing"

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"photo", ModePhoto, false},
		{" Movie ", ModeMovie, false},
		{"", "", true},
		{"panorama", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type recordingSurface struct {
	name string
	log  *[]string
}

func (r recordingSurface) Render(s State)    { *r.log = append(*r.log, r.name+":render:"+string(s.Mode)) }
func (r recordingSurface) Advise(a Advisory) { *r.log = append(*r.log, r.name+":advise:"+string(a.Kind)) }

func TestMulti_FansOutInOrder(t *testing.T) {
	var log []string
	var m Multi
	m = append(m, recordingSurface{"a", &log}, recordingSurface{"b", &log})

	// A pointer to a Multi is a Surface too, and sees later appends.
	var sf Surface = &m
	m = append(m, recordingSurface{"c", &log})

	sf.Render(State{Mode: ModeMovie})
	sf.Advise(Advisory{Kind: AdvisoryUnableToResume})

	want := []string{
		"a:render:movie", "b:render:movie", "c:render:movie",
		"a:advise:unable_to_resume", "b:advise:unable_to_resume", "c:advise:unable_to_resume",
	}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}
