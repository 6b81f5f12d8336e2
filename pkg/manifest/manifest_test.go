package manifest

import (
	"testing"
)

func validManifest() *Manifest {
	return &Manifest{
		Version: "1.0.0",
		Entries: []Entry{
			{Path: "mods/alpha.jar", Fingerprint: "AB12", Size: 10, URL: "https://cdn/a"},
			{Path: "config/beta.cfg", Fingerprint: "cd34", Size: 20, URL: "https://cdn/b"},
		},
	}
}

func TestNormalizeLowercasesFingerprints(t *testing.T) {
	m := validManifest()
	if err := Normalize(m, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Entries[0].Fingerprint != "ab12" {
		t.Fatalf("expected lowercased fingerprint, got %q", m.Entries[0].Fingerprint)
	}
}

func TestNormalizeTagsAdvisorySuffixes(t *testing.T) {
	m := validManifest()
	if err := Normalize(m, []string{".cfg", ".txt"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Entries[0].Category != Strict {
		t.Fatalf("expected jar entry to stay strict, got %v", m.Entries[0].Category)
	}
	if m.Entries[1].Category != Advisory {
		t.Fatalf("expected .cfg entry to be advisory, got %v", m.Entries[1].Category)
	}
}

func TestCleanRelPath(t *testing.T) {
	good := []struct{ in, want string }{
		{"mods/a.jar", "mods/a.jar"},
		{"./mods/a.jar", "mods/a.jar"},
		{"mods\\sub\\a.jar", "mods/sub/a.jar"},
		{"mods//sub/../a.jar", "mods/a.jar"},
	}
	for _, tc := range good {
		got, err := CleanRelPath(tc.in)
		if err != nil {
			t.Errorf("CleanRelPath(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CleanRelPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	bad := []string{"", "/etc/passwd", "..", "../evil.jar", "libraries/../../../tmp/evil.jar", "..\\evil.jar"}
	for _, in := range bad {
		if _, err := CleanRelPath(in); err == nil {
			t.Errorf("CleanRelPath(%q): expected error", in)
		}
	}
}

func TestNormalizeRejectsBadPaths(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"absolute", "/etc/passwd"},
		{"escape", "../outside.jar"},
		{"nested escape", "mods/../../outside.jar"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Manifest{Version: "1", Entries: []Entry{{Path: tc.path, URL: "https://cdn/x"}}}
			if err := Normalize(m, nil); err == nil {
				t.Fatalf("expected error for path %q", tc.path)
			}
		})
	}
}

func TestNormalizeRejectsDuplicates(t *testing.T) {
	m := &Manifest{Version: "1", Entries: []Entry{
		{Path: "mods/a.jar", URL: "https://cdn/1"},
		{Path: "mods\\a.jar", URL: "https://cdn/2"},
	}}
	if err := Normalize(m, nil); err == nil {
		t.Fatal("expected duplicate path error after slash normalization")
	}
}

func TestNormalizeRejectsMissingURL(t *testing.T) {
	m := &Manifest{Version: "1", Entries: []Entry{{Path: "mods/a.jar"}}}
	if err := Normalize(m, nil); err == nil {
		t.Fatal("expected missing URL error")
	}
}

func TestPathSetAndTotalBytes(t *testing.T) {
	m := validManifest()
	set := m.PathSet()
	if len(set) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(set))
	}
	if _, ok := set["mods/alpha.jar"]; !ok {
		t.Fatal("expected mods/alpha.jar in path set")
	}
	if got := m.TotalBytes(); got != 30 {
		t.Fatalf("expected 30 total bytes, got %d", got)
	}
}

func TestExclusionSetExactMatch(t *testing.T) {
	s := NewExclusionSet([]string{"options.txt", "saves/session.lock"})
	if !s.Match("options.txt") {
		t.Fatal("expected exact match")
	}
	if s.Match("config/options.txt") {
		t.Fatal("exact pattern should not match nested path")
	}
}

func TestExclusionSetSuffixMatch(t *testing.T) {
	s := NewExclusionSet([]string{"*.log"})
	if !s.Match("logs/latest.log") {
		t.Fatal("expected suffix match")
	}
	if s.Match("logs/latest.txt") {
		t.Fatal("unexpected match for different suffix")
	}
}

func TestExclusionSetNilIsEmpty(t *testing.T) {
	var s *ExclusionSet
	if s.Match("anything") {
		t.Fatal("nil set should match nothing")
	}
}
