// Package manifest models the declarative file listings the launcher syncs
// against: a manifest names every expected file with its relative path,
// content fingerprint, size, and source URL. A fetched manifest is treated as
// an immutable snapshot for the duration of a sync pass.
package manifest

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Category controls how strictly a downloaded entry is verified.
type Category int

const (
	// Strict entries must match their declared fingerprint exactly; a
	// post-download mismatch is a hard failure.
	Strict Category = iota
	// Advisory entries tolerate a post-download fingerprint mismatch with a
	// logged warning. Used for config-like files that external tooling may
	// legitimately re-encode.
	Advisory
)

func (c Category) String() string {
	if c == Advisory {
		return "advisory"
	}
	return "strict"
}

// Entry is one expected file. Path is the stable identity key, relative to
// the install root with forward slashes. An empty Fingerprint means
// existence-only: the entry is satisfied by any local content.
type Entry struct {
	Path        string
	Fingerprint string
	Size        int64
	URL         string
	Category    Category
}

// Manifest is a named snapshot of expected files. Entry order is preserved
// for deterministic progress ordering; paths are unique.
type Manifest struct {
	Version string
	Entries []Entry
}

// PathSet returns the set of entry paths, for cleanup orphan detection.
func (m *Manifest) PathSet() map[string]struct{} {
	set := make(map[string]struct{}, len(m.Entries))
	for _, e := range m.Entries {
		set[e.Path] = struct{}{}
	}
	return set
}

// TotalBytes sums the declared sizes of all entries.
func (m *Manifest) TotalBytes() int64 {
	var total int64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}

// CleanRelPath canonicalizes a manifest-relative path and rejects anything
// that could resolve outside the install root once joined under it:
// absolute paths, dot-dot escapes, and empty paths. All entry paths must
// pass through here before they reach the download layer, whatever document
// they were resolved from.
func CleanRelPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") || path.IsAbs(p) {
		return "", fmt.Errorf("path %q: absolute path not allowed", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q: escapes install root", p)
	}
	return clean, nil
}

// Normalize validates and canonicalizes a manifest in place: paths get
// forward slashes, fingerprints are lowercased, advisory categories are
// tagged from the configured suffix list. Entries joined under the install
// root must not be able to escape it, so absolute and dot-dot paths are
// rejected, as are duplicate paths and missing URLs.
func Normalize(m *Manifest, advisorySuffixes []string) error {
	seen := make(map[string]struct{}, len(m.Entries))
	for i := range m.Entries {
		e := &m.Entries[i]
		clean, err := CleanRelPath(e.Path)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		e.Path = clean
		if _, dup := seen[e.Path]; dup {
			return fmt.Errorf("entry %q: duplicate path", e.Path)
		}
		seen[e.Path] = struct{}{}
		if e.URL == "" {
			return fmt.Errorf("entry %q: missing source URL", e.Path)
		}
		e.Fingerprint = strings.ToLower(strings.TrimSpace(e.Fingerprint))
		for _, suffix := range advisorySuffixes {
			if strings.HasSuffix(e.Path, suffix) {
				e.Category = Advisory
				break
			}
		}
	}
	return nil
}

// ExclusionSet holds volatile path patterns excluded from both diffing and
// cleanup. A pattern is either an exact relative path or "*suffix" matching
// any path with that suffix. Volatile files are regenerated
// nondeterministically by the running game and must never be treated as
// drift.
type ExclusionSet struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewExclusionSet compiles a list of patterns.
func NewExclusionSet(patterns []string) *ExclusionSet {
	s := &ExclusionSet{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.ReplaceAll(p, "\\", "/")
		if rest, ok := strings.CutPrefix(p, "*"); ok {
			s.suffixes = append(s.suffixes, rest)
			continue
		}
		s.exact[path.Clean(p)] = struct{}{}
	}
	sort.Strings(s.suffixes)
	return s
}

// Match reports whether relPath is volatile-excluded.
func (s *ExclusionSet) Match(relPath string) bool {
	if s == nil {
		return false
	}
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	if _, ok := s.exact[relPath]; ok {
		return true
	}
	for _, suffix := range s.suffixes {
		if strings.HasSuffix(relPath, suffix) {
			return true
		}
	}
	return false
}
