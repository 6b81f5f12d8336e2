// Package validate diffs a manifest snapshot against local on-disk state.
// The result is a pure function of (manifest, filesystem): nothing is
// mutated and nothing is cached across passes, because files can change
// between runs.
package validate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emberlaunch/emberlaunch/internal/fingerprint"
	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// Plan lists the manifest entries needing download, in manifest order.
type Plan struct {
	Needed []manifest.Entry
	// Satisfied counts entries that required no work, for logging.
	Satisfied int
}

// Empty reports whether nothing needs downloading.
func (p *Plan) Empty() bool { return len(p.Needed) == 0 }

// Validate compares each manifest entry against root. An entry needs
// download when its file is absent, or when it has a declared fingerprint
// the local content does not match. Entries with an empty fingerprint are
// satisfied by existence alone. Entries matching the volatile exclusion set
// never enter the plan. Read-only and safe to call concurrently with itself.
func Validate(root string, m *manifest.Manifest, excl *manifest.ExclusionSet) (*Plan, error) {
	plan := &Plan{}
	for _, entry := range m.Entries {
		if excl.Match(entry.Path) {
			continue
		}
		needed, err := needsDownload(root, entry)
		if err != nil {
			return nil, err
		}
		if needed {
			plan.Needed = append(plan.Needed, entry)
		} else {
			plan.Satisfied++
		}
	}
	return plan, nil
}

// ValidateEntries is Validate for a bare entry list (version stages have no
// enclosing manifest document).
func ValidateEntries(root string, entries []manifest.Entry, excl *manifest.ExclusionSet) (*Plan, error) {
	return Validate(root, &manifest.Manifest{Entries: entries}, excl)
}

func needsDownload(root string, entry manifest.Entry) (bool, error) {
	local := filepath.Join(root, filepath.FromSlash(entry.Path))
	info, err := os.Stat(local)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", local, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s: expected file, found directory", local)
	}
	if entry.Fingerprint == "" {
		// Existence-only: upstream published no checksum, any content
		// satisfies the entry.
		return false, nil
	}
	sum, err := fingerprint.SumFile(local)
	if err != nil {
		return false, err
	}
	return sum != entry.Fingerprint, nil
}
