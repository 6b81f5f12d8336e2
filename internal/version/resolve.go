package version

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// Resolved is a version document flattened into sync entries, grouped the
// way stages download them.
type Resolved struct {
	ID           string
	MainClass    string
	Client       manifest.Entry
	Libraries    []manifest.Entry
	AssetIndex   manifest.Entry
	AssetIndexID string
	GameArgs     []string
	JVMArgs      []string
}

// LibraryPaths returns the install-root-relative paths of all resolved
// libraries, in entry order. Used for classpath assembly.
func (r *Resolved) LibraryPaths() []string {
	paths := make([]string, 0, len(r.Libraries))
	for _, e := range r.Libraries {
		paths = append(paths, e.Path)
	}
	return paths
}

// Merge layers a mod-loader profile over a base version document. The
// profile's libraries take precedence (prepended), its main class replaces
// the base's, and its argument fragments are appended after the base's.
func Merge(base, profile *Document) (*Document, error) {
	if profile.InheritsFrom != "" && profile.InheritsFrom != base.ID {
		return nil, fmt.Errorf("profile %s inherits from %s, not %s", profile.ID, profile.InheritsFrom, base.ID)
	}
	merged := *base
	merged.ID = profile.ID
	if profile.MainClass != "" {
		merged.MainClass = profile.MainClass
	}
	merged.Libraries = append(append([]Library{}, profile.Libraries...), base.Libraries...)
	merged.Arguments.Game = append(append([]string{}, base.Arguments.Game...), profile.Arguments.Game...)
	merged.Arguments.JVM = append(append([]string{}, base.Arguments.JVM...), profile.Arguments.JVM...)
	return &merged, nil
}

// Resolve flattens a version document into sync entries for the given OS.
// Libraries without a published checksum resolve to existence-only entries
// (empty fingerprint): once present locally they are never re-downloaded.
func Resolve(doc *Document, osName string) (*Resolved, error) {
	if doc.Downloads.Client == nil {
		return nil, fmt.Errorf("version %s: no client download", doc.ID)
	}
	r := &Resolved{
		ID:        doc.ID,
		MainClass: doc.MainClass,
		GameArgs:  doc.Arguments.Game,
		JVMArgs:   doc.Arguments.JVM,
	}
	clientPath, err := manifest.CleanRelPath("versions/" + doc.ID + "/" + doc.ID + ".jar")
	if err != nil {
		return nil, fmt.Errorf("version id %q: %w", doc.ID, err)
	}
	r.Client = manifest.Entry{
		Path:        clientPath,
		Fingerprint: strings.ToLower(doc.Downloads.Client.SHA1),
		Size:        doc.Downloads.Client.Size,
		URL:         doc.Downloads.Client.URL,
	}

	seen := make(map[string]struct{})
	for i := range doc.Libraries {
		lib := &doc.Libraries[i]
		if !lib.Allowed(osName) {
			continue
		}
		entry, err := libraryEntry(lib)
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", lib.Name, err)
		}
		if entry == nil {
			continue
		}
		// A loader profile may re-declare a base library; first wins.
		if _, dup := seen[entry.Path]; dup {
			continue
		}
		seen[entry.Path] = struct{}{}
		r.Libraries = append(r.Libraries, *entry)
	}

	if doc.AssetIndex != nil {
		indexPath, err := manifest.CleanRelPath("assets/indexes/" + doc.AssetIndex.ID + ".json")
		if err != nil {
			return nil, fmt.Errorf("asset index id %q: %w", doc.AssetIndex.ID, err)
		}
		r.AssetIndexID = doc.AssetIndex.ID
		r.AssetIndex = manifest.Entry{
			Path:        indexPath,
			Fingerprint: strings.ToLower(doc.AssetIndex.SHA1),
			Size:        doc.AssetIndex.Size,
			URL:         doc.AssetIndex.URL,
		}
	}
	return r, nil
}

// libraryEntry builds the sync entry for one library. Artifact paths come
// from a remote document, so they get the same containment validation as
// manifest entries before the download layer can join them under root.
func libraryEntry(lib *Library) (*manifest.Entry, error) {
	if art := lib.Downloads.Artifact; art != nil {
		clean, err := manifest.CleanRelPath("libraries/" + art.Path)
		if err != nil {
			return nil, err
		}
		return &manifest.Entry{
			Path:        clean,
			Fingerprint: strings.ToLower(art.SHA1),
			Size:        art.Size,
			URL:         art.URL,
		}, nil
	}
	if lib.URL != "" {
		// Loader-style library: maven coordinate + repository base, no
		// published checksum.
		relPath, err := MavenPath(lib.Name)
		if err != nil {
			return nil, err
		}
		clean, err := manifest.CleanRelPath("libraries/" + relPath)
		if err != nil {
			return nil, err
		}
		return &manifest.Entry{
			Path: clean,
			URL:  strings.TrimSuffix(lib.URL, "/") + "/" + relPath,
		}, nil
	}
	return nil, nil
}

// isHexHash reports whether s is a full lowercase SHA-1 hex digest.
func isHexHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// AssetObjects parses a downloaded asset index file and expands its objects
// into content-addressed entries under assets/objects/<2-hex-prefix>/<hash>,
// fetched from resourcesBase. Object names are sorted for deterministic
// progress ordering.
func AssetObjects(indexPath, resourcesBase string) ([]manifest.Entry, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read asset index: %w", err)
	}
	var index struct {
		Objects map[string]struct {
			Hash string `json:"hash"`
			Size int64  `json:"size"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse asset index %s: %w", indexPath, err)
	}

	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	base := strings.TrimSuffix(resourcesBase, "/")
	entries := make([]manifest.Entry, 0, len(names))
	emitted := make(map[string]struct{}, len(names))
	for _, name := range names {
		obj := index.Objects[name]
		hash := strings.ToLower(obj.Hash)
		// Hashes become path segments; anything but plain hex could point
		// the object path outside the assets tree.
		if !isHexHash(hash) {
			return nil, fmt.Errorf("asset %q: malformed hash %q", name, obj.Hash)
		}
		rel := "assets/objects/" + hash[:2] + "/" + hash
		// Distinct asset names can share content; one download covers them.
		if _, dup := emitted[rel]; dup {
			continue
		}
		emitted[rel] = struct{}{}
		entries = append(entries, manifest.Entry{
			Path:        rel,
			Fingerprint: hash,
			Size:        obj.Size,
			URL:         base + "/" + hash[:2] + "/" + hash,
		})
	}
	return entries, nil
}
