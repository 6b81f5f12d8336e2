// Package version resolves game-version metadata documents into the concrete
// file entries the sync engine downloads: the client jar, platform-filtered
// libraries, the asset index, and the content-addressed asset objects.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// Artifact is a downloadable file declared by a version document.
type Artifact struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// OSMatch names the platform a rule applies to; empty matches every platform.
type OSMatch struct {
	Name string `json:"name,omitempty"`
}

// Rule gates a library to particular platforms.
type Rule struct {
	Action string  `json:"action"` // "allow" or "disallow"
	OS     OSMatch `json:"os,omitempty"`
}

// Library is one dependency of the game runtime. Vanilla libraries carry a
// fully-specified artifact; mod-loader libraries often carry only a maven
// coordinate plus a repository base URL and no published checksum.
type Library struct {
	Name      string `json:"name"`
	Downloads struct {
		Artifact *Artifact `json:"artifact,omitempty"`
	} `json:"downloads,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
	URL   string `json:"url,omitempty"` // maven repository base for loader libraries
}

// Allowed evaluates the library's platform rules for the given OS name
// ("linux", "windows", "osx"). No rules means allowed everywhere; otherwise
// the default flips to deny and rules are applied in order.
func (l *Library) Allowed(osName string) bool {
	if len(l.Rules) == 0 {
		return true
	}
	allowed := false
	for _, r := range l.Rules {
		matches := r.OS.Name == "" || r.OS.Name == osName
		if !matches {
			continue
		}
		allowed = r.Action == "allow"
	}
	return allowed
}

// AssetIndexRef points at the version's asset index document.
type AssetIndexRef struct {
	ID   string `json:"id"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Document is a game-version metadata document, possibly a mod-loader
// profile layered over a base version via InheritsFrom.
type Document struct {
	ID           string `json:"id"`
	InheritsFrom string `json:"inheritsFrom,omitempty"`
	MainClass    string `json:"mainClass"`
	Downloads    struct {
		Client *Artifact `json:"client,omitempty"`
	} `json:"downloads,omitempty"`
	Libraries  []Library      `json:"libraries,omitempty"`
	AssetIndex *AssetIndexRef `json:"assetIndex,omitempty"`
	Arguments  Arguments      `json:"arguments,omitempty"`
}

// Arguments holds launch argument fragments. The wire format mixes plain
// strings with rule-gated objects; only the unconditional strings matter to
// the launcher core, so objects are dropped during decoding.
type Arguments struct {
	Game []string
	JVM  []string
}

func (a *Arguments) UnmarshalJSON(b []byte) error {
	var raw struct {
		Game []json.RawMessage `json:"game"`
		JVM  []json.RawMessage `json:"jvm"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.Game = plainStrings(raw.Game)
	a.JVM = plainStrings(raw.JVM)
	return nil
}

func plainStrings(raw []json.RawMessage) []string {
	var out []string
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// FetchDocument retrieves and decodes a version document.
func FetchDocument(ctx context.Context, client *http.Client, url string) (*Document, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &manifest.FetchError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &manifest.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &manifest.FetchError{URL: url, Status: resp.StatusCode}
	}
	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &manifest.FetchError{URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	if doc.ID == "" {
		return nil, &manifest.FetchError{URL: url, Err: fmt.Errorf("missing id")}
	}
	return &doc, nil
}

// MavenPath converts a maven coordinate "group:artifact:version" into the
// repository-relative artifact path.
func MavenPath(coord string) (string, error) {
	parts := strings.Split(coord, ":")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid maven coordinate %q", coord)
	}
	group, artifact, ver := parts[0], parts[1], parts[2]
	file := artifact + "-" + ver
	if len(parts) > 3 {
		file += "-" + parts[3] // classifier
	}
	return strings.ReplaceAll(group, ".", "/") + "/" + artifact + "/" + ver + "/" + file + ".jar", nil
}
