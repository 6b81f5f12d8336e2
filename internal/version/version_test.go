package version

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleVersionDoc = `{
	"id": "1.21.1",
	"mainClass": "net.game.client.main.Main",
	"downloads": {
		"client": {"sha1": "AABB01", "size": 1000, "url": "https://cdn/client.jar"}
	},
	"assetIndex": {"id": "17", "sha1": "ccdd02", "size": 50, "url": "https://cdn/17.json"},
	"libraries": [
		{
			"name": "org.lwjgl:lwjgl:3.3.3",
			"downloads": {"artifact": {"path": "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar", "sha1": "eeff03", "size": 10, "url": "https://cdn/lwjgl.jar"}}
		},
		{
			"name": "org.lwjgl:lwjgl-glfw:3.3.3",
			"downloads": {"artifact": {"path": "org/lwjgl/lwjgl-glfw/3.3.3/lwjgl-glfw-3.3.3.jar", "sha1": "0011aa", "size": 10, "url": "https://cdn/glfw.jar"}},
			"rules": [{"action": "allow", "os": {"name": "windows"}}]
		}
	],
	"arguments": {
		"game": ["--username", "${auth_player_name}", {"rules": [{"action": "allow"}], "value": "--demo"}],
		"jvm": ["-Xss1M"]
	}
}`

func TestFetchDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleVersionDoc))
	}))
	defer srv.Close()

	doc, err := FetchDocument(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "1.21.1" {
		t.Fatalf("expected id 1.21.1, got %s", doc.ID)
	}
	if len(doc.Arguments.Game) != 2 {
		t.Fatalf("expected rule-gated argument objects dropped, got %v", doc.Arguments.Game)
	}
	if doc.Arguments.JVM[0] != "-Xss1M" {
		t.Fatalf("unexpected jvm args %v", doc.Arguments.JVM)
	}
}

func TestLibraryRules(t *testing.T) {
	cases := []struct {
		name  string
		rules []Rule
		os    string
		want  bool
	}{
		{"no rules allows all", nil, "linux", true},
		{"allow specific os matches", []Rule{{Action: "allow", OS: OSMatch{Name: "linux"}}}, "linux", true},
		{"allow specific os excludes others", []Rule{{Action: "allow", OS: OSMatch{Name: "windows"}}}, "linux", false},
		{"allow all then disallow one", []Rule{
			{Action: "allow"},
			{Action: "disallow", OS: OSMatch{Name: "osx"}},
		}, "osx", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lib := Library{Rules: tc.rules}
			if got := lib.Allowed(tc.os); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestResolveFiltersByOS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleVersionDoc))
	}))
	defer srv.Close()

	doc, err := FetchDocument(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	r, err := Resolve(doc, "linux")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Client.Path != "versions/1.21.1/1.21.1.jar" {
		t.Fatalf("unexpected client path %s", r.Client.Path)
	}
	if r.Client.Fingerprint != "aabb01" {
		t.Fatalf("expected lowercased client fingerprint, got %s", r.Client.Fingerprint)
	}
	if len(r.Libraries) != 1 {
		t.Fatalf("expected windows-only library filtered out, got %d libraries", len(r.Libraries))
	}
	if r.AssetIndex.Path != "assets/indexes/17.json" {
		t.Fatalf("unexpected asset index path %s", r.AssetIndex.Path)
	}

	win, err := Resolve(doc, "windows")
	if err != nil {
		t.Fatalf("resolve windows: %v", err)
	}
	if len(win.Libraries) != 2 {
		t.Fatalf("expected 2 libraries on windows, got %d", len(win.Libraries))
	}
}

func TestMergeLoaderProfile(t *testing.T) {
	base := &Document{
		ID:        "1.21.1",
		MainClass: "net.game.client.main.Main",
		Libraries: []Library{{Name: "base:lib:1"}},
		Arguments: Arguments{Game: []string{"--base"}},
	}
	profile := &Document{
		ID:           "loader-1.21.1",
		InheritsFrom: "1.21.1",
		MainClass:    "org.loader.Launch",
		Libraries:    []Library{{Name: "org.loader:core:0.16", URL: "https://maven.loader.net/"}},
		Arguments:    Arguments{Game: []string{"--loader"}},
	}

	merged, err := Merge(base, profile)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.MainClass != "org.loader.Launch" {
		t.Fatalf("expected profile main class, got %s", merged.MainClass)
	}
	if merged.Libraries[0].Name != "org.loader:core:0.16" {
		t.Fatal("expected profile libraries first")
	}
	if got := merged.Arguments.Game; len(got) != 2 || got[0] != "--base" || got[1] != "--loader" {
		t.Fatalf("unexpected merged game args %v", got)
	}
}

func TestMergeRejectsWrongBase(t *testing.T) {
	base := &Document{ID: "1.20"}
	profile := &Document{ID: "loader", InheritsFrom: "1.21.1"}
	if _, err := Merge(base, profile); err == nil {
		t.Fatal("expected inherits-from mismatch error")
	}
}

func TestLoaderLibraryExistenceOnly(t *testing.T) {
	lib := Library{Name: "org.loader:core:0.16.9", URL: "https://maven.loader.net"}
	entry, err := libraryEntry(&lib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Fingerprint != "" {
		t.Fatalf("expected empty fingerprint for loader library, got %q", entry.Fingerprint)
	}
	wantPath := "libraries/org/loader/core/0.16.9/core-0.16.9.jar"
	if entry.Path != wantPath {
		t.Fatalf("expected %s, got %s", wantPath, entry.Path)
	}
	wantURL := "https://maven.loader.net/org/loader/core/0.16.9/core-0.16.9.jar"
	if entry.URL != wantURL {
		t.Fatalf("expected %s, got %s", wantURL, entry.URL)
	}
}

func TestMavenPathClassifier(t *testing.T) {
	got, err := MavenPath("org.lwjgl:lwjgl:3.3.3:natives-linux")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3-natives-linux.jar"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if _, err := MavenPath("oops"); err == nil {
		t.Fatal("expected error for malformed coordinate")
	}
}

func TestAssetObjects(t *testing.T) {
	dir := t.TempDir()
	index := `{
		"objects": {
			"minecraft/sounds/ambient.ogg": {"hash": "FFAB12cd000000000000000000000000000000ff", "size": 11},
			"minecraft/lang/en_us.json": {"hash": "00cdef0000000000000000000000000000000001", "size": 7},
			"minecraft/lang/en_gb.json": {"hash": "00cdef0000000000000000000000000000000001", "size": 7}
		}
	}`
	indexPath := filepath.Join(dir, "17.json")
	if err := os.WriteFile(indexPath, []byte(index), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	entries, err := AssetObjects(indexPath, "https://resources.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two distinct hashes; the shared-content duplicate collapses.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Path != "assets/objects/00/00cdef0000000000000000000000000000000001" {
		t.Fatalf("unexpected path %s", first.Path)
	}
	if first.URL != "https://resources.example/00/00cdef0000000000000000000000000000000001" {
		t.Fatalf("unexpected url %s", first.URL)
	}
	if entries[1].Fingerprint != "ffab12cd000000000000000000000000000000ff" {
		t.Fatalf("expected lowercased hash, got %s", entries[1].Fingerprint)
	}
}

func TestResolveRejectsEscapingPaths(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"artifact path escapes", `{
			"id": "1.21.1",
			"downloads": {"client": {"sha1": "aabb01", "size": 1, "url": "https://cdn/c.jar"}},
			"libraries": [{
				"name": "evil:lib:1",
				"downloads": {"artifact": {"path": "../../../tmp/evil.jar", "sha1": "cc", "size": 1, "url": "https://cdn/e.jar"}}
			}]
		}`},
		{"version id escapes", `{
			"id": "../../evil",
			"downloads": {"client": {"sha1": "aabb01", "size": 1, "url": "https://cdn/c.jar"}}
		}`},
		{"loader coordinate escapes", `{
			"id": "1.21.1",
			"downloads": {"client": {"sha1": "aabb01", "size": 1, "url": "https://cdn/c.jar"}},
			"libraries": [{"name": "g:../../../../../../tmp/evil:1", "url": "https://maven.evil.net/"}]
		}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var doc Document
			if err := json.Unmarshal([]byte(tc.doc), &doc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if _, err := Resolve(&doc, "linux"); err == nil {
				t.Fatal("expected error for install-root escape")
			}
		})
	}
}

func TestAssetObjectsRejectsNonHexHash(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "evil.json")
	// A slash-bearing hash would become a traversing path segment.
	index := `{"objects": {"a": {"hash": "../../../../../../tmp/evil000000000000000", "size": 1}}}`
	if err := os.WriteFile(indexPath, []byte(index), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if _, err := AssetObjects(indexPath, "https://resources.example"); err == nil {
		t.Fatal("expected error for non-hex hash")
	}
}

func TestAssetObjectsMalformed(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(indexPath, []byte(`{"objects": {"a": {"hash": "f"}}}`), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if _, err := AssetObjects(indexPath, "https://resources.example"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
