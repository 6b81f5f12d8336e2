package launch

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/emberlaunch/emberlaunch/internal/version"
	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

func TestOfflineIdentityDeterministic(t *testing.T) {
	a := OfflineIdentity("steve")
	b := OfflineIdentity("steve")
	if a.ID != b.ID {
		t.Fatalf("same name must yield same id: %s vs %s", a.ID, b.ID)
	}
	c := OfflineIdentity("alex")
	if a.ID == c.ID {
		t.Fatal("different names must yield different ids")
	}
	if a.Name != "steve" {
		t.Fatalf("unexpected name %s", a.Name)
	}
}

func TestBuildCommand(t *testing.T) {
	root := filepath.Join("/", "games", "instance")
	v := &version.Resolved{
		ID:           "1.21.1",
		MainClass:    "net.game.client.main.Main",
		AssetIndexID: "17",
		Client:       manifest.Entry{Path: "versions/1.21.1/1.21.1.jar"},
		Libraries: []manifest.Entry{
			{Path: "libraries/org/lwjgl/lwjgl/3.3.3/lwjgl-3.3.3.jar"},
		},
		JVMArgs:  []string{"-Xmx4G"},
		GameArgs: []string{"--username", "${auth_player_name}", "--uuid", "${auth_uuid}", "--assetIndex", "${assets_index_name}"},
	}
	id := OfflineIdentity("steve")

	cmd := BuildCommand(root, "java", v, id)
	if cmd.Path != "java" {
		t.Fatalf("unexpected path %s", cmd.Path)
	}
	if cmd.Dir != root {
		t.Fatalf("unexpected dir %s", cmd.Dir)
	}
	joined := strings.Join(cmd.Args, " ")
	if !strings.Contains(joined, "--username steve") {
		t.Fatalf("expected player name substituted: %s", joined)
	}
	if !strings.Contains(joined, "--uuid "+id.ID) {
		t.Fatalf("expected uuid substituted: %s", joined)
	}
	if !strings.Contains(joined, "--assetIndex 17") {
		t.Fatalf("expected asset index substituted: %s", joined)
	}
	if cmd.Args[0] != "-Xmx4G" {
		t.Fatalf("expected jvm args first, got %v", cmd.Args)
	}

	// Classpath holds every library plus the client jar, in order.
	var cp string
	for i, a := range cmd.Args {
		if a == "-cp" {
			cp = cmd.Args[i+1]
		}
	}
	if cp == "" {
		t.Fatal("expected -cp argument")
	}
	parts := strings.Split(cp, string(filepath.ListSeparator))
	if len(parts) != 2 {
		t.Fatalf("expected 2 classpath entries, got %v", parts)
	}
	if !strings.HasSuffix(parts[1], filepath.FromSlash("versions/1.21.1/1.21.1.jar")) {
		t.Fatalf("expected client jar last on classpath, got %s", parts[1])
	}

	// Main class sits between -cp value and game args.
	idx := indexOf(cmd.Args, "net.game.client.main.Main")
	if idx < 0 || cmd.Args[idx+1] != "--username" {
		t.Fatalf("expected main class before game args: %v", cmd.Args)
	}
}

func indexOf(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}
