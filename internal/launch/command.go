// Package launch assembles the game process invocation once the sync engine
// reports the local tree complete. Spawning itself is a collaborator
// concern: the core hands an executable path and argument list to a Spawner
// and is done.
package launch

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/emberlaunch/emberlaunch/internal/version"
)

// Command is a resolved process invocation.
type Command struct {
	Path string   // java executable
	Args []string // argv[1:]
	Dir  string   // working directory (the install root)
}

// Spawner starts the game process. The default implementation execs; tests
// substitute a recorder.
type Spawner interface {
	Spawn(ctx context.Context, cmd Command) error
}

// ExecSpawner runs the command via os/exec, detached from the launcher's
// stdio.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	return c.Start()
}

// BuildCommand assembles the invocation for a resolved version: JVM args,
// classpath (libraries in resolution order plus the client jar), main class,
// then game args with identity and path placeholders substituted.
func BuildCommand(root, javaPath string, v *version.Resolved, id Identity) Command {
	sep := string(filepath.ListSeparator)
	cp := make([]string, 0, len(v.Libraries)+1)
	for _, rel := range v.LibraryPaths() {
		cp = append(cp, filepath.Join(root, filepath.FromSlash(rel)))
	}
	cp = append(cp, filepath.Join(root, filepath.FromSlash(v.Client.Path)))

	repl := strings.NewReplacer(
		"${auth_player_name}", id.Name,
		"${auth_uuid}", id.ID,
		"${game_directory}", root,
		"${assets_root}", filepath.Join(root, "assets"),
		"${assets_index_name}", v.AssetIndexID,
		"${version_name}", v.ID,
		"${classpath}", strings.Join(cp, sep),
	)

	args := make([]string, 0, len(v.JVMArgs)+len(v.GameArgs)+4)
	for _, a := range v.JVMArgs {
		args = append(args, repl.Replace(a))
	}
	args = append(args, "-cp", strings.Join(cp, sep), v.MainClass)
	for _, a := range v.GameArgs {
		args = append(args, repl.Replace(a))
	}

	return Command{Path: javaPath, Args: args, Dir: root}
}
