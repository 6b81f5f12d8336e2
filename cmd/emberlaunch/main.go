// Command emberlaunch synchronizes a game installation against remote
// manifests and launches it: version metadata, libraries, assets, then the
// optional managed modpack, each stage verified by fingerprint before the
// game process is spawned.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/emberlaunch/emberlaunch/internal/batch"
	"github.com/emberlaunch/emberlaunch/internal/config"
	"github.com/emberlaunch/emberlaunch/internal/download"
	"github.com/emberlaunch/emberlaunch/internal/ipcws"
	"github.com/emberlaunch/emberlaunch/internal/launch"
	"github.com/emberlaunch/emberlaunch/internal/logging"
	"github.com/emberlaunch/emberlaunch/internal/progress"
	"github.com/emberlaunch/emberlaunch/internal/retry"
	"github.com/emberlaunch/emberlaunch/internal/statedb"
	"github.com/emberlaunch/emberlaunch/internal/syncer"
	"github.com/emberlaunch/emberlaunch/internal/validate"
	"github.com/emberlaunch/emberlaunch/internal/version"
	"github.com/emberlaunch/emberlaunch/pkg/manifest"
	"github.com/emberlaunch/emberlaunch/pkg/protocol"
)

// Stage weights for overall progress in the game pass. Assets dominate a
// fresh install by file count; stages with nothing outstanding contribute no
// weight at all. The modpack pass runs its own single-stage runner, where a
// weight would cancel out in normalization.
const (
	weightGame   = 3
	weightAssets = 5
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "emberlaunch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, fs, err := loadConfig(args)
	if err != nil {
		return err
	}
	syncOnly := fs.Bool("sync-only", false, "synchronize files and exit without launching")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := logging.New("emberlaunch", cfg.System.LogLevel, cfg.System.LogFile)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := statedb.Open(cfg.System.DBPath)
	if err != nil {
		// Bookkeeping only; a locked or unwritable db never blocks a launch.
		logger.Warn("state db unavailable", "path", cfg.System.DBPath, "err", err)
	} else {
		defer db.Close()
	}

	var hub *ipcws.Hub
	if cfg.IPC.Addr != "" {
		hub = ipcws.NewHub(logger)
		addr, err := hub.Serve(cfg.IPC.Addr)
		if err != nil {
			return fmt.Errorf("ipc listener: %w", err)
		}
		defer hub.Close()
		logger.Info("ipc progress stream up", "addr", addr)
	}

	engine := download.NewEngine(download.Options{
		Timeout:   cfg.Download.TimeoutDuration,
		RateLimit: int64(cfg.Download.SpeedLimitBytes),
		HTTP3:     cfg.Download.HTTP3,
		Logger:    logger,
	})

	onEvent := func(ev progress.Event) {
		logger.Debug("progress",
			"stage", ev.Stage, "file", ev.File,
			"overall", fmt.Sprintf("%.1f%%", ev.OverallPercent),
			"rate_bps", ev.RateBps)
		if hub != nil {
			hub.BroadcastProgress(protocol.TypeProgress, ev)
		}
	}
	announce := func(stage string) {
		logger.Info("stage", "stage", stage)
		if hub != nil {
			hub.BroadcastProgress(protocol.TypeStage, protocol.StagePayload{Stage: stage})
		}
	}
	failOut := func(err error) error {
		if hub != nil {
			hub.BroadcastProgress(protocol.TypeError, protocol.ErrorPayload{Message: err.Error()})
		}
		return err
	}

	var resolved *version.Resolved
	if cfg.Game.VersionURL != "" {
		resolved, err = syncGame(ctx, cfg, engine, onEvent, announce, logger)
		if err != nil {
			return failOut(fmt.Errorf("game files: %w", err))
		}
	}

	announce("modpack")
	sync := syncer.New(syncer.Options{
		Root:             cfg.Game.Dir,
		ManifestURL:      cfg.Modpack.ManifestURL,
		Target:           cfg.Modpack.Target,
		CleanupDirs:      cfg.Modpack.CleanupDirs,
		Exclusions:       manifest.NewExclusionSet(cfg.Modpack.Volatile),
		AdvisorySuffixes: cfg.Modpack.AdvisorySuffixes,
		Window:           cfg.Download.Concurrency,
		Attempts:         cfg.Download.Attempts,
		BaseDelay:        cfg.Download.BaseDelayDuration,
		Engine:           engine,
		StateDB:          db,
		Logger:           logger,
	})
	m, err := sync.Sync(ctx, onEvent)
	if err != nil {
		return failOut(fmt.Errorf("modpack sync: %w", err))
	}

	done := protocol.DonePayload{Target: cfg.Modpack.Target}
	if m != nil {
		done.Version = m.Version
		done.Files = len(m.Entries)
	}
	if hub != nil {
		hub.BroadcastProgress(protocol.TypeDone, done)
	}

	if *syncOnly || resolved == nil {
		logger.Info("sync finished", "launched", false)
		return nil
	}

	id := launch.OfflineIdentity(cfg.Identity.PlayerName)
	cmd := launch.BuildCommand(cfg.Game.Dir, cfg.Game.JavaPath, resolved, id)
	logger.Info("launching", "java", cmd.Path, "main_class", resolved.MainClass, "player", id.Name)
	if err := (launch.ExecSpawner{}).Spawn(ctx, cmd); err != nil {
		return failOut(fmt.Errorf("spawn game: %w", err))
	}
	return nil
}

// syncGame converges the version's client jar, libraries, asset index, and
// asset objects. Assets become a second stage because their entry list only
// exists once the index file is on disk.
func syncGame(ctx context.Context, cfg *config.Config, engine *download.Engine, onEvent progress.Func, announce func(string), logger *slog.Logger) (*version.Resolved, error) {
	client := &http.Client{}
	doc, err := version.FetchDocument(ctx, client, cfg.Game.VersionURL)
	if err != nil {
		return nil, err
	}
	if cfg.Game.ProfileURL != "" {
		profile, err := version.FetchDocument(ctx, client, cfg.Game.ProfileURL)
		if err != nil {
			return nil, fmt.Errorf("loader profile: %w", err)
		}
		if doc, err = version.Merge(doc, profile); err != nil {
			return nil, err
		}
	}

	osName := cfg.Game.OS
	if osName == "" {
		osName = runtime.GOOS
	}
	resolved, err := version.Resolve(doc, osName)
	if err != nil {
		return nil, err
	}
	logger.Info("version resolved", "id", resolved.ID, "libraries", len(resolved.Libraries))

	root := cfg.Game.Dir
	gameEntries := make([]manifest.Entry, 0, len(resolved.Libraries)+2)
	gameEntries = append(gameEntries, resolved.Client)
	gameEntries = append(gameEntries, resolved.Libraries...)
	if resolved.AssetIndex.URL != "" {
		gameEntries = append(gameEntries, resolved.AssetIndex)
	}
	gamePlan, err := validate.ValidateEntries(root, gameEntries, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("game files validated", "needed", len(gamePlan.Needed), "satisfied", gamePlan.Satisfied)

	announce("game")
	runner := &batch.Runner{
		Exec: func(ctx context.Context, entry manifest.Entry, onChunk func(done, total int64)) error {
			return retry.Do(ctx, cfg.Download.Attempts, cfg.Download.BaseDelayDuration, func() error {
				return engine.DownloadEntry(ctx, entry, root, onChunk)
			})
		},
		OnEvent: onEvent,
	}
	if err := runner.RunStages(ctx, []batch.Stage{{
		Name:    "game",
		Weight:  weightGame,
		Window:  cfg.Download.GameConcurrency,
		Entries: gamePlan.Needed,
	}}); err != nil {
		return nil, err
	}

	if resolved.AssetIndex.URL == "" {
		return resolved, nil
	}
	indexPath := filepath.Join(root, filepath.FromSlash(resolved.AssetIndex.Path))
	assets, err := version.AssetObjects(indexPath, cfg.Game.ResourcesURL)
	if err != nil {
		return nil, err
	}
	assetPlan, err := validate.ValidateEntries(root, assets, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("assets validated", "needed", len(assetPlan.Needed), "satisfied", assetPlan.Satisfied)

	announce("assets")
	if err := runner.RunStages(ctx, []batch.Stage{{
		Name:    "assets",
		Weight:  weightAssets,
		Window:  cfg.Download.AssetConcurrency,
		Entries: assetPlan.Needed,
	}}); err != nil {
		return nil, err
	}
	return resolved, nil
}

// loadConfig locates the settings file (the -config flag is resolved before
// full flag parsing so the file can seed flag defaults) and returns the
// loaded config plus a flag set with override flags registered.
func loadConfig(args []string) (*config.Config, *flag.FlagSet, error) {
	path := "emberlaunch.yaml"
	if v := os.Getenv("EMBERLAUNCH_CONFIG"); v != "" {
		path = v
	}
	for i, a := range args {
		if a == "-config" || a == "--config" {
			if i+1 < len(args) {
				path = args[i+1]
			}
			continue
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			path = v
		} else if v, ok := strings.CutPrefix(a, "--config="); ok {
			path = v
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	fs := flag.NewFlagSet("emberlaunch", flag.ContinueOnError)
	fs.String("config", path, "path to the settings file")
	cfg.RegisterFlags(fs)
	return cfg, fs, nil
}
