// Package syncer runs the per-target modpack workflow: fetch manifest,
// diff against the local tree, download what differs, then optionally delete
// local files the manifest no longer declares. A failed sync leaves already
// written files in place; re-running is safe because validation re-diffs
// from scratch.
package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/emberlaunch/emberlaunch/internal/batch"
	"github.com/emberlaunch/emberlaunch/internal/download"
	"github.com/emberlaunch/emberlaunch/internal/progress"
	"github.com/emberlaunch/emberlaunch/internal/retry"
	"github.com/emberlaunch/emberlaunch/internal/statedb"
	"github.com/emberlaunch/emberlaunch/internal/validate"
	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// State names the controller's position in a sync pass.
type State int

const (
	Idle State = iota
	FetchingManifest
	Validating
	Downloading
	CleaningUp
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case FetchingManifest:
		return "fetching_manifest"
	case Validating:
		return "validating"
	case Downloading:
		return "downloading"
	case CleaningUp:
		return "cleaning_up"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Options configures a Syncer.
type Options struct {
	Root        string
	ManifestURL string // empty disables sync entirely
	Target      string // statedb key, defaults to "modpack"
	// CleanupDirs are the only subdirectories cleanup ever touches; local
	// files elsewhere are left alone.
	CleanupDirs      []string
	Exclusions       *manifest.ExclusionSet
	AdvisorySuffixes []string
	Window           int
	Attempts         int
	BaseDelay        time.Duration
	Engine           *download.Engine
	Client           *http.Client // manifest fetches
	StateDB          *statedb.DB  // optional bookkeeping
	Logger           *slog.Logger
}

// Syncer converges one local tree onto one remote manifest. Callers must
// serialize Sync invocations; concurrent syncs of the same root are not a
// supported usage pattern.
type Syncer struct {
	opts  Options
	state State
}

// New builds a Syncer with defaulted options.
func New(opts Options) *Syncer {
	if opts.Target == "" {
		opts.Target = "modpack"
	}
	if opts.Window < 1 {
		opts.Window = 10
	}
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.Engine == nil {
		opts.Engine = download.NewEngine(download.Options{Logger: opts.Logger})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Syncer{opts: opts}
}

// State returns the controller's current state.
func (s *Syncer) State() State { return s.state }

// Sync runs one full pass and returns the manifest it applied, for caller
// bookkeeping. An unset manifest URL is a no-op success: modpack sync is
// optional functionality layered on top of game launch. Errors surface
// without rollback; files already written remain for the next pass to skip.
func (s *Syncer) Sync(ctx context.Context, onEvent progress.Func) (*manifest.Manifest, error) {
	if s.opts.ManifestURL == "" {
		s.state = Done
		return nil, nil
	}
	log := s.opts.Logger

	if s.opts.StateDB != nil {
		prev, err := s.opts.StateDB.GetApplied(s.opts.Target)
		switch {
		case err != nil:
			log.Warn("state record not read", "target", s.opts.Target, "err", err)
		case prev != nil:
			log.Info("previously applied", "target", s.opts.Target,
				"version", prev.Version, "files", prev.FileCount, "at", prev.AppliedAt)
		}
	}

	s.state = FetchingManifest
	m, err := manifest.Fetch(ctx, s.opts.Client, s.opts.ManifestURL, s.opts.AdvisorySuffixes)
	if err != nil {
		return nil, s.fail(err)
	}
	log.Info("manifest fetched", "target", s.opts.Target, "version", m.Version, "entries", len(m.Entries))

	s.state = Validating
	plan, err := validate.Validate(s.opts.Root, m, s.opts.Exclusions)
	if err != nil {
		return nil, s.fail(err)
	}
	log.Info("validated", "needed", len(plan.Needed), "satisfied", plan.Satisfied)

	s.state = Downloading
	if !plan.Empty() {
		runner := &batch.Runner{
			Exec:    s.exec,
			OnEvent: onEvent,
		}
		stages := []batch.Stage{{
			Name:    "modpack",
			Weight:  1,
			Window:  s.opts.Window,
			Entries: plan.Needed,
		}}
		if err := runner.RunStages(ctx, stages); err != nil {
			return nil, s.fail(err)
		}
	}

	s.state = CleaningUp
	if err := s.cleanup(m); err != nil {
		return nil, s.fail(err)
	}

	if s.opts.StateDB != nil {
		rec := statedb.Applied{Version: m.Version, FileCount: len(m.Entries)}
		if err := s.opts.StateDB.PutApplied(s.opts.Target, rec); err != nil {
			// Bookkeeping only; the tree itself is already converged.
			log.Warn("state record not written", "err", err)
		}
	}

	s.state = Done
	log.Info("sync complete", "target", s.opts.Target, "version", m.Version)
	return m, nil
}

func (s *Syncer) fail(err error) error {
	s.state = Failed
	s.opts.Logger.Error("sync failed", "target", s.opts.Target, "state", s.state, "err", err)
	return err
}

func (s *Syncer) exec(ctx context.Context, entry manifest.Entry, onChunk func(done, total int64)) error {
	return retry.Do(ctx, s.opts.Attempts, s.opts.BaseDelay, func() error {
		return s.opts.Engine.DownloadEntry(ctx, entry, s.opts.Root, onChunk)
	})
}

// cleanup deletes files under the configured subdirectories whose relative
// path is neither declared by the manifest nor volatile-excluded. This
// converges the cleaned subtrees to exactly the manifest's file set.
func (s *Syncer) cleanup(m *manifest.Manifest) error {
	declared := m.PathSet()
	for _, dir := range s.opts.CleanupDirs {
		base := filepath.Join(s.opts.Root, filepath.FromSlash(dir))
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(s.opts.Root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if _, ok := declared[rel]; ok {
				return nil
			}
			if s.opts.Exclusions.Match(rel) {
				return nil
			}
			s.opts.Logger.Info("removing orphaned file", "path", rel)
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove %s: %w", rel, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
