// Package batch drives concurrent download of many manifest entries.
// Entries are processed in fixed-size windows: a window's members run
// concurrently, windows run strictly one after another, bounding peak
// concurrency and memory. One failed entry (after the retry layer gives up)
// fails the whole batch; the caller re-runs validate+download, which is
// idempotent because satisfied files are skipped on the next pass.
package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// EntryError records one entry that failed after retries.
type EntryError struct {
	Path string
	Err  error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Error aggregates every entry failure within the failing window.
type Error struct {
	Failures []EntryError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d entries failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Exec performs one entry download, reporting byte progress via onChunk.
type Exec func(ctx context.Context, entry manifest.Entry, onChunk func(done, total int64)) error

// Run downloads entries in windows of the given size and returns the number
// completed. Completion order within a window is unspecified. When entries
// in a window fail, the remaining windows never start and the returned
// *Error lists every failure from the failed window.
func Run(ctx context.Context, entries []manifest.Entry, window int, exec Exec, onChunk func(entry manifest.Entry, done, total int64), onDone func(entry manifest.Entry)) (int, error) {
	if window < 1 {
		window = 1
	}
	completed := 0
	for start := 0; start < len(entries); start += window {
		end := min(start+window, len(entries))

		var mu sync.Mutex
		var failures []EntryError
		g, gctx := errgroup.WithContext(ctx)
		for _, entry := range entries[start:end] {
			entry := entry
			g.Go(func() error {
				err := exec(gctx, entry, func(done, total int64) {
					if onChunk != nil {
						onChunk(entry, done, total)
					}
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, EntryError{Path: entry.Path, Err: err})
					return nil // let the rest of the window finish
				}
				completed++
				if onDone != nil {
					onDone(entry)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return completed, err
		}
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if len(failures) > 0 {
			return completed, &Error{Failures: failures}
		}
	}
	return completed, nil
}
