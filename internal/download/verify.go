package download

import (
	"context"
	"os"
	"path/filepath"

	"github.com/emberlaunch/emberlaunch/internal/fingerprint"
	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// DownloadEntry fetches one manifest entry to its destination under root and
// verifies the result. Entries with an empty fingerprint succeed
// unconditionally once the stream completes. Strict entries that fail
// verification are deleted and reported as *VerifyError, a fresh failure for
// the retry layer. Advisory entries tolerate a mismatch with a logged
// warning: external tooling legitimately re-encodes them, and deleting or
// re-fetching would loop forever.
func (e *Engine) DownloadEntry(ctx context.Context, entry manifest.Entry, root string, onChunk ChunkFunc) error {
	dest := filepath.Join(root, filepath.FromSlash(entry.Path))
	if err := e.Download(ctx, entry.URL, dest, onChunk); err != nil {
		return err
	}
	if entry.Fingerprint == "" {
		return nil
	}

	got, err := fingerprint.SumFile(dest)
	if err != nil {
		os.Remove(dest)
		return &Error{Kind: KindNetwork, URL: entry.URL, Err: err}
	}
	if got == entry.Fingerprint {
		return nil
	}
	if entry.Category == manifest.Advisory {
		e.logger.Warn("advisory fingerprint mismatch tolerated",
			"path", entry.Path, "expected", entry.Fingerprint, "actual", got)
		return nil
	}
	os.Remove(dest)
	return &VerifyError{Path: entry.Path, Want: entry.Fingerprint, Got: got}
}
