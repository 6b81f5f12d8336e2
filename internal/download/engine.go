// Package download performs single-file HTTP transfers: streamed to disk,
// bounded by a request timeout, optionally rate limited, progress coalesced,
// and verified against the entry's fingerprint after the write completes.
// Failed transfers never leave a partial file behind.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/quic-go/quic-go/http3"
	"golang.org/x/time/rate"

	"github.com/emberlaunch/emberlaunch/internal/bufpool"
	"github.com/emberlaunch/emberlaunch/internal/progress"
)

const copyBufferSize = 128 * 1024

var copyBuffers = bufpool.New(copyBufferSize)

// ChunkFunc receives coalesced byte-level progress for one transfer.
type ChunkFunc func(done, total int64)

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Timeout bounds each request including the body read. Zero means no
	// per-request deadline beyond the caller's context.
	Timeout time.Duration
	// RateLimit caps transfer throughput in bytes/sec; zero means unlimited.
	RateLimit int64
	// HTTP3 switches the transport to HTTP/3.
	HTTP3 bool
	// ProgressInterval overrides the minimum spacing between ChunkFunc
	// calls; zero uses progress.DefaultInterval.
	ProgressInterval time.Duration
	// Client overrides the HTTP client (for tests). HTTP3 is ignored when
	// set.
	Client *http.Client
	Logger *slog.Logger
}

// Engine downloads individual files.
type Engine struct {
	client   *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	interval time.Duration
	logger   *slog.Logger
}

// NewEngine builds an engine from options.
func NewEngine(opts Options) *Engine {
	client := opts.Client
	if client == nil {
		var transport http.RoundTripper
		if opts.HTTP3 {
			transport = &http3.RoundTripper{}
		}
		client = &http.Client{Transport: transport}
	}
	e := &Engine{
		client:   client,
		timeout:  opts.Timeout,
		interval: opts.ProgressInterval,
		logger:   opts.Logger,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if opts.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), copyBufferSize)
	}
	return e
}

// Download streams url to dest. Parent directories are created; the
// response body is written incrementally, never buffered whole. onChunk (may
// be nil) is invoked at most a few times per second plus once at completion.
// On any failure the partial destination file is removed before the error
// propagates.
func (e *Engine) Download(ctx context.Context, url, dest string, onChunk ChunkFunc) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &Error{Kind: KindHTTP, URL: url, Status: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: fmt.Errorf("create parent dir: %w", err)}
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: fmt.Errorf("create file: %w", err)}
	}

	if err := e.copyBody(ctx, f, resp, dest, onChunk); err != nil {
		f.Close()
		os.Remove(dest)
		return classify(url, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(dest)
		return &Error{Kind: KindNetwork, URL: url, Err: fmt.Errorf("flush: %w", err)}
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return &Error{Kind: KindNetwork, URL: url, Err: fmt.Errorf("close: %w", err)}
	}

	if onChunk != nil {
		total := resp.ContentLength
		if total <= 0 {
			total = written(dest)
		}
		onChunk(total, total)
	}
	return nil
}

func (e *Engine) copyBody(ctx context.Context, f *os.File, resp *http.Response, dest string, onChunk ChunkFunc) error {
	total := resp.ContentLength
	throttle := progress.NewThrottle(e.interval)
	buf := copyBuffers.Get()
	defer copyBuffers.Put(buf)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if e.limiter != nil {
				if err := e.limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}
			done += int64(n)
			if onChunk != nil && throttle.Allow() {
				onChunk(done, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func written(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func classify(url string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	kind := KindNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		kind = KindTimeout
	} else if te, ok := err.(interface{ Timeout() bool }); ok && te.Timeout() {
		kind = KindTimeout
	}
	return &Error{Kind: kind, URL: url, Err: err}
}
