package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FetchError reports a manifest that could not be retrieved or parsed.
// A malformed manifest cannot be partially trusted, so fetches are never
// retried at this layer; retry policy belongs to the caller.
type FetchError struct {
	URL    string
	Status int // non-zero for HTTP status failures
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch manifest %s: server returned %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch manifest %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// fileDoc is the wire shape of one manifest entry. Hosts disagree on the
// hash field name, so both "sha1" and "hash" are accepted.
type fileDoc struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type manifestDoc struct {
	Version string    `json:"version"`
	Files   []fileDoc `json:"files"`
}

// Fetch retrieves and decodes a modpack manifest document. Bodies served as
// zstd (by Content-Type or a .zst URL suffix) are decompressed transparently;
// gzip is handled by the HTTP transport. The returned manifest is normalized
// with the given advisory suffixes.
func Fetch(ctx context.Context, client *http.Client, url string, advisorySuffixes []string) (*Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body := resp.Body
	if isZstd(url, resp.Header.Get("Content-Type")) {
		dec, err := zstd.NewReader(body)
		if err != nil {
			return nil, &FetchError{URL: url, Err: fmt.Errorf("zstd: %w", err)}
		}
		defer dec.Close()
		body = dec.IOReadCloser()
	}

	var doc manifestDoc
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	if doc.Version == "" {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("missing version")}
	}

	m := &Manifest{Version: doc.Version, Entries: make([]Entry, 0, len(doc.Files))}
	for _, f := range doc.Files {
		fp := f.SHA1
		if fp == "" {
			fp = f.Hash
		}
		m.Entries = append(m.Entries, Entry{
			Path:        f.Path,
			Fingerprint: fp,
			Size:        f.Size,
			URL:         f.URL,
		})
	}
	if err := Normalize(m, advisorySuffixes); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return m, nil
}

func isZstd(url, contentType string) bool {
	if strings.HasSuffix(url, ".zst") {
		return true
	}
	return strings.Contains(contentType, "zstd")
}
