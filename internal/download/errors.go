package download

import "fmt"

// Kind classifies a transfer failure.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	default:
		return "network"
	}
}

// Error reports a failed single-file transfer. Transfers are retried by the
// retry layer; an Error is only fatal after exhaustion.
type Error struct {
	Kind   Kind
	URL    string
	Status int // HTTP status for KindHTTP
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("download %s: server returned %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// VerifyError reports downloaded bytes that do not match the expected
// fingerprint. The corrupt file is deleted before this is returned, so a
// retry re-downloads from scratch.
type VerifyError struct {
	Path string
	Want string
	Got  string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: fingerprint %s does not match expected %s", e.Path, e.Got, e.Want)
}
