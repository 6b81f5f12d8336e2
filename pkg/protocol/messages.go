package protocol

// StagePayload announces a sync state transition.
type StagePayload struct {
	Target string `json:"target"`
	Stage  string `json:"stage"`
}

// DonePayload reports a completed sync pass.
type DonePayload struct {
	Target  string `json:"target"`
	Version string `json:"version,omitempty"`
	Files   int    `json:"files"`
}

// ErrorPayload reports a failed sync pass. The launcher may be re-invoked
// from scratch; validation is idempotent.
type ErrorPayload struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}
