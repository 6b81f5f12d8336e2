package batch

import (
	"context"
	"sync"

	"github.com/emberlaunch/emberlaunch/internal/progress"
	"github.com/emberlaunch/emberlaunch/pkg/manifest"
)

// Stage is one named phase of a multi-phase download with its own window
// size and weight in overall progress.
type Stage struct {
	Name    string
	Weight  float64
	Window  int
	Entries []manifest.Entry // outstanding entries only
}

// Runner executes an ordered stage list sequentially, aggregating per-item
// and per-stage progress into one normalized event stream. A later stage
// never starts until the prior stage's batch has fully resolved.
type Runner struct {
	Exec     Exec
	OnEvent  progress.Func
	Meter    *progress.Meter
	Throttle *progress.Throttle

	mu             sync.Mutex
	fileDone       map[string]int64
	stageName      string
	stageCompleted int
	stageTotal     int
	weightDone     float64
	weightTotal    float64
	stageWeight    float64
}

// RunStages executes the given stages in order. Overall percentage is the
// weighted sum of per-stage completion fractions, normalized across only the
// stages with outstanding work: a stage with nothing missing contributes
// zero weight rather than a stale 100%.
func (r *Runner) RunStages(ctx context.Context, stages []Stage) error {
	if r.Meter == nil {
		r.Meter = progress.NewMeter()
		r.Meter.Start(0)
	}
	if r.Throttle == nil {
		r.Throttle = progress.NewThrottle(progress.DefaultInterval)
	}

	r.mu.Lock()
	if r.fileDone == nil {
		r.fileDone = make(map[string]int64)
	}
	for _, s := range stages {
		if len(s.Entries) > 0 {
			r.weightTotal += s.Weight
		}
	}
	r.mu.Unlock()

	for _, s := range stages {
		if len(s.Entries) == 0 {
			continue
		}
		if err := r.runStage(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, s Stage) error {
	var stageBytes int64
	for _, e := range s.Entries {
		stageBytes += e.Size
	}
	r.Meter.AddTotal(stageBytes)

	r.mu.Lock()
	r.stageName = s.Name
	r.stageCompleted = 0
	r.stageTotal = len(s.Entries)
	r.stageWeight = s.Weight
	r.mu.Unlock()

	_, err := Run(ctx, s.Entries, s.Window, r.Exec, r.onChunk, r.onEntryDone)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.weightDone += s.Weight
	r.stageWeight = 0
	r.mu.Unlock()
	return nil
}

// onChunk feeds transferred-byte deltas into the meter and emits a throttled
// mid-file event.
func (r *Runner) onChunk(entry manifest.Entry, done, total int64) {
	r.mu.Lock()
	delta := done - r.fileDone[entry.Path]
	r.fileDone[entry.Path] = done
	r.mu.Unlock()
	r.Meter.Add(delta)

	if !r.Throttle.Allow() {
		return
	}
	filePct := 0.0
	if total > 0 {
		filePct = float64(done) / float64(total) * 100
	}
	r.emit(entry.Path, filePct)
}

// onEntryDone settles the entry's remaining declared bytes and always emits.
func (r *Runner) onEntryDone(entry manifest.Entry) {
	r.mu.Lock()
	remainder := entry.Size - r.fileDone[entry.Path]
	delete(r.fileDone, entry.Path)
	r.stageCompleted++
	r.mu.Unlock()
	r.Meter.Add(remainder)

	r.Throttle.Force()
	r.emit(entry.Path, 100)
}

func (r *Runner) emit(file string, filePct float64) {
	if r.OnEvent == nil {
		return
	}
	stats := r.Meter.Snapshot()

	r.mu.Lock()
	overall := 0.0
	if r.weightTotal > 0 {
		frac := 0.0
		if r.stageTotal > 0 {
			frac = float64(r.stageCompleted) / float64(r.stageTotal)
		}
		overall = (r.weightDone + frac*r.stageWeight) / r.weightTotal * 100
	}
	ev := progress.Event{
		Stage:          r.stageName,
		File:           file,
		FilePercent:    filePct,
		OverallPercent: overall,
		BytesDone:      stats.BytesDone,
		TotalBytes:     stats.Total,
		RateBps:        stats.RateBps,
		ETASeconds:     stats.ETASeconds,
		Completed:      r.stageCompleted,
		Total:          r.stageTotal,
	}
	r.mu.Unlock()
	r.OnEvent(ev)
}
