// Package progress reports the advance of a long-running result stream
// through a structured logger.
package progress

import (
	"context"
	"iter"
	"log/slog"
	"time"
)

// defaultSteps is the number of progress lines logged over a full run when
// Every is not set.
const defaultSteps = 20

// Reporter counts completed items and logs progress periodically.
// A Reporter is used by a single goroutine.
type Reporter struct {
	Desc   string
	Total  int
	Logger *slog.Logger

	// Every is the number of items between progress lines. Zero spreads
	// defaultSteps lines over Total.
	Every int

	// Now is injectable for tests.
	Now func() time.Time

	start     time.Time
	completed int
	failed    bool
}

// NewReporter returns a Reporter for total items.
func NewReporter(desc string, total int, logger *slog.Logger) *Reporter {
	return &Reporter{Desc: desc, Total: total, Logger: logger}
}

func (r *Reporter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reporter) every() int {
	if r.Every > 0 {
		return r.Every
	}
	if n := r.Total / defaultSteps; n > 0 {
		return n
	}
	return 1
}

// Completed returns the number of items observed so far.
func (r *Reporter) Completed() int { return r.completed }

// Start records the start time. It is called implicitly by Observe.
func (r *Reporter) Start() {
	r.start = r.now()
	if r.Logger != nil {
		r.Logger.Info(r.Desc, "completed", 0, "total", r.Total)
	}
}

// Tick records one completed item.
func (r *Reporter) Tick() {
	r.completed++
	if r.completed%r.every() == 0 && r.completed != r.Total {
		r.log(slog.LevelInfo, "")
	}
}

// Fail records that the stream ended with an error.
func (r *Reporter) Fail(err error) {
	r.failed = true
	if r.Logger != nil {
		r.Logger.Error(r.Desc+" failed", "completed", r.completed, "total", r.Total, "error", err)
	}
}

// Finish logs the final line.
func (r *Reporter) Finish() {
	if r.failed {
		return
	}
	r.log(slog.LevelInfo, "done")
}

func (r *Reporter) log(level slog.Level, suffix string) {
	if r.Logger == nil {
		return
	}
	elapsed := r.now().Sub(r.start)
	attrs := []any{
		"completed", r.completed,
		"total", r.Total,
		"elapsed", elapsed.Round(time.Millisecond),
	}
	if r.Total > 0 {
		attrs = append(attrs, "percent", 100*r.completed/r.Total)
	}
	if r.completed > 0 && r.Total > r.completed {
		perItem := elapsed / time.Duration(r.completed)
		attrs = append(attrs, "eta", (perItem * time.Duration(r.Total-r.completed)).Round(time.Second))
	}
	msg := r.Desc
	if suffix != "" {
		msg += ": " + suffix
	}
	r.Logger.Log(context.Background(), level, msg, attrs...)
}

// Observe wraps seq, reporting each element to r. Elements, their order and
// any terminal error pass through unchanged.
func Observe[R any](seq iter.Seq2[R, error], r *Reporter) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		r.Start()
		for v, err := range seq {
			if err != nil {
				r.Fail(err)
			} else {
				r.Tick()
			}
			if !yield(v, err) {
				return
			}
		}
		r.Finish()
	}
}
