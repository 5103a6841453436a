package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veracity-labs/veracity/pkg/models"
)

// runOne executes a single inspector under its timeout. The inspector runs
// in its own goroutine so a non-cooperative implementation cannot wedge the
// dispatcher past its budget; a panic becomes an error outcome and never
// crosses this boundary.
func runOne(ctx context.Context, desc Descriptor, fn Func, b *Bundle) Outcome {
	rctx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	type result struct {
		report *Report
		err    error
	}
	// Buffered so a run that finishes after the deadline has somewhere to
	// put its result and exit.
	resCh := make(chan result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				resCh <- result{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		report, err := fn(rctx, b)
		resCh <- result{report: report, err: err}
	}()

	select {
	case res := <-resCh:
		elapsed := time.Since(start)
		if res.err != nil {
			return classifyError(desc.Name, res.err, rctx, ctx, elapsed)
		}
		if res.report == nil {
			return Outcome{
				Inspector: desc.Name, Kind: OutcomeError,
				Detail: "inspector returned no report", Elapsed: elapsed,
			}
		}
		return successOutcome(desc, res.report, elapsed)

	case <-rctx.Done():
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			// The job itself is dying, not this inspector.
			return Outcome{
				Inspector: desc.Name, Kind: OutcomeError,
				Detail: "job cancelled: " + ctx.Err().Error(), Elapsed: elapsed,
			}
		}
		return Outcome{
			Inspector: desc.Name, Kind: OutcomeTimeout,
			Detail: fmt.Sprintf("timed out after %s", desc.Timeout), Elapsed: elapsed,
		}
	}
}

// classifyError maps an inspector error to the outcome kind: its own
// deadline expiring is a timeout, anything else an error.
func classifyError(name string, err error, rctx, jobCtx context.Context, elapsed time.Duration) Outcome {
	if errors.Is(err, context.DeadlineExceeded) && jobCtx.Err() == nil && rctx.Err() != nil {
		return Outcome{
			Inspector: name, Kind: OutcomeTimeout,
			Detail: err.Error(), Elapsed: elapsed,
		}
	}
	return Outcome{
		Inspector: name, Kind: OutcomeError,
		Detail: err.Error(), Elapsed: elapsed,
	}
}

// successOutcome normalizes a report: clamp wild scores, stamp events with
// the module name, and drop tags outside the descriptor's MayEmit set.
func successOutcome(desc Descriptor, report *Report, elapsed time.Duration) Outcome {
	out := Outcome{
		Inspector: desc.Name,
		Kind:      OutcomeSuccess,
		Score:     report.Score,
		Artifact:  report.Artifact,
		Elapsed:   elapsed,
	}

	allowed := make(map[string]bool, len(desc.MayEmit))
	for _, tag := range desc.MayEmit {
		allowed[tag] = true
	}
	for _, ev := range report.Events {
		if !allowed[ev.EventTag] {
			slog.Warn("Dropping event with undeclared tag",
				"inspector", desc.Name, "tag", ev.EventTag)
			continue
		}
		ev.Module = desc.Name
		out.Events = append(out.Events, ev)
	}

	if report.Score < 0 || report.Score > 1 || report.Score != report.Score {
		clamped := clamp01(report.Score)
		slog.Warn("Clamping out-of-range inspector score",
			"inspector", desc.Name, "raw", report.Score, "clamped", clamped)
		out.Score = clamped
		out.Events = append(out.Events, models.AnomalyEvent{
			Module:   desc.Name,
			EventTag: models.EventTagScoreClamped,
			Metadata: map[string]any{"raw": report.Score, "score_clamped": true},
		})
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
