package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

// Scripted inspectors replace the stock set in scenario tests. They use the
// production inspector names so the frozen v1 weight table applies to their
// scores, but their behavior is fixed per test: a canned score, canned
// events, or blocking until cancelled.

// scriptedTimeout is the budget for inspectors that finish instantly.
const scriptedTimeout = 5 * time.Second

// ScoreInspector registers an inspector that succeeds immediately with the
// given score and events. MayEmit is derived from the events so the runner
// passes them through.
func ScoreInspector(name string, score float64, evs ...models.AnomalyEvent) TestAppOption {
	return WithInspector(
		inspect.Descriptor{
			Name:    name,
			Timeout: scriptedTimeout,
			MayEmit: tagsOf(evs),
		},
		func(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
			return &inspect.Report{Score: score, Events: evs}, nil
		},
	)
}

// NotifyingInspector is ScoreInspector plus a completion signal, for tests
// that must know an inspector has finished before acting.
func NotifyingInspector(name string, score float64, done chan<- string) TestAppOption {
	return WithInspector(
		inspect.Descriptor{Name: name, Timeout: scriptedTimeout},
		func(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
			if done != nil {
				done <- name
			}
			return &inspect.Report{Score: score}, nil
		},
	)
}

// BlockingInspector registers an inspector that signals started and then
// parks until its context fires: its own timeout or a job-level
// cancellation. It returns shortly after the deadline, like a wedged
// implementation coming back once its blocking call finally fails, so the
// runner has already recorded the outcome when the late result lands.
func BlockingInspector(name string, timeout time.Duration, started chan<- string) TestAppOption {
	return WithInspector(
		inspect.Descriptor{Name: name, Timeout: timeout},
		func(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
			if started != nil {
				started <- name
			}
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			return nil, ctx.Err()
		},
	)
}

// FailingInspector registers an inspector that returns the given error.
func FailingInspector(name string, err error) TestAppOption {
	return WithInspector(
		inspect.Descriptor{Name: name, Timeout: scriptedTimeout},
		func(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
			return nil, err
		},
	)
}

// Event builds an anomaly event for scripting. The module field is left
// empty: the runner stamps it with the emitting inspector's name.
func Event(tag string, ts, dur float64, meta map[string]any) models.AnomalyEvent {
	return models.AnomalyEvent{
		EventTag:     tag,
		TimestampSec: ts,
		DurationSec:  dur,
		Metadata:     meta,
	}
}

func tagsOf(evs []models.AnomalyEvent) []string {
	seen := make(map[string]bool, len(evs))
	var tags []string
	for _, ev := range evs {
		if !seen[ev.EventTag] {
			seen[ev.EventTag] = true
			tags = append(tags, ev.EventTag)
		}
	}
	return tags
}

// audioRequiringDescriptor declares an inspector that needs the PCM track,
// for tests exercising the unmet-requirement path.
func audioRequiringDescriptor(name string) inspect.Descriptor {
	return inspect.Descriptor{
		Name:     name,
		Requires: []inspect.Requirement{inspect.RequireAudio},
		Timeout:  scriptedTimeout,
	}
}

// neverRuns fails the test if the inspector is invoked at all.
func neverRuns(t *testing.T) inspect.Func {
	return func(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
		t.Error("inspector ran despite unmet requirements")
		return &inspect.Report{Score: 0}, nil
	}
}
