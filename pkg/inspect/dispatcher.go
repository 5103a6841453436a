package inspect

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/timeline"
)

// FatalError is returned when an inspector marked FatalOnFailure did not
// succeed. It fails the whole job.
type FatalError struct {
	Inspector string
	Detail    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("inspector %s failed fatally: %s", e.Inspector, e.Detail)
}

// OutcomeHook observes each terminal inspector outcome as it lands.
// finished counts terminal outcomes so far out of total enabled inspectors.
// Hooks are invoked serially.
type OutcomeHook func(oc Outcome, finished, total int)

// Dispatcher fans one job's bundle out to every enabled inspector:
// artifact providers first (their output feeds dependents), then the rest
// in parallel capped by a weighted semaphore.
type Dispatcher struct {
	registry    *Registry
	maxParallel int64
}

// NewDispatcher returns a dispatcher over the registry with the given
// per-job parallelism cap.
func NewDispatcher(registry *Registry, maxParallel int) *Dispatcher {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Dispatcher{registry: registry, maxParallel: int64(maxParallel)}
}

// Dispatch runs every enabled inspector against the bundle. Events flow
// into the aggregator; the returned map holds one score per inspector
// (neutral 0.5 where the policy kicked in). Non-success outcomes never fail
// the job unless the descriptor says so; a returned error means the job
// must fail (fatal inspector or cancellation).
func (d *Dispatcher) Dispatch(ctx context.Context, b *Bundle, agg *timeline.Aggregator, hook OutcomeHook) (map[string]float64, error) {
	entries := d.registry.enabledEntries()

	var providers, rest []*entry
	for _, e := range entries {
		if len(e.desc.Provides) > 0 {
			providers = append(providers, e)
		} else {
			rest = append(rest, e)
		}
	}

	total := len(entries)
	finished := 0
	scores := make(map[string]float64, total)

	// Provider wave: sequential, so dependents see the artifacts.
	for _, e := range providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		oc := d.runEntry(ctx, e, b)
		if oc.Kind == OutcomeSuccess && provides(e.desc, RequireTranscript) {
			b.Transcript = oc.Artifact
		}
		if err := d.applyOutcome(oc, e.desc, b, scores, agg); err != nil {
			return nil, err
		}
		finished++
		if hook != nil {
			hook(oc, finished, total)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Main fan-out. The launcher acquires before spawning so starts keep
	// submission order; outcomes land in a channel sized for the whole
	// wave so no goroutine ever blocks on a departed collector.
	byName := make(map[string]*entry, len(rest))
	for _, e := range rest {
		byName[e.desc.Name] = e
	}

	fanCtx, fanCancel := context.WithCancel(ctx)
	defer fanCancel()

	sem := semaphore.NewWeighted(d.maxParallel)
	resCh := make(chan Outcome, len(rest))

	go func() {
		for _, e := range rest {
			if err := sem.Acquire(fanCtx, 1); err != nil {
				resCh <- Outcome{
					Inspector: e.desc.Name, Kind: OutcomeError,
					Detail: "job cancelled: " + err.Error(),
				}
				continue
			}
			go func(e *entry) {
				defer sem.Release(1)
				resCh <- d.runEntry(fanCtx, e, b)
			}(e)
		}
	}()

	for range rest {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case oc := <-resCh:
			if err := d.applyOutcome(oc, byName[oc.Inspector].desc, b, scores, agg); err != nil {
				return nil, err
			}
			finished++
			if hook != nil {
				hook(oc, finished, total)
			}
		}
	}

	return scores, nil
}

// runEntry verifies the bundle satisfies the descriptor's requirements and
// then executes it. A transcript requirement is satisfied by wave ordering
// alone: an empty transcript is the inspector's own neutral case.
func (d *Dispatcher) runEntry(ctx context.Context, e *entry, b *Bundle) Outcome {
	if missing := unmetRequirement(e.desc, b); missing != "" {
		return Outcome{
			Inspector: e.desc.Name, Kind: OutcomeError,
			Detail: "missing required input: " + missing,
		}
	}
	return runOne(ctx, e.desc, e.fn, b)
}

// applyOutcome folds one terminal outcome into the job: record the score
// and events on success, otherwise neutralize (or escalate when the
// descriptor is fatal).
func (d *Dispatcher) applyOutcome(oc Outcome, desc Descriptor, b *Bundle, scores map[string]float64, agg *timeline.Aggregator) error {
	if oc.Kind == OutcomeSuccess {
		scores[desc.Name] = oc.Score
		agg.Add(oc.Events...)
		return nil
	}

	if desc.FatalOnFailure {
		return &FatalError{Inspector: desc.Name, Detail: oc.Detail}
	}

	slog.Warn("Inspector neutralized",
		"inspector", desc.Name, "outcome", string(oc.Kind), "reason", oc.Detail)
	scores[desc.Name] = NeutralScore
	agg.Add(models.AnomalyEvent{
		Module:       desc.Name,
		EventTag:     models.EventTagInspectorFailed,
		TimestampSec: 0,
		DurationSec:  effectiveDuration(b),
		Metadata:     map[string]any{"reason": oc.Detail},
	})
	return nil
}

func provides(desc Descriptor, req Requirement) bool {
	for _, p := range desc.Provides {
		if p == req {
			return true
		}
	}
	return false
}

func unmetRequirement(desc Descriptor, b *Bundle) string {
	for _, req := range desc.Requires {
		switch req {
		case RequireFrames:
			if b.Media == nil || len(b.Media.Frames) == 0 {
				return string(RequireFrames)
			}
		case RequireAudio:
			if b.Media == nil || !b.Media.HasAudio || len(b.Audio) == 0 {
				return string(RequireAudio)
			}
		}
	}
	return ""
}

func effectiveDuration(b *Bundle) float64 {
	if b.Media == nil {
		return 0
	}
	return b.Media.EffectiveDurationSec
}
