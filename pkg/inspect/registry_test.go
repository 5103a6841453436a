package inspect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/config"
)

func noopInspector(ctx context.Context, b *Bundle) (*Report, error) {
	return &Report{Score: 0.1}, nil
}

func desc(name string) Descriptor {
	return Descriptor{Name: name, Weight: 0.1, Timeout: time.Second}
}

func TestRegistryRegisterAndOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(desc("b"), noopInspector))
	require.NoError(t, r.Register(desc("a"), noopInspector))
	require.NoError(t, r.Register(desc("c"), noopInspector))

	names := make([]string, 0, 3)
	for _, d := range r.Enabled() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names, "registration order is preserved")
}

func TestRegistryRejectsBadDescriptors(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Descriptor{Name: "", Weight: 0.1, Timeout: time.Second}, noopInspector))
	assert.Error(t, r.Register(Descriptor{Name: "x", Weight: -0.1, Timeout: time.Second}, noopInspector))
	assert.Error(t, r.Register(Descriptor{Name: "x", Weight: 1.1, Timeout: time.Second}, noopInspector))
	assert.Error(t, r.Register(Descriptor{Name: "x", Weight: 0.1, Timeout: 0}, noopInspector))
	assert.Error(t, r.Register(desc("x"), nil))

	require.NoError(t, r.Register(desc("x"), noopInspector))
	assert.Error(t, r.Register(desc("x"), noopInspector), "duplicate name")
}

func TestRegistryApplyOverrides(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(desc("keep"), noopInspector))
	require.NoError(t, r.Register(desc("drop"), noopInspector))
	require.NoError(t, r.Register(desc("slow"), noopInspector))

	off := false
	err := r.ApplyOverrides(map[string]config.InspectorOverride{
		"drop": {Enabled: &off},
		"slow": {TimeoutSec: 45},
	})
	require.NoError(t, err)

	enabled := r.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "keep", enabled[0].Name)
	assert.Equal(t, "slow", enabled[1].Name)
	assert.Equal(t, 45*time.Second, enabled[1].Timeout)
}

func TestRegistryApplyOverridesUnknownName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(desc("real"), noopInspector))

	err := r.ApplyOverrides(map[string]config.InspectorOverride{"tpyo": {TimeoutSec: 5}})
	assert.Error(t, err)
}

func TestWeightsForV1(t *testing.T) {
	w, err := WeightsFor(Version1)
	require.NoError(t, err)

	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 0.85, sum, 1e-9, "v1 weights sum")
	assert.Equal(t, 0.20, w["visual_clip"])
	assert.Equal(t, 0.00, w["transcript"])

	// Mutating the copy must not leak into the frozen table.
	w["visual_clip"] = 99
	w2, err := WeightsFor(Version1)
	require.NoError(t, err)
	assert.Equal(t, 0.20, w2["visual_clip"])
}

func TestWeightsForUnknownVersion(t *testing.T) {
	_, err := WeightsFor("v999")
	assert.Error(t, err)
}
