package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-vision/detcore/internal/boxgeom"
	"github.com/kestrel-vision/detcore/internal/loss"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
func ptrS(v string) *string   { return &v }

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	tuning, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	// Empty overlay: applying it changes nothing.
	cfg, err := tuning.Apply(loss.DefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(loss.DefaultConfig(), cfg); diff != "" {
		t.Errorf("config drift (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	want := &LossTuning{
		Strides:    []int{8, 16},
		NumClasses: ptrI(20),
		IoUVariant: ptrS("siou"),
		IoUWeight:  ptrF(2.5),
	}
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyOverlaysSubset(t *testing.T) {
	t.Parallel()

	tuning := &LossTuning{
		NumClasses:  ptrI(20),
		IoUVariant:  ptrS("ciou"),
		ClassWeight: ptrF(1.0),
	}
	cfg, err := tuning.Apply(loss.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.NumClasses)
	assert.Equal(t, boxgeom.VariantCIoU, cfg.IoUVariant)
	assert.Equal(t, 1.0, cfg.Weights.Class)

	// Untouched fields keep their defaults.
	assert.Equal(t, []int{8, 16, 32}, cfg.Strides)
	assert.Equal(t, 3.5, cfg.Weights.IoU)
}

func TestApplyRejectsUnknownVariant(t *testing.T) {
	t.Parallel()

	tuning := &LossTuning{IoUVariant: ptrS("eiou")}
	_, err := tuning.Apply(loss.DefaultConfig())
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
