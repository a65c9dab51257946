package trainlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-vision/detcore/internal/loss"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trainlog.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStoreRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	id, err := s.StartRun("smoke run")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.RecordStep(id, 1, 0, 2.5, loss.Breakdown{IoU: 1.0, DFL: 0.5, Class: 1.0}))
	g := loss.Breakdown{IoU: 0.8, DFL: 0.4, Class: 0.9, Gating: 0.05, HasGating: true}
	require.NoError(t, s.RecordStep(id, 2, 0, 2.15, g))

	steps, err := s.Steps(id)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, 1, steps[0].Step)
	assert.Equal(t, 2.5, steps[0].Total)
	assert.Nil(t, steps[0].Gating, "no gating recorded for this step")

	assert.Equal(t, 2, steps[1].Step)
	require.NotNil(t, steps[1].Gating)
	assert.InDelta(t, 0.05, *steps[1].Gating, 1e-12)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "smoke run", runs[0].Note)
	assert.False(t, runs[0].StartedAt.IsZero())
}

func TestStoreRejectsDuplicateStep(t *testing.T) {
	s, _ := openTestStore(t)

	id, err := s.StartRun("")
	require.NoError(t, err)

	require.NoError(t, s.RecordStep(id, 1, 0, 1.0, loss.Breakdown{}))
	assert.Error(t, s.RecordStep(id, 1, 0, 1.0, loss.Breakdown{}))
}

func TestStoreReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trainlog.db")

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.StartRun("first")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening applies no further migrations and keeps the data.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}
