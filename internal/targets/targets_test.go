package targets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessPadsToLargestImage(t *testing.T) {
	t.Parallel()

	rows := []GroundTruth{
		{ImageIndex: 0, Class: 3, CX: 0.5, CY: 0.5, W: 0.2, H: 0.2},
		{ImageIndex: 0, Class: 7, CX: 0.25, CY: 0.25, W: 0.1, H: 0.1},
		{ImageIndex: 0, Class: 1, CX: 0.75, CY: 0.75, W: 0.1, H: 0.1},
		{ImageIndex: 1, Class: 5, CX: 0.5, CY: 0.5, W: 0.5, H: 0.5},
	}
	batch, err := Preprocess(rows, 2, 640)
	require.NoError(t, err)

	assert.Equal(t, 2, batch.BatchSize)
	assert.Equal(t, 3, batch.MaxGT)
	assert.Len(t, batch.Labels, 6)
	assert.Len(t, batch.Boxes, 24)
	assert.Len(t, batch.Mask, 6)

	assert.Equal(t, 3, batch.NumValid(0))
	assert.Equal(t, 1, batch.NumValid(1))

	// Padding slots carry the sentinel class and a dead mask.
	assert.Equal(t, PadClass, batch.Label(1, 1))
	assert.Equal(t, PadClass, batch.Label(1, 2))
	assert.False(t, batch.Valid(1, 1))
	assert.False(t, batch.Valid(1, 2))

	// Normalized center form scales to absolute corner form.
	box := batch.Box(0, 0)
	assert.InDelta(t, 256, box.X1, 1e-3)
	assert.InDelta(t, 256, box.Y1, 1e-3)
	assert.InDelta(t, 384, box.X2, 1e-3)
	assert.InDelta(t, 384, box.Y2, 1e-3)

	assert.Equal(t, 3, batch.Label(0, 0))
	assert.Equal(t, 5, batch.Label(1, 0))
	assert.True(t, batch.Valid(0, 0))
}

func TestPreprocessEmptyBatch(t *testing.T) {
	t.Parallel()

	batch, err := Preprocess(nil, 2, 640)
	require.NoError(t, err)

	// Even an annotation-free batch keeps one padded slot per image so
	// downstream shapes never collapse.
	assert.Equal(t, 1, batch.MaxGT)
	assert.Equal(t, 0, batch.NumValid(0))
	assert.Equal(t, 0, batch.NumValid(1))
	assert.Equal(t, PadClass, batch.Label(0, 0))
	assert.False(t, batch.Valid(1, 0))
}

func TestPreprocessRejectsBadRows(t *testing.T) {
	t.Parallel()

	_, err := Preprocess([]GroundTruth{{ImageIndex: 2}}, 2, 640)
	assert.Error(t, err)

	_, err = Preprocess([]GroundTruth{{ImageIndex: -1}}, 2, 640)
	assert.Error(t, err)

	_, err = Preprocess(nil, 0, 640)
	assert.Error(t, err)
}
