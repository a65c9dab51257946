package boxgeom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXYWHRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		cx, cy, w, h   float32
		x1, y1, x2, y2 float32
	}{
		{"unit", 0.5, 0.5, 1, 1, 0, 0, 1, 1},
		{"offset", 10, 20, 4, 6, 8, 17, 12, 23},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := XYWHToXYXY(Box{X1: tc.cx, Y1: tc.cy, X2: tc.w, Y2: tc.h})
			assert.InDelta(t, tc.x1, b.X1, 1e-6)
			assert.InDelta(t, tc.y1, b.Y1, 1e-6)
			assert.InDelta(t, tc.x2, b.X2, 1e-6)
			assert.InDelta(t, tc.y2, b.Y2, 1e-6)

			center := XYXYToXYWH(b)
			assert.InDelta(t, tc.cx, center.X1, 1e-5)
			assert.InDelta(t, tc.cy, center.Y1, 1e-5)
			assert.InDelta(t, tc.w, center.X2, 1e-5)
			assert.InDelta(t, tc.h, center.Y2, 1e-5)
		})
	}
}

func TestDistBoxRoundTrip(t *testing.T) {
	t.Parallel()

	p := Point{X: 4, Y: 5}
	box := Box{X1: 2, Y1: 2, X2: 8, Y2: 8}

	d := BoxToDist(p, box, 16)
	assert.InDelta(t, 2, d.Left, 1e-6)
	assert.InDelta(t, 3, d.Top, 1e-6)
	assert.InDelta(t, 4, d.Right, 1e-6)
	assert.InDelta(t, 3, d.Bottom, 1e-6)

	back := DistToBox(p, d)
	assert.InDelta(t, box.X1, back.X1, 1e-5)
	assert.InDelta(t, box.Y1, back.Y1, 1e-5)
	assert.InDelta(t, box.X2, back.X2, 1e-5)
	assert.InDelta(t, box.Y2, back.Y2, 1e-5)
}

func TestBoxToDistClamps(t *testing.T) {
	t.Parallel()

	// A far edge clamps to regMax-0.01; a side behind the point clamps to 0.
	d := BoxToDist(Point{X: 100, Y: 0}, Box{X1: 0, Y1: -1, X2: 200, Y2: 1}, 16)
	assert.InDelta(t, 15.99, d.Left, 1e-4)
	assert.InDelta(t, 15.99, d.Right, 1e-4)

	d = BoxToDist(Point{X: -5, Y: 0}, Box{X1: 0, Y1: -1, X2: 1, Y2: 1}, 16)
	assert.Equal(t, float32(0), d.Left)
}

func TestContainsStrict(t *testing.T) {
	t.Parallel()

	b := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.True(t, b.Contains(Point{X: 5, Y: 5}))
	assert.False(t, b.Contains(Point{X: 0, Y: 5}), "edge point is not inside")
	assert.False(t, b.Contains(Point{X: 5, Y: 10}))
	assert.False(t, b.Contains(Point{X: -1, Y: 5}))
}

func TestCenterDistance(t *testing.T) {
	t.Parallel()

	a := Box{X1: 0, Y1: 0, X2: 2, Y2: 2}
	b := Box{X1: 3, Y1: 2, X2: 5, Y2: 8}
	require.InDelta(t, 5.0, CenterDistance(a, b), 1e-5)
}
