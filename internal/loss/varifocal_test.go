package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVarifocalPositiveEntry(t *testing.T) {
	t.Parallel()

	v := NewVarifocal()

	// One anchor, one class, full soft target: plain BCE at p=0.5.
	got := v.Loss([]float32{0.5}, []float32{1}, []int{0}, 1)
	assert.InDelta(t, math.Ln2, got, 1e-9)

	// Half soft target scales both the target and the weight.
	got = v.Loss([]float32{0.5}, []float32{0.5}, []int{0}, 1)
	want := 0.5 * -(0.5*math.Log(0.5) + 0.5*math.Log(0.5))
	assert.InDelta(t, want, got, 1e-9)
}

func TestVarifocalNegativeEntry(t *testing.T) {
	t.Parallel()

	v := NewVarifocal()

	// Background anchor (label = numClasses): the entry is down-weighted
	// by alpha * p^gamma.
	got := v.Loss([]float32{0.5}, []float32{0}, []int{1}, 1)
	want := 0.75 * 0.25 * -math.Log(0.5)
	assert.InDelta(t, want, got, 1e-9)

	// A certain negative contributes nothing: zero confidence means zero
	// focal weight.
	assert.Equal(t, 0.0, v.Loss([]float32{0}, []float32{0}, []int{1}, 1))
}

func TestVarifocalClampsProbabilities(t *testing.T) {
	t.Parallel()

	v := NewVarifocal()

	// Saturated predictions stay finite.
	got := v.Loss([]float32{1}, []float32{1}, []int{0}, 1)
	assert.False(t, math.IsInf(got, 0))
	assert.False(t, math.IsNaN(got))

	got = v.Loss([]float32{1, 0}, []float32{0, 0}, []int{2, 2}, 1)
	assert.False(t, math.IsInf(got, 0))
}
