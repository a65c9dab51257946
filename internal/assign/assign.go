// Package assign decides which ground-truth object, if any, each anchor
// is responsible for predicting.
//
// Two strategies share one contract: Warmup is a fixed geometric rule
// used for the first training epochs, Formal is a quality-aware rule
// that blends predicted confidence with localization quality. Both are
// stateless per call and allocate their large (anchors x targets)
// intermediates through a compute.Context so that resource exhaustion
// is reported as a typed error the caller can recover from.
package assign

import (
	"fmt"

	"github.com/kestrel-vision/detcore/internal/anchors"
	"github.com/kestrel-vision/detcore/internal/boxgeom"
	"github.com/kestrel-vision/detcore/internal/compute"
	"github.com/kestrel-vision/detcore/internal/targets"
)

// Inputs carries everything an assigner may need for one step. Warmup
// ignores PredScores; Formal ignores the anchor boxes.
type Inputs struct {
	Anchors    *anchors.Set
	Targets    *targets.Batch
	NumClasses int

	// PredScores holds per-anchor post-sigmoid class scores,
	// length BatchSize*AnchorCount*NumClasses.
	PredScores []float32
	// PredBoxes holds decoded predicted boxes in pixel units,
	// length BatchSize*AnchorCount*4.
	PredBoxes []float32
}

func (in *Inputs) validate(needScores bool) error {
	if in.Anchors == nil || in.Targets == nil {
		return fmt.Errorf("assign: missing anchors or targets")
	}
	if in.NumClasses <= 0 {
		return fmt.Errorf("assign: invalid class count %d", in.NumClasses)
	}
	b, a := in.Targets.BatchSize, in.Anchors.Count()
	if len(in.PredBoxes) != b*a*4 {
		return fmt.Errorf("assign: predicted boxes have %d values, want %d", len(in.PredBoxes), b*a*4)
	}
	if needScores && len(in.PredScores) != b*a*in.NumClasses {
		return fmt.Errorf("assign: predicted scores have %d values, want %d", len(in.PredScores), b*a*in.NumClasses)
	}
	return nil
}

func (in *Inputs) predBox(b, a int) boxgeom.Box {
	i := (b*in.Anchors.Count() + a) * 4
	return boxgeom.Box{
		X1: in.PredBoxes[i], Y1: in.PredBoxes[i+1],
		X2: in.PredBoxes[i+2], Y2: in.PredBoxes[i+3],
	}
}

// Result is the per-anchor assignment for a whole batch.
type Result struct {
	BatchSize  int
	Anchors    int
	NumClasses int

	// Labels holds the target class per anchor; background anchors
	// carry NumClasses as a sentinel.
	Labels []int
	// Boxes holds the target box per anchor (xyxy, pixel units),
	// length BatchSize*Anchors*4. Zero for background anchors.
	Boxes []float32
	// Scores holds the soft classification target per anchor and
	// class, length BatchSize*Anchors*NumClasses.
	Scores []float32
	// Foreground marks anchors that carry a real assignment.
	Foreground []bool
}

func newResult(batch, anchorCount, numClasses int) *Result {
	r := &Result{
		BatchSize:  batch,
		Anchors:    anchorCount,
		NumClasses: numClasses,
		Labels:     make([]int, batch*anchorCount),
		Boxes:      make([]float32, batch*anchorCount*4),
		Scores:     make([]float32, batch*anchorCount*numClasses),
		Foreground: make([]bool, batch*anchorCount),
	}
	for i := range r.Labels {
		r.Labels[i] = numClasses
	}
	return r
}

// NumForeground counts foreground anchors across the batch.
func (r *Result) NumForeground() int {
	n := 0
	for _, fg := range r.Foreground {
		if fg {
			n++
		}
	}
	return n
}

func (r *Result) setTarget(b, a, label int, box boxgeom.Box) {
	i := b*r.Anchors + a
	r.Labels[i] = label
	r.Boxes[i*4+0] = box.X1
	r.Boxes[i*4+1] = box.Y1
	r.Boxes[i*4+2] = box.X2
	r.Boxes[i*4+3] = box.Y2
	r.Foreground[i] = true
}

// Assigner is the shared contract of the two assignment strategies.
type Assigner interface {
	Assign(ctx compute.Context, in *Inputs) (*Result, error)
}

// resolveClaims collapses multi-object claims on an anchor. maskPos and
// quality are (targets x anchors) matrices for one image; the returned
// slice maps each anchor to its winning target index, or -1 for
// background. When several targets claim an anchor the one with the
// highest quality wins, first target on ties.
func resolveClaims(maskPos []bool, quality []float32, nGT, nA int) []int {
	assigned := make([]int, nA)
	for a := 0; a < nA; a++ {
		best := -1
		var bestQ float32
		for g := 0; g < nGT; g++ {
			if !maskPos[g*nA+a] {
				continue
			}
			if best < 0 || quality[g*nA+a] > bestQ {
				best = g
				bestQ = quality[g*nA+a]
			}
		}
		assigned[a] = best
	}
	return assigned
}
