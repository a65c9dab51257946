package assign

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kestrel-vision/detcore/internal/boxgeom"
	"github.com/kestrel-vision/detcore/internal/compute"
)

// iouEps guards the overlap denominators inside the assigners.
const iouEps = 1e-6

// Warmup is the adaptive-training-sample-selection rule used during the
// warmup epochs: per detection scale it shortlists the TopK anchors
// closest to each object's center, then keeps shortlisted anchors whose
// overlap clears an adaptive mean+std threshold and whose center lies
// inside the object.
type Warmup struct {
	TopK       int
	NumClasses int
}

// NewWarmup returns a Warmup assigner with the given per-scale
// shortlist size.
func NewWarmup(topK, numClasses int) *Warmup {
	return &Warmup{TopK: topK, NumClasses: numClasses}
}

// Assign computes the warmup assignment for a whole batch.
func (w *Warmup) Assign(ctx compute.Context, in *Inputs) (*Result, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	bs := in.Targets.BatchSize
	nGT := in.Targets.MaxGT
	nA := in.Anchors.Count()
	res := newResult(bs, nA, w.NumClasses)

	// The (targets x anchors) matrices dominate this step's memory.
	overlaps, err := ctx.Alloc(bs * nGT * nA)
	if err != nil {
		return nil, err
	}
	distances, err := ctx.Alloc(bs * nGT * nA)
	if err != nil {
		return nil, err
	}

	maskPos := make([]bool, nGT*nA)
	cand := make([]int, 0, w.TopK*len(in.Anchors.PerScale))
	candIoUs := make([]float64, 0, w.TopK*len(in.Anchors.PerScale))
	order := make([]int, 0, nA)

	for b := 0; b < bs; b++ {
		ov := overlaps[b*nGT*nA : (b+1)*nGT*nA]
		di := distances[b*nGT*nA : (b+1)*nGT*nA]
		for i := range maskPos {
			maskPos[i] = false
		}

		for g := 0; g < nGT; g++ {
			if !in.Targets.Valid(b, g) {
				continue
			}
			gt := in.Targets.Box(b, g)
			for a := 0; a < nA; a++ {
				anc := anchorBox(in.Anchors.Boxes, a)
				ov[g*nA+a] = boxgeom.PlainIoU(gt, anc, iouEps)
				di[g*nA+a] = boxgeom.CenterDistance(gt, anc)
			}

			// Per-scale shortlist of the nearest centers, TopK clamped
			// to the scale's anchor count.
			cand = cand[:0]
			candIoUs = candIoUs[:0]
			off := 0
			for _, n := range in.Anchors.PerScale {
				k := w.TopK
				if k > n {
					k = n
				}
				order = order[:0]
				for a := off; a < off+n; a++ {
					order = append(order, a)
				}
				sort.SliceStable(order, func(i, j int) bool {
					return di[g*nA+order[i]] < di[g*nA+order[j]]
				})
				for _, a := range order[:k] {
					cand = append(cand, a)
					candIoUs = append(candIoUs, float64(ov[g*nA+a]))
				}
				off += n
			}

			// Adaptive threshold over the shortlist.
			mean, std := stat.MeanStdDev(candIoUs, nil)
			if len(candIoUs) < 2 {
				std = 0
			}
			thr := float32(mean + std)

			for _, a := range cand {
				if ov[g*nA+a] >= thr && gt.Contains(anchorPoint(in.Anchors.Points, a)) {
					maskPos[g*nA+a] = true
				}
			}
		}

		assigned := resolveClaims(maskPos, ov, nGT, nA)
		for a := 0; a < nA; a++ {
			g := assigned[a]
			if g < 0 {
				continue
			}
			gt := in.Targets.Box(b, g)
			label := in.Targets.Label(b, g)
			res.setTarget(b, a, label, gt)

			// Soft score: overlap between the object and the current
			// prediction at this anchor scales the one-hot target.
			quality := boxgeom.PlainIoU(gt, in.predBox(b, a), iouEps)
			res.Scores[(b*nA+a)*w.NumClasses+label] = quality
		}
	}
	return res, nil
}

func anchorBox(boxes []float32, a int) boxgeom.Box {
	return boxgeom.Box{X1: boxes[a*4], Y1: boxes[a*4+1], X2: boxes[a*4+2], Y2: boxes[a*4+3]}
}

func anchorPoint(points []float32, a int) boxgeom.Point {
	return boxgeom.Point{X: points[a*2], Y: points[a*2+1]}
}
