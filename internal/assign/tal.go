package assign

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/kestrel-vision/detcore/internal/boxgeom"
	"github.com/kestrel-vision/detcore/internal/compute"
)

// alignEps keeps the score calibration away from zero denominators and
// filters degenerate candidates.
const alignEps = 1e-9

// Formal is the task-aligned assigner used after warmup. Each object
// selects the TopK anchors maximizing score^Alpha * overlap^Beta among
// anchors whose center lies inside it, so the anchors trained hardest
// are the ones the head already predicts well.
type Formal struct {
	TopK       int
	NumClasses int
	Alpha      float32
	Beta       float32
}

// NewFormal returns a Formal assigner with the given selection size and
// metric exponents.
func NewFormal(topK, numClasses int, alpha, beta float32) *Formal {
	return &Formal{TopK: topK, NumClasses: numClasses, Alpha: alpha, Beta: beta}
}

// Assign computes the task-aligned assignment for a whole batch.
func (f *Formal) Assign(ctx compute.Context, in *Inputs) (*Result, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	bs := in.Targets.BatchSize
	nGT := in.Targets.MaxGT
	nA := in.Anchors.Count()
	res := newResult(bs, nA, f.NumClasses)

	align, err := ctx.Alloc(bs * nGT * nA)
	if err != nil {
		return nil, err
	}
	overlaps, err := ctx.Alloc(bs * nGT * nA)
	if err != nil {
		return nil, err
	}

	maskPos := make([]bool, nGT*nA)
	order := make([]int, 0, nA)

	for b := 0; b < bs; b++ {
		al := align[b*nGT*nA : (b+1)*nGT*nA]
		ov := overlaps[b*nGT*nA : (b+1)*nGT*nA]
		for i := range maskPos {
			maskPos[i] = false
		}

		for g := 0; g < nGT; g++ {
			if !in.Targets.Valid(b, g) {
				continue
			}
			gt := in.Targets.Box(b, g)
			cls := in.Targets.Label(b, g)
			if cls < 0 {
				cls = 0
			}

			for a := 0; a < nA; a++ {
				if !gt.Contains(anchorPoint(in.Anchors.Points, a)) {
					continue
				}
				score := in.PredScores[(b*nA+a)*f.NumClasses+cls]
				iou := boxgeom.PlainIoU(gt, in.predBox(b, a), iouEps)
				ov[g*nA+a] = iou
				al[g*nA+a] = math32.Pow(score, f.Alpha) * math32.Pow(iou, f.Beta)
			}

			// TopK by alignment metric; anchors outside the object kept
			// their zero metric and are never picked.
			order = order[:0]
			for a := 0; a < nA; a++ {
				if al[g*nA+a] > alignEps {
					order = append(order, a)
				}
			}
			sort.SliceStable(order, func(i, j int) bool {
				return al[g*nA+order[i]] > al[g*nA+order[j]]
			})
			k := f.TopK
			if k > len(order) {
				k = len(order)
			}
			for _, a := range order[:k] {
				maskPos[g*nA+a] = true
			}
		}

		// Claims resolved by the alignment metric itself.
		assigned := resolveClaims(maskPos, al, nGT, nA)

		// Per-object calibration inputs: the best alignment metric and
		// the best overlap among the anchors the object actually won.
		posAlignMax := make([]float32, nGT)
		posOverlapMax := make([]float32, nGT)
		for a := 0; a < nA; a++ {
			g := assigned[a]
			if g < 0 {
				continue
			}
			if al[g*nA+a] > posAlignMax[g] {
				posAlignMax[g] = al[g*nA+a]
			}
			if ov[g*nA+a] > posOverlapMax[g] {
				posOverlapMax[g] = ov[g*nA+a]
			}
		}

		for a := 0; a < nA; a++ {
			g := assigned[a]
			if g < 0 {
				continue
			}
			label := in.Targets.Label(b, g)
			if label < 0 {
				label = 0
			}
			res.setTarget(b, a, label, in.Targets.Box(b, g))

			// Rescale so the object's best anchor scores its best
			// achieved overlap; weaker anchors scale down with their
			// metric.
			soft := al[g*nA+a] * posOverlapMax[g] / (posAlignMax[g] + alignEps)
			res.Scores[(b*nA+a)*f.NumClasses+label] = soft
		}
	}
	return res, nil
}
