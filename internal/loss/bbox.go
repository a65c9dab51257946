package loss

import (
	"math"

	"github.com/kestrel-vision/detcore/internal/assign"
	"github.com/kestrel-vision/detcore/internal/boxgeom"
)

// BoxLoss computes the regression terms over foreground anchors: the
// IoU loss on decoded boxes and, when distribution regression is
// enabled, the distribution-focal loss on the raw per-side bin logits.
type BoxLoss struct {
	Variant boxgeom.Variant
	RegMax  int
	UseDFL  bool
}

// Compute returns the two regression losses. predBoxes and targetBoxes
// are in stride units (one slot per anchor, xyxy); points holds the
// stride-unit anchor points; predDist holds the raw bin logits and is
// only read when UseDFL is set. Without any foreground anchor both
// terms are exactly zero.
func (l *BoxLoss) Compute(predDist, predBoxes, targetBoxes, points []float32, res *assign.Result, scoresSum, floor float64) (iouLoss, dflLoss float64) {
	if res.NumForeground() == 0 {
		return 0, 0
	}

	bins := l.RegMax + 1
	nA := res.Anchors
	for b := 0; b < res.BatchSize; b++ {
		for a := 0; a < nA; a++ {
			i := b*nA + a
			if !res.Foreground[i] {
				continue
			}

			// Each anchor's contribution is weighted by its summed
			// soft target score.
			var w float64
			for c := 0; c < res.NumClasses; c++ {
				w += float64(res.Scores[i*res.NumClasses+c])
			}

			pb := boxAt(predBoxes, i)
			tb := boxAt(targetBoxes, i)
			iouLoss += float64(boxgeom.IoULoss(pb, tb, l.Variant, boxgeom.DefaultEps)) * w

			if !l.UseDFL {
				continue
			}
			pt := boxgeom.Point{X: points[a*2], Y: points[a*2+1]}
			td := boxgeom.BoxToDist(pt, tb, l.RegMax)
			var side float64
			for s, t := range [4]float32{td.Left, td.Top, td.Right, td.Bottom} {
				logits := predDist[(i*4+s)*bins : (i*4+s+1)*bins]
				lo := int(t)
				hi := lo + 1
				wHi := float64(t) - float64(lo)
				wLo := 1 - wHi
				side += crossEntropy(logits, lo)*wLo + crossEntropy(logits, hi)*wHi
			}
			dflLoss += side / 4 * w
		}
	}

	if scoresSum > floor {
		iouLoss /= scoresSum
		dflLoss /= scoresSum
	}
	return iouLoss, dflLoss
}

// crossEntropy is -log softmax(logits)[idx], accumulated in float64
// with the max-shift trick.
func crossEntropy(logits []float32, idx int) float64 {
	maxv := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxv {
			maxv = float64(v)
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - maxv)
	}
	return math.Log(sum) - (float64(logits[idx]) - maxv)
}

func boxAt(s []float32, i int) boxgeom.Box {
	return boxgeom.Box{X1: s[i*4], Y1: s[i*4+1], X2: s[i*4+2], Y2: s[i*4+3]}
}
