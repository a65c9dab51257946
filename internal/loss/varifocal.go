package loss

import "math"

// Varifocal is the asymmetric classification loss. Negative entries are
// down-weighted by the prediction's own confidence (Alpha * p^Gamma);
// positive entries are weighted by their soft target score, so an
// anchor's classification target follows its localization quality.
type Varifocal struct {
	Alpha float64
	Gamma float64
}

// NewVarifocal returns the standard parameterization.
func NewVarifocal() Varifocal { return Varifocal{Alpha: 0.75, Gamma: 2.0} }

// Loss sums the weighted binary cross entropy over every anchor/class
// entry. pred holds post-sigmoid scores, target the soft scores from
// assignment, labels the per-anchor target class (numClasses for
// background, whose rows have no positive entry).
//
// The whole accumulation runs in float64: this term is the numerically
// delicate one and must not inherit a reduced-precision compute mode.
func (v Varifocal) Loss(pred, target []float32, labels []int, numClasses int) float64 {
	const eps = 1e-12
	var sum float64
	for i, lab := range labels {
		base := i * numClasses
		for c := 0; c < numClasses; c++ {
			p := float64(pred[base+c])
			t := float64(target[base+c])

			var weight float64
			if lab == c {
				weight = t
			} else {
				weight = v.Alpha * math.Pow(p, v.Gamma)
			}
			if weight == 0 {
				continue
			}

			if p < eps {
				p = eps
			} else if p > 1-eps {
				p = 1 - eps
			}
			bce := -(t*math.Log(p) + (1-t)*math.Log(1-p))
			sum += bce * weight
		}
	}
	return sum
}
