package boxgeom

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// Variant selects the overlap formulation used for the regression loss.
type Variant int

const (
	// VariantIoU is plain intersection over union.
	VariantIoU Variant = iota
	// VariantGIoU subtracts the enclosing-box slack (generalized IoU).
	VariantGIoU
	// VariantDIoU subtracts a normalized center-distance penalty.
	VariantDIoU
	// VariantCIoU adds an aspect-ratio consistency term to DIoU.
	VariantCIoU
	// VariantSIoU combines angle, distance and shape costs.
	VariantSIoU
)

// DefaultEps guards the divisions inside the IoU family.
const DefaultEps = 1e-10

func (v Variant) String() string {
	switch v {
	case VariantIoU:
		return "iou"
	case VariantGIoU:
		return "giou"
	case VariantDIoU:
		return "diou"
	case VariantCIoU:
		return "ciou"
	case VariantSIoU:
		return "siou"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant maps a configuration string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "iou":
		return VariantIoU, nil
	case "giou":
		return VariantGIoU, nil
	case "diou":
		return VariantDIoU, nil
	case "ciou":
		return VariantCIoU, nil
	case "siou":
		return VariantSIoU, nil
	}
	return 0, fmt.Errorf("boxgeom: unknown iou variant %q", s)
}

// IoU computes the selected overlap measure between two corner-form
// boxes. The plain variant lies in [0, 1]; penalized variants can go
// negative for disjoint boxes.
func IoU(a, b Box, v Variant, eps float32) float32 {
	iw := maxf(minf(a.X2, b.X2)-maxf(a.X1, b.X1), 0)
	ih := maxf(minf(a.Y2, b.Y2)-maxf(a.Y1, b.Y1), 0)
	inter := iw * ih

	w1 := a.X2 - a.X1
	h1 := a.Y2 - a.Y1 + eps
	w2 := b.X2 - b.X1
	h2 := b.Y2 - b.Y1 + eps
	union := w1*h1 + w2*h2 - inter + eps
	iou := inter / union

	// Enclosing box.
	cw := maxf(a.X2, b.X2) - minf(a.X1, b.X1)
	ch := maxf(a.Y2, b.Y2) - minf(a.Y1, b.Y1)

	switch v {
	case VariantGIoU:
		cArea := cw*ch + eps
		iou -= (cArea - union) / cArea

	case VariantDIoU, VariantCIoU:
		c2 := cw*cw + ch*ch + eps
		dx := b.X1 + b.X2 - a.X1 - a.X2
		dy := b.Y1 + b.Y2 - a.Y1 - a.Y2
		rho2 := (dx*dx + dy*dy) / 4
		if v == VariantDIoU {
			iou -= rho2 / c2
		} else {
			ar := math32.Atan(w2/h2) - math32.Atan(w1/h1)
			shape := 4 / (math32.Pi * math32.Pi) * ar * ar
			alpha := shape / (shape - iou + 1 + eps)
			iou -= rho2/c2 + shape*alpha
		}

	case VariantSIoU:
		// Angle cost from the center offset direction.
		scw := (b.X1+b.X2-a.X1-a.X2)*0.5 + eps
		sch := (b.Y1+b.Y2-a.Y1-a.Y2)*0.5 + eps
		sigma := math32.Sqrt(scw*scw + sch*sch)
		sinA1 := math32.Abs(scw) / sigma
		sinA2 := math32.Abs(sch) / sigma
		threshold := math32.Sqrt2 / 2
		sinA := sinA1
		if sinA1 > threshold {
			sinA = sinA2
		}
		angleCost := math32.Cos(math32.Asin(sinA)*2 - math32.Pi/2)

		rhoX := (scw / cw) * (scw / cw)
		rhoY := (sch / ch) * (sch / ch)
		gamma := angleCost - 2
		distCost := 2 - math32.Exp(gamma*rhoX) - math32.Exp(gamma*rhoY)

		omegaW := math32.Abs(w1-w2) / maxf(w1, w2)
		omegaH := math32.Abs(h1-h2) / maxf(h1, h2)
		shapeCost := math32.Pow(1-math32.Exp(-omegaW), 4) + math32.Pow(1-math32.Exp(-omegaH), 4)
		iou -= 0.5 * (distCost + shapeCost)
	}

	return iou
}

// IoULoss is the regression loss for one box pair: 1 - IoU(variant).
func IoULoss(pred, target Box, v Variant, eps float32) float32 {
	return 1 - IoU(pred, target, v, eps)
}

// PlainIoU is intersection over union without penalty terms, guarded by
// eps in the denominator. It is the overlap measure the assigners use.
func PlainIoU(a, b Box, eps float32) float32 {
	iw := minf(a.X2, b.X2) - maxf(a.X1, b.X1)
	ih := minf(a.Y2, b.Y2) - maxf(a.Y1, b.Y1)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	return inter / maxf(union, eps)
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
