// Package anchors generates the dense grid of candidate points an
// anchor-free detection head predicts from.
//
// Each detection scale contributes height x width cells; cells are
// enumerated row-major within a scale and scales are concatenated in the
// order the caller lists them. Downstream code depends on this ordering
// to split flat per-anchor tensors back into per-scale chunks, so it is
// part of the package contract.
package anchors

import "fmt"

// FeatureMapSpec describes one detection scale: the spatial shape of its
// feature map and the pixel stride between adjacent cells.
type FeatureMapSpec struct {
	Height int
	Width  int
	Stride int
}

// Set holds the flattened anchor metadata for one forward pass.
type Set struct {
	// Boxes holds one xyxy box per anchor (cell center +/- half the
	// scaled cell size), length 4*Count.
	Boxes []float32
	// Points holds the cell center per anchor in pixel coordinates,
	// length 2*Count.
	Points []float32
	// Strides broadcasts each anchor's stride, length Count.
	Strides []float32
	// PerScale counts anchors per scale, in input order.
	PerScale []int
}

// Count returns the total number of anchors in the set.
func (s *Set) Count() int { return len(s.Strides) }

func validate(specs []FeatureMapSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("anchors: no feature map specs")
	}
	for i, fs := range specs {
		if fs.Height <= 0 || fs.Width <= 0 {
			return fmt.Errorf("anchors: scale %d has invalid shape %dx%d", i, fs.Height, fs.Width)
		}
		if fs.Stride <= 0 {
			return fmt.Errorf("anchors: scale %d has invalid stride %d", i, fs.Stride)
		}
	}
	return nil
}

// Generate builds the training-time anchor set. cellSize scales the
// anchor box relative to the stride; cellOffset shifts cell centers in
// grid units (0.5 centers them).
func Generate(specs []FeatureMapSpec, cellSize, cellOffset float32) (*Set, error) {
	if err := validate(specs); err != nil {
		return nil, err
	}

	total := 0
	for _, fs := range specs {
		total += fs.Height * fs.Width
	}

	set := &Set{
		Boxes:    make([]float32, 0, total*4),
		Points:   make([]float32, 0, total*2),
		Strides:  make([]float32, 0, total),
		PerScale: make([]int, 0, len(specs)),
	}

	for _, fs := range specs {
		stride := float32(fs.Stride)
		half := cellSize * stride * 0.5
		for y := 0; y < fs.Height; y++ {
			cy := (float32(y) + cellOffset) * stride
			for x := 0; x < fs.Width; x++ {
				cx := (float32(x) + cellOffset) * stride
				set.Boxes = append(set.Boxes, cx-half, cy-half, cx+half, cy+half)
				set.Points = append(set.Points, cx, cy)
				set.Strides = append(set.Strides, stride)
			}
		}
		set.PerScale = append(set.PerScale, fs.Height*fs.Width)
	}
	return set, nil
}

// GenerateEval builds the inference-time anchor points. Points are in
// grid units (not multiplied by the stride); the decoded boxes are
// rescaled by the returned stride vector instead.
func GenerateEval(specs []FeatureMapSpec, cellOffset float32) (points, strides []float32, err error) {
	if err := validate(specs); err != nil {
		return nil, nil, err
	}

	for _, fs := range specs {
		for y := 0; y < fs.Height; y++ {
			for x := 0; x < fs.Width; x++ {
				points = append(points, float32(x)+cellOffset, float32(y)+cellOffset)
				strides = append(strides, float32(fs.Stride))
			}
		}
	}
	return points, strides, nil
}
