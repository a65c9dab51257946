// Package targets reshapes the flat ground-truth stream from the data
// pipeline into the padded per-image form the assigners consume.
package targets

import (
	"fmt"

	"github.com/kestrel-vision/detcore/internal/boxgeom"
)

// PadClass marks a padding row: a slot that carries no object.
const PadClass = -1

// GroundTruth is one annotation row as ingested: a class and a
// center-form box in normalized image coordinates.
type GroundTruth struct {
	ImageIndex int
	Class      int
	CX, CY     float32
	W, H       float32
}

// Batch is the padded per-image view of a batch's annotations. Every
// image owns MaxGT slots; slots beyond an image's real annotations hold
// PadClass and a zero box, and Mask is false for them.
type Batch struct {
	BatchSize int
	MaxGT     int

	// Labels holds BatchSize*MaxGT class ids (PadClass for padding).
	Labels []int
	// Boxes holds BatchSize*MaxGT corner boxes in absolute pixels,
	// length 4*BatchSize*MaxGT.
	Boxes []float32
	// Mask is true for rows that carry a real object.
	Mask []bool
}

// Label returns the class id of slot g in image b.
func (t *Batch) Label(b, g int) int { return t.Labels[b*t.MaxGT+g] }

// Box returns the corner box of slot g in image b.
func (t *Batch) Box(b, g int) boxgeom.Box {
	i := (b*t.MaxGT + g) * 4
	return boxgeom.Box{X1: t.Boxes[i], Y1: t.Boxes[i+1], X2: t.Boxes[i+2], Y2: t.Boxes[i+3]}
}

// Valid reports whether slot g in image b holds a real object.
func (t *Batch) Valid(b, g int) bool { return t.Mask[b*t.MaxGT+g] }

// NumValid counts the real objects in image b.
func (t *Batch) NumValid(b int) int {
	n := 0
	for g := 0; g < t.MaxGT; g++ {
		if t.Mask[b*t.MaxGT+g] {
			n++
		}
	}
	return n
}

// Preprocess groups rows by image, pads every image to the largest
// per-image count (at least one slot) and converts boxes from
// normalized center form to absolute-pixel corner form using scale as
// the reference image size. Rows referencing an image outside
// [0, batchSize) are a caller contract violation and fail immediately.
func Preprocess(rows []GroundTruth, batchSize int, scale float32) (*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("targets: invalid batch size %d", batchSize)
	}

	perImage := make([][]GroundTruth, batchSize)
	for i, r := range rows {
		if r.ImageIndex < 0 || r.ImageIndex >= batchSize {
			return nil, fmt.Errorf("targets: row %d references image %d outside batch of %d", i, r.ImageIndex, batchSize)
		}
		perImage[r.ImageIndex] = append(perImage[r.ImageIndex], r)
	}

	maxGT := 1
	for _, im := range perImage {
		if len(im) > maxGT {
			maxGT = len(im)
		}
	}

	out := &Batch{
		BatchSize: batchSize,
		MaxGT:     maxGT,
		Labels:    make([]int, batchSize*maxGT),
		Boxes:     make([]float32, batchSize*maxGT*4),
		Mask:      make([]bool, batchSize*maxGT),
	}

	for b, im := range perImage {
		for g := 0; g < maxGT; g++ {
			slot := b*maxGT + g
			if g >= len(im) {
				out.Labels[slot] = PadClass
				continue
			}
			r := im[g]
			box := boxgeom.XYWHToXYXY(boxgeom.Box{
				X1: r.CX * scale,
				Y1: r.CY * scale,
				X2: r.W * scale,
				Y2: r.H * scale,
			})
			out.Labels[slot] = r.Class
			out.Boxes[slot*4+0] = box.X1
			out.Boxes[slot*4+1] = box.Y1
			out.Boxes[slot*4+2] = box.X2
			out.Boxes[slot*4+3] = box.Y2
			// Same emptiness test the assigners use: a row counts only
			// if its box has nonzero extent.
			out.Mask[slot] = box.X1+box.Y1+box.X2+box.Y2 > 0
		}
	}
	return out, nil
}
