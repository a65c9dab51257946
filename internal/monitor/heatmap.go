package monitor

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kestrel-vision/detcore/internal/anchors"
	"github.com/kestrel-vision/detcore/internal/assign"
)

// fgGrid exposes one scale's foreground counts as a plottable grid.
type fgGrid struct {
	w, h   int
	counts []float64
}

func (g *fgGrid) Dims() (int, int)   { return g.w, g.h }
func (g *fgGrid) Z(c, r int) float64 { return g.counts[r*g.w+c] }
func (g *fgGrid) X(c int) float64    { return float64(c) }
func (g *fgGrid) Y(r int) float64    { return float64(r) }

// SaveForegroundHeatmap renders how many images in the batch assigned a
// foreground target to each cell of one detection scale, and saves the
// plot as an image file (format chosen by the path extension). A
// lopsided map is the quickest way to spot an assigner misbehaving.
func SaveForegroundHeatmap(path string, set *anchors.Set, specs []anchors.FeatureMapSpec, res *assign.Result, scale int) error {
	if scale < 0 || scale >= len(set.PerScale) || scale >= len(specs) {
		return fmt.Errorf("monitor: scale %d out of range", scale)
	}

	offset := 0
	for i := 0; i < scale; i++ {
		offset += set.PerScale[i]
	}
	w, h := specs[scale].Width, specs[scale].Height
	grid := &fgGrid{w: w, h: h, counts: make([]float64, w*h)}

	for b := 0; b < res.BatchSize; b++ {
		for i := 0; i < set.PerScale[scale]; i++ {
			if res.Foreground[b*res.Anchors+offset+i] {
				grid.counts[i]++
			}
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("foreground density, scale %d (stride %d)", scale, specs[scale].Stride)
	p.X.Label.Text = "cell x"
	p.Y.Label.Text = "cell y"

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch*vg.Length(h)/vg.Length(w), path); err != nil {
		return fmt.Errorf("monitor: save heatmap: %w", err)
	}
	return nil
}
