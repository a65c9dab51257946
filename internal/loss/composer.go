package loss

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/kestrel-vision/detcore/internal/anchors"
	"github.com/kestrel-vision/detcore/internal/assign"
	"github.com/kestrel-vision/detcore/internal/compute"
	"github.com/kestrel-vision/detcore/internal/targets"
)

// cacheReleaseInterval is how often (in steps) the composer proactively
// returns pooled memory, independent of any exhaustion event.
const cacheReleaseInterval = 10

// Outputs is the raw head output for one step. Shapes lists (height,
// width) per detection scale in stride order; Scores holds post-sigmoid
// class scores (batch x anchors x classes); Dist holds either the
// per-side bin logits (batch x anchors x 4*(regMax+1)) or direct
// distances (batch x anchors x 4) depending on the configuration.
type Outputs struct {
	Shapes [][2]int
	Scores []float32
	Dist   []float32
}

// Breakdown is the detached per-term view of one step's loss, already
// scaled by the configured weights.
type Breakdown struct {
	IoU    float64
	DFL    float64
	Class  float64
	Gating float64
	// HasGating marks whether a gating regularization term was added.
	HasGating bool
}

// Vector returns the components in fixed order (iou, dfl, class, and
// gating when present) for logging.
func (b Breakdown) Vector() []float64 {
	v := []float64{b.IoU, b.DFL, b.Class}
	if b.HasGating {
		v = append(v, b.Gating)
	}
	return v
}

// Composer orchestrates one training step's loss: anchor generation,
// target preprocessing, box decoding, assignment (with host fallback on
// memory exhaustion) and the weighted loss terms.
type Composer struct {
	cfg    Config
	ctx    compute.Context
	host   compute.Context
	warmup *assign.Warmup
	formal *assign.Formal
	vfl    Varifocal
	box    BoxLoss
}

// NewComposer validates cfg and binds the composer to a compute
// context. The context is the seam the out-of-memory recovery path runs
// through; pass compute.Host{} when no accelerator is involved.
func NewComposer(cfg Config, ctx compute.Context) (*Composer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = compute.Host{}
	}
	return &Composer{
		cfg:    cfg,
		ctx:    ctx,
		host:   compute.Host{},
		warmup: assign.NewWarmup(cfg.WarmupTopK, cfg.NumClasses),
		formal: assign.NewFormal(cfg.FormalTopK, cfg.NumClasses, cfg.FormalAlpha, cfg.FormalBeta),
		vfl:    NewVarifocal(),
		box:    BoxLoss{Variant: cfg.IoUVariant, RegMax: cfg.RegMax, UseDFL: cfg.UseDFL},
	}, nil
}

// Compute runs one training step. epoch selects the assignment
// strategy; step drives the periodic cache release; gating, when
// non-nil, carries one flattened gate-decision vector per sample whose
// mean (scaled by lambdaReg) is added as a regularization term.
//
// The returned total is the weighted scalar loss; the Breakdown is for
// logging only.
func (c *Composer) Compute(out Outputs, gts []targets.GroundTruth, epoch, step int, lambdaReg float64, gating [][]float32) (float64, Breakdown, error) {
	set, batchSize, err := c.prepare(out)
	if err != nil {
		return 0, Breakdown{}, err
	}
	nA := set.Count()
	nC := c.cfg.NumClasses

	tb, err := targets.Preprocess(gts, batchSize, float32(c.cfg.ImageSize))
	if err != nil {
		return 0, Breakdown{}, err
	}
	if gating != nil && len(gating) != batchSize {
		return 0, Breakdown{}, fmt.Errorf("loss: gating carries %d samples, batch has %d", len(gating), batchSize)
	}

	// Anchor points in stride units; decoded boxes in both unit systems.
	pointsS := make([]float32, nA*2)
	for a := 0; a < nA; a++ {
		pointsS[a*2] = set.Points[a*2] / set.Strides[a]
		pointsS[a*2+1] = set.Points[a*2+1] / set.Strides[a]
	}
	predBoxes := c.decodeBoxes(out.Dist, pointsS, batchSize, nA)
	predBoxesPix := make([]float32, len(predBoxes))
	for i := range predBoxes {
		predBoxesPix[i] = predBoxes[i] * set.Strides[(i/4)%nA]
	}

	res, err := c.assignWithFallback(epoch, &assign.Inputs{
		Anchors:    set,
		Targets:    tb,
		NumClasses: nC,
		PredScores: out.Scores,
		PredBoxes:  predBoxesPix,
	})
	if err != nil {
		return 0, Breakdown{}, err
	}

	// Amortized defragmentation, not an error response.
	if step%cacheReleaseInterval == 0 {
		c.ctx.ReleaseCache()
	}

	// Target boxes back into stride units for the regression terms.
	targetBoxes := make([]float32, len(res.Boxes))
	for i := range res.Boxes {
		targetBoxes[i] = res.Boxes[i] / set.Strides[(i/4)%nA]
	}

	var scoresSum float64
	for _, s := range res.Scores {
		scoresSum += float64(s)
	}

	clsLoss := c.vfl.Loss(out.Scores, res.Scores, res.Labels, nC)
	if scoresSum > c.cfg.ScoreSumFloor {
		clsLoss /= scoresSum
	}

	iouLoss, dflLoss := c.box.Compute(out.Dist, predBoxes, targetBoxes, pointsS, res, scoresSum, c.cfg.ScoreSumFloor)

	w := c.cfg.Weights
	bd := Breakdown{
		IoU:   w.IoU * iouLoss,
		DFL:   w.DFL * dflLoss,
		Class: w.Class * clsLoss,
	}
	total := bd.IoU + bd.DFL + bd.Class

	if gating != nil {
		var batchMean float64
		for _, g := range gating {
			var m float64
			for _, v := range g {
				m += float64(v)
			}
			if len(g) > 0 {
				m /= float64(len(g))
			}
			batchMean += m
		}
		batchMean /= float64(len(gating))
		bd.Gating = batchMean * lambdaReg
		bd.HasGating = true
		total += bd.Gating
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, bd, fmt.Errorf("loss: non-finite total (iou=%g dfl=%g class=%g)", bd.IoU, bd.DFL, bd.Class)
	}
	return total, bd, nil
}

// prepare validates the head output against the configuration and
// generates the step's anchor set.
func (c *Composer) prepare(out Outputs) (*anchors.Set, int, error) {
	if len(out.Shapes) != len(c.cfg.Strides) {
		return nil, 0, fmt.Errorf("loss: %d feature maps for %d configured strides", len(out.Shapes), len(c.cfg.Strides))
	}
	specs := make([]anchors.FeatureMapSpec, len(out.Shapes))
	for i, s := range out.Shapes {
		specs[i] = anchors.FeatureMapSpec{Height: s[0], Width: s[1], Stride: c.cfg.Strides[i]}
	}
	set, err := anchors.Generate(specs, c.cfg.GridCellSize, c.cfg.GridCellOffset)
	if err != nil {
		return nil, 0, err
	}

	nA := set.Count()
	nC := c.cfg.NumClasses
	if len(out.Scores) == 0 || len(out.Scores)%(nA*nC) != 0 {
		return nil, 0, fmt.Errorf("loss: score tensor of %d values does not divide into %d anchors x %d classes", len(out.Scores), nA, nC)
	}
	batchSize := len(out.Scores) / (nA * nC)

	distWidth := 4
	if c.cfg.UseDFL {
		distWidth = 4 * (c.cfg.RegMax + 1)
	}
	if len(out.Dist) != batchSize*nA*distWidth {
		return nil, 0, fmt.Errorf("loss: regression tensor has %d values, want %d", len(out.Dist), batchSize*nA*distWidth)
	}
	return set, batchSize, nil
}

// decodeBoxes turns the regression output into corner boxes in stride
// units: the expected value of each side's softmaxed bin distribution
// (or the raw distances without distribution regression) projected
// through the anchor point.
func (c *Composer) decodeBoxes(dist, pointsS []float32, batchSize, nA int) []float32 {
	boxes := make([]float32, batchSize*nA*4)
	bins := c.cfg.RegMax + 1
	for i := 0; i < batchSize*nA; i++ {
		a := i % nA
		var d [4]float32
		if c.cfg.UseDFL {
			for s := 0; s < 4; s++ {
				logits := dist[(i*4+s)*bins : (i*4+s+1)*bins]
				d[s] = expectedBin(logits)
			}
		} else {
			copy(d[:], dist[i*4:i*4+4])
		}
		px, py := pointsS[a*2], pointsS[a*2+1]
		boxes[i*4+0] = px - d[0]
		boxes[i*4+1] = py - d[1]
		boxes[i*4+2] = px + d[2]
		boxes[i*4+3] = py + d[3]
	}
	return boxes
}

// expectedBin is the softmax-weighted mean bin index.
func expectedBin(logits []float32) float32 {
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var norm, mean float64
	for k, v := range logits {
		e := math.Exp(float64(v - maxv))
		norm += e
		mean += e * float64(k)
	}
	return float32(mean / norm)
}

// assignWithFallback runs the epoch-selected assigner on the primary
// context and retries once on the host when the primary reports memory
// exhaustion. Any failure on the host path is fatal.
func (c *Composer) assignWithFallback(epoch int, in *assign.Inputs) (*assign.Result, error) {
	var asgn assign.Assigner = c.formal
	if epoch < c.cfg.WarmupEpochs {
		asgn = c.warmup
	}

	res, err := asgn.Assign(c.ctx, in)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, compute.ErrResourceExhausted) {
		return nil, err
	}

	log.Printf("loss: assignment exhausted %s memory, retrying this batch on %s (reduce batch or image size to avoid)",
		c.ctx.Name(), c.host.Name())
	c.ctx.ReleaseCache()

	hostIn := *in
	hostIn.PredScores = c.ctx.ToHost(in.PredScores)
	hostIn.PredBoxes = c.ctx.ToHost(in.PredBoxes)
	res, err = asgn.Assign(c.host, &hostIn)
	if err != nil {
		return nil, fmt.Errorf("loss: host fallback assignment failed: %w", err)
	}

	// Relocate the assignment back to the primary context.
	res.Boxes = c.ctx.ToDevice(res.Boxes)
	res.Scores = c.ctx.ToDevice(res.Scores)
	return res, nil
}
