package loss

import (
	"fmt"

	"github.com/kestrel-vision/detcore/internal/boxgeom"
)

// Weights scales the three loss terms before they are summed.
type Weights struct {
	Class float64
	IoU   float64
	DFL   float64
}

// DefaultWeights returns the primary training preset.
func DefaultWeights() Weights { return Weights{Class: 1.3, IoU: 3.5, DFL: 0.5} }

// AltWeights returns the alternate preset some training recipes use.
func AltWeights() Weights { return Weights{Class: 1.0, IoU: 2.5, DFL: 0.5} }

// Config fixes a Composer's behavior at construction time. The same
// values must be supplied across runs for reproducible training.
type Config struct {
	// Strides lists the pixel stride of each detection scale, in the
	// same order the head emits feature maps.
	Strides []int
	// GridCellSize scales anchor boxes relative to the stride.
	GridCellSize float32
	// GridCellOffset shifts cell centers in grid units.
	GridCellOffset float32
	NumClasses     int
	// ImageSize is the reference square image size ground-truth
	// coordinates are normalized against.
	ImageSize int
	// WarmupEpochs selects the geometric assigner for epochs below it.
	WarmupEpochs int
	// UseDFL enables distribution regression with RegMax+1 bins per
	// box side; otherwise the head emits distances directly.
	UseDFL bool
	RegMax int
	// IoUVariant selects the overlap formulation of the box loss.
	IoUVariant boxgeom.Variant
	Weights    Weights
	// ScoreSumFloor gates normalization of the classification and box
	// losses: they divide by the summed soft targets only above it.
	ScoreSumFloor float64

	// Assigner shape. Zero values take the defaults below.
	WarmupTopK  int
	FormalTopK  int
	FormalAlpha float32
	FormalBeta  float32
}

// DefaultConfig returns the standard 640px / 80-class configuration.
func DefaultConfig() Config {
	return Config{
		Strides:        []int{8, 16, 32},
		GridCellSize:   5.0,
		GridCellOffset: 0.5,
		NumClasses:     80,
		ImageSize:      640,
		WarmupEpochs:   4,
		UseDFL:         true,
		RegMax:         16,
		IoUVariant:     boxgeom.VariantGIoU,
		Weights:        DefaultWeights(),
		ScoreSumFloor:  1.0,
		WarmupTopK:     9,
		FormalTopK:     13,
		FormalAlpha:    1.0,
		FormalBeta:     6.0,
	}
}

func (c *Config) validate() error {
	if len(c.Strides) == 0 {
		return fmt.Errorf("loss: no strides configured")
	}
	for i, s := range c.Strides {
		if s <= 0 {
			return fmt.Errorf("loss: stride %d is %d, must be positive", i, s)
		}
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("loss: invalid class count %d", c.NumClasses)
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("loss: invalid image size %d", c.ImageSize)
	}
	if c.UseDFL && c.RegMax <= 0 {
		return fmt.Errorf("loss: distribution regression needs a positive bin count, got %d", c.RegMax)
	}
	if c.WarmupEpochs < 0 {
		return fmt.Errorf("loss: negative warmup epoch count %d", c.WarmupEpochs)
	}
	if c.WarmupTopK == 0 {
		c.WarmupTopK = 9
	}
	if c.FormalTopK == 0 {
		c.FormalTopK = 13
	}
	if c.FormalAlpha == 0 {
		c.FormalAlpha = 1.0
	}
	if c.FormalBeta == 0 {
		c.FormalBeta = 6.0
	}
	return nil
}
