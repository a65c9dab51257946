// Command losstune validates a loss-tuning overlay file and prints the
// effective configuration it produces over the defaults. Run it before
// a training job to catch a bad overlay without burning a GPU hour.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kestrel-vision/detcore/internal/config"
	"github.com/kestrel-vision/detcore/internal/loss"
)

func main() {
	path := flag.String("f", "loss-tuning.json", "path to the tuning overlay (missing file means defaults)")
	flag.Parse()

	tuning, err := config.Load(*path)
	if err != nil {
		log.Fatalf("losstune: %v", err)
	}
	cfg, err := tuning.Apply(loss.DefaultConfig())
	if err != nil {
		log.Fatalf("losstune: %v", err)
	}
	if _, err := loss.NewComposer(cfg, nil); err != nil {
		log.Fatalf("losstune: effective configuration rejected: %v", err)
	}

	fmt.Printf("strides          %v\n", cfg.Strides)
	fmt.Printf("grid cell        size=%g offset=%g\n", cfg.GridCellSize, cfg.GridCellOffset)
	fmt.Printf("classes          %d\n", cfg.NumClasses)
	fmt.Printf("image size       %d\n", cfg.ImageSize)
	fmt.Printf("warmup epochs    %d\n", cfg.WarmupEpochs)
	if cfg.UseDFL {
		fmt.Printf("regression       distribution, reg_max=%d\n", cfg.RegMax)
	} else {
		fmt.Printf("regression       direct distances\n")
	}
	fmt.Printf("iou variant      %s\n", cfg.IoUVariant)
	fmt.Printf("weights          class=%g iou=%g dfl=%g\n", cfg.Weights.Class, cfg.Weights.IoU, cfg.Weights.DFL)
	fmt.Printf("score sum floor  %g\n", cfg.ScoreSumFloor)
	fmt.Printf("assigners        warmup_topk=%d formal_topk=%d alpha=%g beta=%g\n",
		cfg.WarmupTopK, cfg.FormalTopK, cfg.FormalAlpha, cfg.FormalBeta)
}
