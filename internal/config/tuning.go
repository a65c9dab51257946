// Package config loads and saves loss-tuning parameters. The JSON
// schema uses pointer fields so a file can override any subset of the
// defaults; absent fields leave the default in place.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kestrel-vision/detcore/internal/boxgeom"
	"github.com/kestrel-vision/detcore/internal/loss"
)

// LossTuning is the serializable view of a loss configuration.
type LossTuning struct {
	Strides        []int    `json:"strides,omitempty"`
	GridCellSize   *float64 `json:"grid_cell_size,omitempty"`
	GridCellOffset *float64 `json:"grid_cell_offset,omitempty"`
	NumClasses     *int     `json:"num_classes,omitempty"`
	ImageSize      *int     `json:"image_size,omitempty"`
	WarmupEpochs   *int     `json:"warmup_epochs,omitempty"`
	UseDFL         *bool    `json:"use_dfl,omitempty"`
	RegMax         *int     `json:"reg_max,omitempty"`
	IoUVariant     *string  `json:"iou_variant,omitempty"`
	ClassWeight    *float64 `json:"class_weight,omitempty"`
	IoUWeight      *float64 `json:"iou_weight,omitempty"`
	DFLWeight      *float64 `json:"dfl_weight,omitempty"`
	ScoreSumFloor  *float64 `json:"score_sum_floor,omitempty"`
	WarmupTopK     *int     `json:"warmup_topk,omitempty"`
	FormalTopK     *int     `json:"formal_topk,omitempty"`
}

// Load reads a tuning file. A missing file is not an error: it returns
// an empty overlay so callers fall back to defaults.
func Load(path string) (*LossTuning, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LossTuning{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var t LossTuning
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &t, nil
}

// Save writes the tuning overlay to path as indented JSON.
func (t *LossTuning) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Apply overlays the tuning's set fields onto cfg and returns the
// result.
func (t *LossTuning) Apply(cfg loss.Config) (loss.Config, error) {
	if len(t.Strides) > 0 {
		cfg.Strides = append([]int(nil), t.Strides...)
	}
	if t.GridCellSize != nil {
		cfg.GridCellSize = float32(*t.GridCellSize)
	}
	if t.GridCellOffset != nil {
		cfg.GridCellOffset = float32(*t.GridCellOffset)
	}
	if t.NumClasses != nil {
		cfg.NumClasses = *t.NumClasses
	}
	if t.ImageSize != nil {
		cfg.ImageSize = *t.ImageSize
	}
	if t.WarmupEpochs != nil {
		cfg.WarmupEpochs = *t.WarmupEpochs
	}
	if t.UseDFL != nil {
		cfg.UseDFL = *t.UseDFL
	}
	if t.RegMax != nil {
		cfg.RegMax = *t.RegMax
	}
	if t.IoUVariant != nil {
		v, err := boxgeom.ParseVariant(*t.IoUVariant)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		cfg.IoUVariant = v
	}
	if t.ClassWeight != nil {
		cfg.Weights.Class = *t.ClassWeight
	}
	if t.IoUWeight != nil {
		cfg.Weights.IoU = *t.IoUWeight
	}
	if t.DFLWeight != nil {
		cfg.Weights.DFL = *t.DFLWeight
	}
	if t.ScoreSumFloor != nil {
		cfg.ScoreSumFloor = *t.ScoreSumFloor
	}
	if t.WarmupTopK != nil {
		cfg.WarmupTopK = *t.WarmupTopK
	}
	if t.FormalTopK != nil {
		cfg.FormalTopK = *t.FormalTopK
	}
	return cfg, nil
}
