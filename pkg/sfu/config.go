package sfu

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultBWEChangeThresholdPct     = 15
	defaultThumbnailMaxHeight        = 180
	defaultOnstagePreferredHeight    = 360
	defaultOnstagePreferredFrameRate = 30.0
)

type Config struct {
	Allocation AllocationConfig `toml:"allocation"`
}

// AllocationConfig tunes the bitrate allocator. When loaded through
// LoadConfig, keys absent from the file keep the defaults above; a key set
// explicitly to zero stays zero.
type AllocationConfig struct {
	// BWEChangeThresholdPct is the minimum relative change (%) of the last
	// reacted-to estimate that triggers a re-allocation.
	BWEChangeThresholdPct int `toml:"bwechangethreshold"`
	// ThumbnailMaxHeight caps the candidate layers of sources that are not
	// on stage.
	ThumbnailMaxHeight int `toml:"thumbnailmaxheight"`
	// OnstagePreferredHeight is the height up to which an on-stage source is
	// served before lower-priority sources may climb past their own
	// preferred quality.
	OnstagePreferredHeight int `toml:"onstagepreferredheight"`
	// OnstagePreferredFrameRate is the minimum frame rate admitted for
	// on-stage layers above the preferred height.
	OnstagePreferredFrameRate float64 `toml:"onstagepreferredframerate"`
	// TrustBWE enables using the bandwidth estimate as the allocation cap.
	TrustBWE bool `toml:"trustbwe"`
	// EnableQualityLog retains per-cycle allocation records in memory.
	EnableQualityLog bool `toml:"qualitylog"`
}

func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		BWEChangeThresholdPct:     defaultBWEChangeThresholdPct,
		ThumbnailMaxHeight:        defaultThumbnailMaxHeight,
		OnstagePreferredHeight:    defaultOnstagePreferredHeight,
		OnstagePreferredFrameRate: defaultOnstagePreferredFrameRate,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{Allocation: DefaultAllocationConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
