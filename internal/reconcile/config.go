package reconcile

import (
	"fmt"
	"time"
)

// Config tunes identity resolution and candidate preparation. It is read-only after New.
type Config struct {
	DedupWindow              time.Duration
	TitleSimilarityThreshold float64
	MaxTitleLength           int
	MaxTagsCount             int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DedupWindow:              30 * time.Minute,
		TitleSimilarityThreshold: 0.85,
		MaxTitleLength:           500,
		MaxTagsCount:             10,
	}
}

// Validate rejects values the engine cannot work with.
func (c Config) Validate() error {
	if c.DedupWindow < 0 {
		return fmt.Errorf("dedup window must not be negative, got %s", c.DedupWindow)
	}
	if c.TitleSimilarityThreshold < 0 || c.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("title similarity threshold must be within [0,1], got %v", c.TitleSimilarityThreshold)
	}
	if c.MaxTitleLength < 0 || c.MaxTagsCount < 0 {
		return fmt.Errorf("length limits must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DedupWindow == 0 {
		c.DedupWindow = def.DedupWindow
	}
	if c.TitleSimilarityThreshold == 0 {
		c.TitleSimilarityThreshold = def.TitleSimilarityThreshold
	}
	if c.MaxTitleLength == 0 {
		c.MaxTitleLength = def.MaxTitleLength
	}
	if c.MaxTagsCount == 0 {
		c.MaxTagsCount = def.MaxTagsCount
	}
	return c
}
