// Package sentiment blends market sentiment from several sources into one composite
// score and degrades through a priority fallback chain when the blend cannot run.
package sentiment

import (
	"context"
	"errors"
)

// Source names as they appear in SentimentReading.Sources.
const (
	SourceSocial     = "social"
	SourceNews       = "news"
	SourceOnchain    = "onchain"
	SourceHistorical = "historical"
)

var (
	ErrSourceUnavailable      = errors.New("sentiment source unavailable")
	ErrInsufficientConfidence = errors.New("sentiment confidence below minimum")
	ErrPipelineDown           = errors.New("sentiment pipeline not ready")
)

// Sample is one source reading: a 0-100 score and the number of samples or items behind it.
type Sample struct {
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Source fetches a raw sentiment sample. A returned error excludes the source from the blend.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Sample, error)
}

// WeightedSource pairs a source with its blend weight.
type WeightedSource struct {
	Source Source
	Weight float64
}

// Probe reports whether the primary blending pipeline can run.
type Probe interface {
	Ready(ctx context.Context) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context) (Sample, error)
}

func (f SourceFunc) Name() string { return f.SourceName }

func (f SourceFunc) Fetch(ctx context.Context) (Sample, error) { return f.Fn(ctx) }
