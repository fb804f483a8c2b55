package engine

import "math"

// thinSampleCap bounds the confidence of any decision whose sample is
// less than twice its rule minimum.
const thinSampleCap = 80

// Confidence scores a decision from 0 to 100.
//
// margin is how far the metric sits beyond its threshold, relative to the
// threshold. sample is the observed sample (spend, conversions,
// impressions) divided by the rule's minimum. The score is non-decreasing
// in both inputs and never exceeds thinSampleCap while sample < 2.
func Confidence(margin, sample float64) int {
	if math.IsNaN(margin) || margin < 0 {
		margin = 0
	}
	if math.IsNaN(sample) || sample < 0 {
		sample = 0
	}
	if math.IsInf(margin, 1) {
		margin = math.MaxFloat64
	}
	if math.IsInf(sample, 1) {
		sample = math.MaxFloat64
	}

	score := 100 * (0.5*(1-math.Exp(-3*margin)) + 0.5*(1-math.Exp(-sample)))
	c := int(math.Round(score))
	if sample < 2 && c > thinSampleCap {
		c = thinSampleCap
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// relativeMargin returns (value - threshold) / |threshold|, using 1 as
// the scale when the threshold is zero.
func relativeMargin(value, threshold float64) float64 {
	scale := math.Abs(threshold)
	if scale == 0 {
		scale = 1
	}
	return (value - threshold) / scale
}

func sampleRatio(observed, minimum float64) float64 {
	if minimum <= 0 {
		return observed
	}
	return observed / minimum
}
