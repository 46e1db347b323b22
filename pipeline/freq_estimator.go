package pipeline

// FreqEstimator is a PI controller turning the distance between measured
// and target latency into a clock scaling factor for the resampler.
type FreqEstimator struct {
	cfg      FreqEstimatorConfig
	target   float64
	integral float64
	scaling  float64
}

// NewFreqEstimator creates an estimator driving latency towards target
// samples.
func NewFreqEstimator(cfg FreqEstimatorConfig, target int64) *FreqEstimator {
	return &FreqEstimator{cfg: cfg, target: float64(target), scaling: 1}
}

// Update feeds a latency measurement and returns the new scaling. Latency
// above target yields a scaling above 1, which consumes input faster.
func (f *FreqEstimator) Update(latency int64) float64 {
	e := float64(latency) - f.target
	f.integral += e

	s := 1 + f.cfg.P*e + f.cfg.I*f.integral
	lo, hi := 1-f.cfg.MaxScalingDelta, 1+f.cfg.MaxScalingDelta
	switch {
	case s < lo:
		s = lo
		f.integral -= e
	case s > hi:
		s = hi
		f.integral -= e
	}
	f.scaling = s
	return s
}

// Scaling returns the last computed scaling.
func (f *FreqEstimator) Scaling() float64 {
	return f.scaling
}
