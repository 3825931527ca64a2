package model

import "learnedkv/pkg/common"

// LinearModel is a least-squares fit of key -> sorted position, trained
// incrementally via running sums so a single additional point never
// requires revisiting the whole sample.
type LinearModel struct {
	Slope     float64
	Intercept float64
	n         float64
	sumX      float64
	sumY      float64
	sumXY     float64
	sumXX     float64
}

func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

// TrainWithPos fits the model against explicit (key, position) pairs, used
// when the positions are not simply 0..len(keys)-1 (e.g. a model bucket
// trained against its keys' indices in the full, globally sorted set).
func (lm *LinearModel) TrainWithPos(keys []common.Key, positions []int) {
	lm.n, lm.sumX, lm.sumY, lm.sumXY, lm.sumXX = 0, 0, 0, 0, 0
	for i, key := range keys {
		x := float64(key)
		y := float64(positions[i])
		lm.n++
		lm.sumX += x
		lm.sumY += y
		lm.sumXY += x * y
		lm.sumXX += x * x
	}
	lm.solve()
}

// Update folds one more (key, position) observation into the running fit.
func (lm *LinearModel) Update(key common.Key, pos int) {
	x := float64(key)
	y := float64(pos)
	lm.n++
	lm.sumX += x
	lm.sumY += y
	lm.sumXY += x * y
	lm.sumXX += x * x
	lm.solve()
}

func (lm *LinearModel) solve() {
	denom := lm.n*lm.sumXX - lm.sumX*lm.sumX
	if denom == 0 {
		lm.Slope = 0
		lm.Intercept = 0
		return
	}
	lm.Slope = (lm.n*lm.sumXY - lm.sumX*lm.sumY) / denom
	lm.Intercept = (lm.sumY - lm.Slope*lm.sumX) / lm.n
}

// Predict returns the estimated sorted position of key. May be negative or
// beyond the trained range; callers clamp.
func (lm *LinearModel) Predict(key common.Key) int {
	return int(lm.Slope*float64(key) + lm.Intercept)
}
