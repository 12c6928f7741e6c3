// Package predictor implements the neural next-symbol predictor.
//
// The predictor is a pure function of a bounded context window and a vector
// of recency weights (the reduced form of a cortical feedback matrix). The
// weights are adapted once per frame with a normalized LMS rule, so encoder
// and decoder that see the same frames hold the same weights.
package predictor

import (
	"fmt"
	"math"

	"github.com/ssargent/biocoder/pkg/quant"
	"github.com/ssargent/biocoder/pkg/symbol"
)

const (
	minWeight = 0.01
	maxWeight = 1.0
	// initialDecay shapes the starting recency weights as initialDecay^j
	initialDecay = 0.7
)

// Predictor predicts the next symbol from recent history
type Predictor struct {
	weights []float64
	rate    float64
}

// New creates a predictor looking back at most window symbols
func New(window int, rate float64) (*Predictor, error) {
	if window < 1 {
		return nil, fmt.Errorf("predictor window must be positive, got %d", window)
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("predictor rate must be in [0, 1], got %g", rate)
	}

	w := make([]float64, window)
	v := 1.0
	for j := range w {
		w[j] = math.Max(minWeight, v)
		v *= initialDecay
	}
	return &Predictor{weights: w, rate: rate}, nil
}

// Window returns the context length the predictor looks at
func (p *Predictor) Window() int { return len(p.weights) }

// Weights returns a copy of the recency weights
func (p *Predictor) Weights() []float64 {
	return append([]float64(nil), p.weights...)
}

// Clone returns an independent copy
func (p *Predictor) Clone() *Predictor {
	return &Predictor{weights: p.Weights(), rate: p.rate}
}

// Neutral is the prediction returned for an empty context
func Neutral() symbol.Symbol {
	return symbol.NewLuminance(0)
}

// PredictNext predicts the symbol following context. Only the last Window()
// symbols are considered. The predicted kind is the kind of the newest symbol
// and each component is the weighted mean of the same-kind values in the
// window, weights indexed by recency.
func (p *Predictor) PredictNext(context []symbol.Symbol) symbol.Symbol {
	if len(context) == 0 {
		return Neutral()
	}
	if len(context) > len(p.weights) {
		context = context[len(context)-len(p.weights):]
	}

	kind := context[len(context)-1].Kind
	var sumW, sumX, sumY float64
	for j := 0; j < len(context); j++ {
		s := context[len(context)-1-j]
		if s.Kind != kind {
			continue
		}
		sumW += p.weights[j]
		sumX += p.weights[j] * s.X
		sumY += p.weights[j] * s.Y
	}

	out := symbol.Symbol{Kind: kind, X: sumX / sumW}
	if kind == symbol.MotionVector {
		out.Y = sumY / sumW
	}
	return out
}

// UpdateFromSymbols adapts the recency weights to a frame. Each symbol is
// predicted from the symbols before it in the frame; the error moves every
// weight in proportion to how far its sample sat from the prediction.
func (p *Predictor) UpdateFromSymbols(symbols []symbol.Symbol) {
	if p.rate == 0 {
		return
	}
	for i := 1; i < len(symbols); i++ {
		start := i - len(p.weights)
		if start < 0 {
			start = 0
		}
		context := symbols[start:i]
		actual := symbols[i]
		pred := p.PredictNext(context)
		if pred.Kind != actual.Kind {
			continue
		}
		p.adapt(context, pred, actual)
	}
}

func (p *Predictor) adapt(context []symbol.Symbol, pred, actual symbol.Symbol) {
	kind := actual.Kind
	errX := actual.X - pred.X
	errY := actual.Y - pred.Y

	var sumW, norm float64
	grads := make([]float64, len(context))
	for j := 0; j < len(context); j++ {
		s := context[len(context)-1-j]
		if s.Kind != kind {
			continue
		}
		sumW += p.weights[j]
		g := (s.X-pred.X)*errX + (s.Y-pred.Y)*errY
		grads[j] = g
		dx, dy := s.X-pred.X, s.Y-pred.Y
		norm += dx*dx + dy*dy
	}
	if sumW == 0 || norm == 0 {
		return
	}

	for j, g := range grads {
		if g == 0 {
			continue
		}
		w := p.weights[j] + p.rate*g/norm
		p.weights[j] = math.Max(minWeight, math.Min(maxWeight, w))
	}
}

// Hit reports whether pred matches actual: same kind and every component index
// within max(1, levels/256) of the actual index.
func Hit(pred, actual symbol.Symbol, q *quant.Table) bool {
	if pred.Kind != actual.Kind {
		return false
	}
	tol := q.Levels() / 256
	if tol < 1 {
		tol = 1
	}
	pi := q.Indices(pred)
	ai := q.Indices(actual)
	for j := range ai {
		d := pi[j] - ai[j]
		if d < 0 {
			d = -d
		}
		if d > tol {
			return false
		}
	}
	return true
}
