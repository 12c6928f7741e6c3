// Package symbol defines the typed visual symbols handled by the entropy coder.
//
// A Symbol is a closed tagged union over six kinds. Every kind carries one
// scalar except MotionVector, which carries two. Symbols are small values and
// are passed and compared by value.
package symbol

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the variant of a Symbol
type Kind uint8

const (
	Luminance Kind = iota
	Chrominance
	MotionVector
	TransformCoeff
	PredictionResidual
	BiologicalFeature
)

// NumKinds is the size of the kind alphabet
const NumKinds = 6

var kindNames = [NumKinds]string{
	"luminance",
	"chrominance",
	"motion_vector",
	"transform_coeff",
	"prediction_residual",
	"biological_feature",
}

// String returns the wire name of the kind
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the six defined kinds
func (k Kind) Valid() bool {
	return k < NumKinds
}

// Components returns how many scalar components a symbol of this kind carries
func (k Kind) Components() int {
	if k == MotionVector {
		return 2
	}
	return 1
}

// ParseKind converts a wire name back to a Kind
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown symbol kind %q", name)
}

// Symbol is one atomic unit of visual-processing output.
// Y is only meaningful for MotionVector and is zero otherwise.
type Symbol struct {
	Kind Kind
	X    float64
	Y    float64
}

// NewLuminance creates a luminance sample
func NewLuminance(v float64) Symbol { return Symbol{Kind: Luminance, X: v} }

// NewChrominance creates a chrominance sample
func NewChrominance(v float64) Symbol { return Symbol{Kind: Chrominance, X: v} }

// NewMotionVector creates a motion vector
func NewMotionVector(x, y float64) Symbol { return Symbol{Kind: MotionVector, X: x, Y: y} }

// NewTransformCoeff creates a transform coefficient
func NewTransformCoeff(v float64) Symbol { return Symbol{Kind: TransformCoeff, X: v} }

// NewPredictionResidual creates a prediction residual
func NewPredictionResidual(v float64) Symbol { return Symbol{Kind: PredictionResidual, X: v} }

// NewBiologicalFeature creates a derived biological feature
func NewBiologicalFeature(v float64) Symbol { return Symbol{Kind: BiologicalFeature, X: v} }

// Value returns the scalar value of a single-component symbol (X for motion vectors)
func (s Symbol) Value() float64 {
	return s.X
}

// Component returns the i-th scalar component (0 = X, 1 = Y)
func (s Symbol) Component(i int) float64 {
	if i == 1 {
		return s.Y
	}
	return s.X
}

// WithComponent returns a copy of s with component i replaced
func (s Symbol) WithComponent(i int, v float64) Symbol {
	if i == 1 {
		s.Y = v
	} else {
		s.X = v
	}
	return s
}

func (s Symbol) String() string {
	if s.Kind == MotionVector {
		return fmt.Sprintf("%s(%g,%g)", s.Kind, s.X, s.Y)
	}
	return fmt.Sprintf("%s(%g)", s.Kind, s.X)
}

// wireSymbol is the JSON form of a Symbol
type wireSymbol struct {
	Kind  string   `json:"kind"`
	Value *float64 `json:"value,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
}

// MarshalJSON encodes single-component symbols as {"kind","value"} and
// motion vectors as {"kind","x","y"}
func (s Symbol) MarshalJSON() ([]byte, error) {
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("cannot marshal symbol with %s", s.Kind)
	}
	w := wireSymbol{Kind: s.Kind.String()}
	if s.Kind == MotionVector {
		x, y := s.X, s.Y
		w.X, w.Y = &x, &y
	} else {
		v := s.X
		w.Value = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (s *Symbol) UnmarshalJSON(data []byte) error {
	var w wireSymbol
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := ParseKind(w.Kind)
	if err != nil {
		return err
	}

	*s = Symbol{Kind: kind}
	if kind == MotionVector {
		if w.X == nil || w.Y == nil {
			return fmt.Errorf("motion_vector requires x and y")
		}
		s.X, s.Y = *w.X, *w.Y
		return nil
	}
	if w.Value == nil {
		return fmt.Errorf("%s requires value", kind)
	}
	s.X = *w.Value
	return nil
}

// CountKind returns how many symbols in syms have kind k
func CountKind(syms []Symbol, k Kind) int {
	n := 0
	for _, s := range syms {
		if s.Kind == k {
			n++
		}
	}
	return n
}
