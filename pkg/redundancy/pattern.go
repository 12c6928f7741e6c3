package redundancy

import (
	"encoding/json"
	"fmt"

	"github.com/ssargent/biocoder/pkg/symbol"
)

// Pattern names the kind of redundancy an elided position exploited
type Pattern uint8

const (
	Spatial Pattern = iota
	Temporal
	Chromatic
	Motion
	Cortical
	Synaptic
)

// NumPatterns is the number of defined patterns
const NumPatterns = 6

var patternNames = [NumPatterns]string{
	"spatial",
	"temporal",
	"chromatic",
	"motion",
	"cortical",
	"synaptic",
}

func (p Pattern) String() string {
	if p >= NumPatterns {
		return fmt.Sprintf("pattern(%d)", uint8(p))
	}
	return patternNames[p]
}

// Classify maps the kind of a memory slot to the pattern an elision of that
// slot represents. Transform coefficients carry spatial structure and
// prediction residuals what the synaptic model failed to anticipate.
func Classify(k symbol.Kind) Pattern {
	switch k {
	case symbol.Luminance:
		return Temporal
	case symbol.Chrominance:
		return Chromatic
	case symbol.MotionVector:
		return Motion
	case symbol.TransformCoeff:
		return Spatial
	case symbol.PredictionResidual:
		return Synaptic
	default:
		return Cortical
	}
}

// Counts tallies elided positions per pattern. It marshals as an object keyed
// by pattern name with zero entries omitted.
type Counts [NumPatterns]int

// Add records one elision of pattern p
func (c *Counts) Add(p Pattern) {
	if p < NumPatterns {
		c[p]++
	}
}

// Total returns the sum over all patterns
func (c Counts) Total() int {
	var n int
	for _, v := range c {
		n += v
	}
	return n
}

func (c Counts) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, NumPatterns)
	for p, v := range c {
		if v != 0 {
			m[patternNames[p]] = v
		}
	}
	return json.Marshal(m)
}

func (c *Counts) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*c = Counts{}
	for name, v := range m {
		p, ok := parsePattern(name)
		if !ok {
			return fmt.Errorf("unknown redundancy pattern %q", name)
		}
		c[p] = v
	}
	return nil
}

func parsePattern(name string) (Pattern, bool) {
	for i, n := range patternNames {
		if n == name {
			return Pattern(i), true
		}
	}
	return 0, false
}
