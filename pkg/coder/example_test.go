package coder_test

import (
	"fmt"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// ExampleCoder shows a two-frame stream coded by one encoder and one decoder
func ExampleCoder() {
	cfg := coder.DefaultConfig()
	enc, _ := coder.New(cfg)
	dec, _ := coder.New(cfg)

	frame := []symbol.Symbol{
		symbol.NewLuminance(128),
		symbol.NewMotionVector(2, -1),
		symbol.NewChrominance(-16),
	}

	for i := 0; i < 2; i++ {
		unit, err := enc.Encode(frame)
		if err != nil {
			fmt.Println("encode:", err)
			return
		}
		out, err := dec.Decode(unit, len(frame))
		if err != nil {
			fmt.Println("decode:", err)
			return
		}
		fmt.Printf("frame %d: %d symbols, %d eliminated\n", i, len(out), enc.LastStats().Eliminated)
	}
	// Output:
	// frame 0: 3 symbols, 0 eliminated
	// frame 1: 3 symbols, 3 eliminated
}
