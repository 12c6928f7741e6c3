package codec_test

import (
	"errors"
	"fmt"
	"log"

	"github.com/ssargent/biocoder/pkg/codec"
)

// ExampleUnitCodec demonstrates framing and unframing a payload
func ExampleUnitCodec() {
	uc := codec.NewUnitCodec()

	framed, err := uc.Encode(3, []byte{0x9c, 0x41, 0x07})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Encoded %d bytes\n", len(framed))

	unit, err := uc.Decode(framed)
	if err != nil {
		log.Fatal(err)
	}
	if err := unit.Validate(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Symbols: %d\n", unit.SymbolCount)
	fmt.Printf("Payload: % x\n", unit.Payload)

	// Output:
	// Encoded 23 bytes
	// Symbols: 3
	// Payload: 9c 41 07
}

// ExampleUnit_Validate demonstrates corruption detection
func ExampleUnit_Validate() {
	uc := codec.NewUnitCodec()
	framed, _ := uc.Encode(2, []byte{0x01, 0x02})

	framed[len(framed)-1] ^= 0xff

	unit, _ := uc.Decode(framed)
	err := unit.Validate()
	fmt.Println(errors.Is(err, codec.ErrCorrupt))

	// Output:
	// true
}

// ExampleUnitCodec_errorHandling demonstrates short input handling
func ExampleUnitCodec_errorHandling() {
	uc := codec.NewUnitCodec()

	_, err := uc.Decode([]byte{0x01, 0x02, 0x03})
	fmt.Println(errors.Is(err, codec.ErrShortUnit))

	// Output:
	// true
}
