package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode is the canonical encoder used for image payloads, so the
// same program always produces the same bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// imageRef values for the Ref field of imageInstr. Region references
// travel by name so an image stays readable when the reader assigns
// different store indices.
const imageBackRef = "$"

// imageProgram is the CBOR payload of an image file.
type imageProgram struct {
	Regions    []imageRegion `cbor:"1,keyasint"`
	Procs      []imageProc   `cbor:"2,keyasint"`
	SourceHash string        `cbor:"3,keyasint,omitempty"`
}

// imageRegion is one region declaration.
type imageRegion struct {
	Name string `cbor:"1,keyasint"`
	Size int    `cbor:"2,keyasint"`
}

// imageProc is one linked procedure.
type imageProc struct {
	Name string       `cbor:"1,keyasint"`
	Body []imageInstr `cbor:"2,keyasint"`
}

// imageInstr mirrors Instr with every reference by name: Ref is empty
// for no operand, "$" for the back reference, or a region name; Proc is
// the callee name for calls; Body carries loop and anonymous bodies.
type imageInstr struct {
	Op   byte         `cbor:"1,keyasint"`
	Arg  int          `cbor:"2,keyasint,omitempty"`
	Ref  string       `cbor:"3,keyasint,omitempty"`
	Proc string       `cbor:"4,keyasint,omitempty"`
	Body []imageInstr `cbor:"5,keyasint,omitempty"`
}
