package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// Image Format Constants
// ---------------------------------------------------------------------------

// ImageMagic is the magic number identifying a Caedan image file.
var ImageMagic = [4]byte{'C', 'A', 'E', 'D'}

// Image format version
// v1: initial format (header + canonical CBOR payload)
const ImageVersion uint32 = 1

// Image header size in bytes: magic(4) + version(4). The CBOR payload
// runs from the header to the end of the file.
const ImageHeaderSize = 8

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// SaveImage writes the linked program to an image file.
func (p *Program) SaveImage(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return p.SaveImageTo(f)
}

// SaveImageTo writes the linked program to a writer. The encoding is
// canonical, so the same program always produces identical bytes.
func (p *Program) SaveImageTo(w io.Writer) error {
	payload, err := cborEncMode.Marshal(p.toImage())
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(ImageMagic[:])
	binary.Write(&buf, binary.BigEndian, ImageVersion)
	buf.Write(payload)

	_, err = w.Write(buf.Bytes())
	return err
}

// toImage lowers the program into its wire form, turning region indices
// and procedure pointers back into names.
func (p *Program) toImage() *imageProgram {
	img := &imageProgram{
		Regions:    make([]imageRegion, len(p.Regions)),
		Procs:      make([]imageProc, len(p.Procs)),
		SourceHash: p.SourceHash,
	}
	for i, def := range p.Regions {
		img.Regions[i] = imageRegion{Name: def.Name, Size: def.Size}
	}
	for i, proc := range p.Procs {
		img.Procs[i] = imageProc{Name: proc.Name, Body: p.bodyToImage(proc.Body)}
	}
	return img
}

func (p *Program) bodyToImage(body []Instr) []imageInstr {
	out := make([]imageInstr, len(body))
	for i, in := range body {
		out[i] = imageInstr{
			Op:  byte(in.Op),
			Arg: in.Arg,
			Ref: p.refToImage(in.Ref),
		}
		if in.Proc != nil {
			out[i].Proc = in.Proc.Name
		}
		if in.Body != nil {
			out[i].Body = p.bodyToImage(in.Body)
		}
	}
	return out
}

func (p *Program) refToImage(ref Ref) string {
	switch ref.Kind {
	case RefBack:
		return imageBackRef
	case RefRegion:
		return p.Regions[ref.Region].Name
	default:
		return ""
	}
}
