package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonasKaplan/Caedan/compiler"
	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Image Error Types
// ---------------------------------------------------------------------------

var (
	ErrInvalidMagic    = errors.New("invalid magic number: expected CAED")
	ErrVersionMismatch = errors.New("image version mismatch")
	ErrCorruptHeader   = errors.New("corrupt image header")
	ErrCorruptData     = errors.New("corrupt image data")
)

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// LoadImage reads a linked program from an image file.
func LoadImage(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadImageFrom(f)
}

// LoadImageFrom reads a linked program from a reader.
func LoadImageFrom(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return LoadImageFromBytes(data)
}

// LoadImageFromBytes reads a linked program from a byte slice. Everything
// the payload references is re-resolved and validated, so a program that
// loads cannot fail a name lookup at run time any more than a freshly
// compiled one can.
func LoadImageFromBytes(data []byte) (*Program, error) {
	if len(data) < ImageHeaderSize {
		return nil, ErrCorruptHeader
	}

	magic := string(data[:4])
	if magic != string(ImageMagic[:]) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}

	version := binary.BigEndian.Uint32(data[4:8])
	if version != ImageVersion {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, ImageVersion, version)
	}

	var img imageProgram
	if err := cbor.Unmarshal(data[ImageHeaderSize:], &img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}

	return programFromImage(&img)
}

// programFromImage re-links the wire form. It is the image counterpart of
// link: allocate every region and procedure first, then resolve bodies.
func programFromImage(img *imageProgram) (*Program, error) {
	ln := &linker{
		regions: make(map[string]int, len(img.Regions)),
		procs:   make(map[string]*Proc, len(img.Procs)),
	}

	out := &Program{
		Regions:    make([]RegionDef, len(img.Regions)),
		Procs:      make([]*Proc, len(img.Procs)),
		SourceHash: img.SourceHash,
	}

	for i, r := range img.Regions {
		if r.Size < 1 {
			return nil, fmt.Errorf("%w: region %q has size %d", ErrCorruptData, r.Name, r.Size)
		}
		if _, ok := ln.regions[r.Name]; ok {
			return nil, fmt.Errorf("%w: region %q declared twice", ErrCorruptData, r.Name)
		}
		out.Regions[i] = RegionDef{Name: r.Name, Size: r.Size}
		ln.regions[r.Name] = i
	}

	for i, p := range img.Procs {
		if _, ok := ln.procs[p.Name]; ok {
			return nil, fmt.Errorf("%w: procedure %q declared twice", ErrCorruptData, p.Name)
		}
		proc := &Proc{Name: p.Name}
		out.Procs[i] = proc
		ln.procs[p.Name] = proc
	}

	for i, p := range img.Procs {
		body, err := ln.bodyFromImage(p.Body)
		if err != nil {
			return nil, err
		}
		out.Procs[i].Body = body
	}

	entryProc := ln.procs[compiler.EntryPointName]
	entryRegion, ok := ln.regions[compiler.EntryPointName]
	if entryProc == nil || !ok {
		return nil, fmt.Errorf("%w: image has no main entry point", ErrCorruptData)
	}
	out.Entry = entryProc
	out.EntryRegion = entryRegion

	return out, nil
}

func (ln *linker) bodyFromImage(body []imageInstr) ([]Instr, error) {
	out := make([]Instr, 0, len(body))
	for _, ii := range body {
		in, err := ln.instrFromImage(ii)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (ln *linker) instrFromImage(ii imageInstr) (Instr, error) {
	op := Op(ii.Op)
	in := Instr{Op: op, Arg: ii.Arg}

	switch op {
	case OpAdd, OpMove, OpReset, OpWrite, OpOutput, OpInput:
		// No references to resolve.

	case OpSend, OpRecv:
		ref, err := ln.refFromImage(ii.Ref)
		if err != nil {
			return Instr{}, err
		}
		if ref.Kind == RefNone {
			return Instr{}, fmt.Errorf("%w: %s without a region operand", ErrCorruptData, op)
		}
		in.Ref = ref

	case OpLoop:
		body, err := ln.bodyFromImage(ii.Body)
		if err != nil {
			return Instr{}, err
		}
		in.Body = body

	case OpCall:
		proc, ok := ln.procs[ii.Proc]
		if !ok {
			return Instr{}, fmt.Errorf("%w: call to unknown procedure %q", ErrCorruptData, ii.Proc)
		}
		ref, err := ln.refFromImage(ii.Ref)
		if err != nil {
			return Instr{}, err
		}
		in.Proc = proc
		in.Ref = ref

	case OpAnon:
		body, err := ln.bodyFromImage(ii.Body)
		if err != nil {
			return Instr{}, err
		}
		ref, err := ln.refFromImage(ii.Ref)
		if err != nil {
			return Instr{}, err
		}
		in.Body = body
		in.Ref = ref

	default:
		return Instr{}, fmt.Errorf("%w: unknown opcode %d", ErrCorruptData, ii.Op)
	}

	return in, nil
}

func (ln *linker) refFromImage(ref string) (Ref, error) {
	switch ref {
	case "":
		return Ref{Kind: RefNone}, nil
	case imageBackRef:
		return Ref{Kind: RefBack}, nil
	default:
		idx, ok := ln.regions[ref]
		if !ok {
			return Ref{}, fmt.Errorf("%w: reference to unknown region %q", ErrCorruptData, ref)
		}
		return Ref{Kind: RefRegion, Region: idx}, nil
	}
}
