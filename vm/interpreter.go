package vm

import (
	"errors"
	"fmt"
	"io"
)

// ErrStepLimit is returned by Run when the machine's step limit is
// exhausted before the program halts.
var ErrStepLimit = errors.New("step limit exceeded")

// ---------------------------------------------------------------------------
// Frames and cursors
// ---------------------------------------------------------------------------

// cursor walks one instruction sequence. Loops inside a procedure body do
// not push frames; they push cursors, so the frame's here/origin bindings
// are naturally shared with loop bodies.
type cursor struct {
	body []Instr
	ip   int
	loop bool
}

// frame is one call activation. here is the region unqualified
// instructions act on; origin is the region $ resolves to. Both are fixed
// for the lifetime of the frame.
type frame struct {
	proc    *Proc // nil for anonymous bodies
	here    *Region
	origin  *Region
	cursors []cursor
}

func (f *frame) name() string {
	if f.proc == nil {
		return "(anon)"
	}
	return f.proc.Name
}

// ---------------------------------------------------------------------------
// Machine
// ---------------------------------------------------------------------------

// Machine executes one linked program against one region store.
//
// The machine is single-threaded: Run drives a single instruction cursor
// to completion and must not be called concurrently with itself.
type Machine struct {
	prog  *Program
	store *Store

	frames []*frame
	fp     int

	in  io.Reader
	out io.Writer

	steps int64
	limit int64

	tracer *Tracer
}

// Option configures a Machine.
type Option func(*Machine)

// WithInput sets the input source the input instruction reads from.
// The default source is always exhausted.
func WithInput(r io.Reader) Option {
	return func(m *Machine) { m.in = r }
}

// WithOutput sets the sink the output instruction writes to.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) { m.out = w }
}

// WithStepLimit bounds the number of execution steps Run may take; 0
// means unbounded. Every turn of the dispatch loop counts as one step,
// loop re-tests included, so even an empty infinite loop hits the limit.
func WithStepLimit(n int64) Option {
	return func(m *Machine) { m.limit = n }
}

// WithTracer attaches an execution tracer.
func WithTracer(t *Tracer) Option {
	return func(m *Machine) { m.tracer = t }
}

// NewMachine creates a machine for a linked program with a fresh store.
func NewMachine(prog *Program, opts ...Option) *Machine {
	m := &Machine{
		prog:   prog,
		store:  NewStore(prog.Regions),
		frames: make([]*frame, 16),
		fp:     -1,
		in:     emptyInput{},
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// emptyInput is the default input source: always at end of stream.
type emptyInput struct{}

func (emptyInput) Read([]byte) (int, error) {
	return 0, io.EOF
}

// Store exposes the machine's region store for inspection.
func (m *Machine) Store() *Store {
	return m.store
}

// Steps returns how many steps the machine has executed so far.
func (m *Machine) Steps() int64 {
	return m.steps
}

// Reset clears every region and the step counter so the machine can run
// its program again from a cold start.
func (m *Machine) Reset() {
	m.store.Reset()
	m.steps = 0
	for i := range m.frames {
		m.frames[i] = nil
	}
	m.fp = -1
}

func (m *Machine) pushFrame(proc *Proc, body []Instr, here, origin *Region) {
	m.fp++
	if m.fp >= len(m.frames) {
		newFrames := make([]*frame, len(m.frames)*2)
		copy(newFrames, m.frames)
		m.frames = newFrames
	}
	m.frames[m.fp] = &frame{
		proc:    proc,
		here:    here,
		origin:  origin,
		cursors: []cursor{{body: body}},
	}
	if m.tracer != nil {
		m.tracer.Call(m.frames[m.fp].name(), here.Name(), origin.Name())
	}
}

func (m *Machine) popFrame() {
	f := m.frames[m.fp]
	m.frames[m.fp] = nil
	m.fp--
	if m.tracer != nil {
		m.tracer.Return(f.name())
	}
}

// region resolves a send/receive operand against the active frame.
func (m *Machine) region(f *frame, ref Ref) *Region {
	if ref.Kind == RefBack {
		return f.origin
	}
	return m.store.At(ref.Region)
}

// callBindings computes the new frame's (here, origin) from the caller's
// frame and the call clause.
func (m *Machine) callBindings(f *frame, ref Ref) (*Region, *Region) {
	switch ref.Kind {
	case RefRegion:
		return m.store.At(ref.Region), f.here
	case RefBack:
		return f.origin, f.origin
	default:
		return f.here, f.origin
	}
}

// ---------------------------------------------------------------------------
// Main execution loop
// ---------------------------------------------------------------------------

// Run executes the program from its entry point until the call stack
// empties. It returns ErrStepLimit when a step limit is set and
// exhausted, or an I/O error from the output sink. Exhaustion of the
// input source is not an error: the input instruction stores 0 and
// execution continues.
func (m *Machine) Run() error {
	entry := m.store.At(m.prog.EntryRegion)
	m.pushFrame(m.prog.Entry, m.prog.Entry.Body, entry, entry)

	for m.fp >= 0 {
		m.steps++
		if m.limit > 0 && m.steps > m.limit {
			return fmt.Errorf("%w after %d steps", ErrStepLimit, m.limit)
		}

		f := m.frames[m.fp]
		cur := &f.cursors[len(f.cursors)-1]

		if cur.ip >= len(cur.body) {
			if cur.loop && f.here.Byte() != 0 {
				cur.ip = 0
				continue
			}
			f.cursors = f.cursors[:len(f.cursors)-1]
			if len(f.cursors) == 0 {
				m.popFrame()
			}
			continue
		}

		in := &cur.body[cur.ip]
		cur.ip++

		switch in.Op {
		case OpAdd:
			f.here.Add(byte(in.Arg))

		case OpMove:
			f.here.Move(in.Arg)

		case OpReset:
			f.here.Reset()

		case OpWrite:
			f.here.SetByte(byte(in.Arg))

		case OpOutput:
			if _, err := m.out.Write([]byte{f.here.Byte()}); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

		case OpInput:
			b, err := m.readByte()
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			f.here.SetByte(b)

		case OpLoop:
			if f.here.Byte() != 0 {
				f.cursors = append(f.cursors, cursor{body: in.Body, loop: true})
			}

		case OpSend:
			m.region(f, in.Ref).SetByte(f.here.Byte())

		case OpRecv:
			f.here.SetByte(m.region(f, in.Ref).Byte())

		case OpCall:
			here, origin := m.callBindings(f, in.Ref)
			m.pushFrame(in.Proc, in.Proc.Body, here, origin)

		case OpAnon:
			here, origin := m.callBindings(f, in.Ref)
			m.pushFrame(nil, in.Body, here, origin)

		default:
			return fmt.Errorf("unknown opcode %s", in.Op)
		}
	}

	return nil
}

// readByte pulls one byte from the input source. End of stream yields 0
// with no error; that policy is part of this implementation's contract
// and both branches are expected by the conformance suite.
func (m *Machine) readByte() (byte, error) {
	var buf [1]byte
	for {
		n, err := m.in.Read(buf[:])
		if n > 0 {
			return buf[0], nil
		}
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
