package vm

// Region is a named, fixed-size byte buffer with a head position.
//
// All arithmetic wraps: byte values in [0,256) and head positions in
// [0,capacity). No operation on a region can fault, which is what lets the
// engine treat a validated program as incapable of run-time errors.
type Region struct {
	name  string
	cells []byte
	head  int
}

// NewRegion creates a zeroed region. Size must be at least 1; the parser
// rejects anything smaller, so this only guards against direct misuse.
func NewRegion(name string, size int) *Region {
	if size < 1 {
		size = 1
	}
	return &Region{
		name:  name,
		cells: make([]byte, size),
	}
}

// Name returns the region's declared name.
func (r *Region) Name() string {
	return r.name
}

// Cap returns the region's capacity in bytes.
func (r *Region) Cap() int {
	return len(r.cells)
}

// Head returns the current head position.
func (r *Region) Head() int {
	return r.head
}

// Byte reads the byte under the head.
func (r *Region) Byte() byte {
	return r.cells[r.head]
}

// SetByte stores b at the head. The head does not move.
func (r *Region) SetByte(b byte) {
	r.cells[r.head] = b
}

// Add adds delta to the byte under the head, wrapping mod 256. A delta of
// 255 is a decrement.
func (r *Region) Add(delta byte) {
	r.cells[r.head] += delta
}

// Move shifts the head by delta positions, wrapping mod capacity in both
// directions.
func (r *Region) Move(delta int) {
	n := len(r.cells)
	r.head = ((r.head+delta)%n + n) % n
}

// Reset returns the head to position 0. Cell contents are untouched.
func (r *Region) Reset() {
	r.head = 0
}

// At reads the byte at index i, wrapping mod capacity.
func (r *Region) At(i int) byte {
	n := len(r.cells)
	return r.cells[((i%n)+n)%n]
}

// SetAt stores b at index i, wrapping mod capacity.
func (r *Region) SetAt(i int, b byte) {
	n := len(r.cells)
	r.cells[((i%n)+n)%n] = b
}

// Clear zeroes every cell and returns the head to 0.
func (r *Region) Clear() {
	for i := range r.cells {
		r.cells[i] = 0
	}
	r.head = 0
}
