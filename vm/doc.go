// Package vm executes Caedan programs.
//
// A program is a set of named regions (fixed-size wrapping byte buffers,
// each with a head position) and a set of procedures (instruction
// sequences). Execution starts by running the procedure named main against
// the region named main and proceeds on a single instruction cursor; there
// is no concurrency in the language.
//
// Every call frame carries two region bindings: here, the region
// unqualified instructions act on, and origin, the region the back
// reference $ resolves to. Both are computed from the caller's frame and
// the call clause alone, so $ is a stack-relative value rather than a name.
//
// The input instruction's end-of-stream behavior is not fixed by the
// language. This implementation stores 0 into the head byte when the input
// source is exhausted and reports no error; see Machine.Run.
package vm
