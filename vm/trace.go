package vm

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
)

// Tracer logs call and return events during execution. A single tracer
// may be shared by several machines; writes are serialized.
type Tracer struct {
	writer  io.Writer
	filters []string
	mu      sync.Mutex
}

// NewTracer creates a tracer writing to w. Filters are glob patterns
// matched against procedure names; an empty filter list traces every
// call. Anonymous bodies trace under the name "(anon)".
func NewTracer(w io.Writer, filters ...string) *Tracer {
	return &Tracer{
		writer:  w,
		filters: filters,
	}
}

// matchesFilter checks whether a procedure name passes the filters.
func (t *Tracer) matchesFilter(name string) bool {
	if len(t.filters) == 0 {
		return true
	}
	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Call logs a frame push with its region bindings.
func (t *Tracer) Call(name, here, origin string) {
	if !t.matchesFilter(name) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] CALL %s here=%s origin=%s\n", name, here, origin)
}

// Return logs a frame pop.
func (t *Tracer) Return(name string) {
	if !t.matchesFilter(name) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] RETURN %s\n", name)
}
