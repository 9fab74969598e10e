package server

import (
	"fmt"
)

// runRequest represents a unit of work to be executed on the run goroutine.
type runRequest struct {
	fn   func() interface{}
	done chan runResult
}

// runResult holds the return value from a run operation.
type runResult struct {
	value interface{}
	err   error
}

// Worker serializes program execution through a single goroutine. The
// Caedan engine is single-threaded; every LSP handler that runs a machine
// goes through the worker so concurrent requests never share one.
type Worker struct {
	requests chan runRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan runRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes run requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function, recovering from panics.
func (w *Worker) execute(fn func() interface{}) runResult {
	var result runResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn()
	}()
	return result
}

// Do submits a function for execution on the run goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func() interface{}) (interface{}, error) {
	req := runRequest{
		fn:   fn,
		done: make(chan runResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}
