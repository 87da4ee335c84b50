// Package metrics provides a small instrumentation surface with a no-op
// default and a Prometheus-backed implementation.
package metrics

import (
	"net/http"
	"sync"
	"time"
)

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	IncStoreOp(op string, success bool)
	ObserveStoreOpSeconds(op string, success bool, seconds float64)
	IncCall(call string, success bool)
	ObserveCallSeconds(call string, success bool, seconds float64)
	AddLinksWritten(n int)
}

type noopRecorder struct{}

func (noopRecorder) IncStoreOp(string, bool)                    {}
func (noopRecorder) ObserveStoreOpSeconds(string, bool, float64) {}
func (noopRecorder) IncCall(string, bool)                       {}
func (noopRecorder) ObserveCallSeconds(string, bool, float64)    {}
func (noopRecorder) AddLinksWritten(int)                        {}

var (
	recMu    sync.RWMutex
	recorder Recorder = noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	if r == nil {
		r = noopRecorder{}
	}
	recorder = r
}

// TimeOp times a store operation.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncStoreOp(op, success)
		Default().ObserveStoreOpSeconds(op, success, dur)
	}
}

// TimeCall times an outbound call or a linking run.
func TimeCall(call string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncCall(call, success)
		Default().ObserveCallSeconds(call, success, dur)
	}
}

// Enable installs the Prometheus recorder and returns the scrape handler.
func Enable() http.Handler {
	p, h := newPrometheus()
	SetRecorder(p)
	return h
}
