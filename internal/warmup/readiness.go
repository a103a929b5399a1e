package warmup

import (
	"sync/atomic"
	"time"

	"github.com/garyellow/faq-linebot-go/internal/faq"
)

// ReadinessState tracks whether the FAQ index has been built. The matcher is
// published once through an atomic pointer; request handlers read it without
// locks. startTime and timeout are immutable after construction.
type ReadinessState struct {
	matcher   atomic.Pointer[faq.Matcher]
	startTime time.Time
	timeout   time.Duration
}

// ReadinessStatus contains the current readiness state for API responses.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// NewReadinessState creates a state that becomes ready when a matcher is
// published, or when timeout has elapsed since creation. A zero timeout
// waits for the matcher forever.
func NewReadinessState(timeout time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		timeout:   timeout,
	}
}

// Publish makes m the matcher served to queries. Later calls are ignored;
// the corpus is immutable for the life of the process.
func (s *ReadinessState) Publish(m *faq.Matcher) bool {
	if m == nil {
		return false
	}
	return s.matcher.CompareAndSwap(nil, m)
}

// Matcher returns the published matcher, or nil while the index builds.
func (s *ReadinessState) Matcher() *faq.Matcher {
	return s.matcher.Load()
}

// IsReady reports whether traffic should be accepted. After the timeout the
// service degrades to answering every query with the fallback.
func (s *ReadinessState) IsReady() bool {
	if s.WarmupCompleted() {
		return true
	}
	return s.timeout > 0 && time.Since(s.startTime) >= s.timeout
}

// WarmupCompleted reports whether a matcher has been published. Unlike
// IsReady it ignores the timeout.
func (s *ReadinessState) WarmupCompleted() bool {
	return s.matcher.Load() != nil
}

// Status returns the current readiness status for API responses.
func (s *ReadinessState) Status() ReadinessStatus {
	status := ReadinessStatus{
		Ready:          s.IsReady(),
		ElapsedSeconds: int(time.Since(s.startTime).Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}

	switch {
	case !status.Ready:
		status.Reason = "index build in progress"
	case !s.WarmupCompleted():
		status.Reason = "timeout reached (answering with fallback)"
	}
	return status
}
