package availability

import "time"

// handle is a cancellable pending timer. Each keystroke cancels the
// previous handle before scheduling a new one.
type handle struct {
	t *time.Timer
}

// schedule runs fn after delay unless cancelled first.
func schedule(delay time.Duration, fn func()) *handle {
	return &handle{t: time.AfterFunc(delay, fn)}
}

// cancel stops the pending run. Cancelling an already-fired or
// already-cancelled handle is a no-op.
func (h *handle) cancel() {
	if h != nil && h.t != nil {
		h.t.Stop()
	}
}
