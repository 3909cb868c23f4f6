package stratum

// CompactorChannel is the send-only, best-effort signaling channel §6
// describes. It has a fixed buffer depth; missed signals are acceptable, so
// Notify never blocks the uploader.
type CompactorChannel struct {
	ch chan struct{}
}

// NewCompactorChannel returns a channel with the given buffer depth.
func NewCompactorChannel(buffer int) *CompactorChannel {
	return &CompactorChannel{ch: make(chan struct{}, buffer)}
}

// Notify pokes the compactor, dropping the signal silently if the buffer is
// full.
func (c *CompactorChannel) Notify() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// C exposes the receive side for a compactor implementation to drain.
func (c *CompactorChannel) C() <-chan struct{} { return c.ch }
