// Package safe_close coordinates shutdown between long-lived goroutines:
// every background loop attaches itself, the owner broadcasts a single
// close signal, then waits until all attached loops have drained.
package safe_close

import (
	"sync"
)

type SafeClose struct {
	mu        sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
	err       error
}

func NewSafeClose() *SafeClose {
	return &SafeClose{
		closeCh: make(chan struct{}),
	}
}

// Attach starts f on its own goroutine. f must call done when it has
// finished and must return promptly once closeSignal is closed.
func (sc *SafeClose) Attach(f func(done func(), closeSignal <-chan struct{})) {
	sc.wg.Add(1)
	go f(func() { sc.wg.Done() }, sc.closeCh)
}

// SendCloseSignal broadcasts shutdown. The first caller's err (which may be
// nil for a clean stop) is the one reported by WaitClosed.
func (sc *SafeClose) SendCloseSignal(err error) {
	sc.closeOnce.Do(func() {
		sc.mu.Lock()
		sc.err = err
		sc.mu.Unlock()
		close(sc.closeCh)
	})
}

// ReceiveCloseSignal exposes the broadcast channel for select loops that
// cannot use Attach.
func (sc *SafeClose) ReceiveCloseSignal() <-chan struct{} {
	return sc.closeCh
}

// WaitClosed blocks until every attached goroutine has called done, then
// returns the error passed to SendCloseSignal.
func (sc *SafeClose) WaitClosed() error {
	sc.wg.Wait()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.err
}
