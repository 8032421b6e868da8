package plugin

import (
	"runtime"
	"sync"
)

// MessageThread is the dedicated OS thread plugin SDKs require for
// instance creation, destruction and UI callbacks. Work is serialized in
// submission order.
type MessageThread struct {
	ops  chan func()
	stop chan struct{}
	wg   sync.WaitGroup
}

var (
	msgThread     *MessageThread
	msgThreadOnce sync.Once
)

// MsgThread returns the process-wide message thread, starting it on first
// use.
func MsgThread() *MessageThread {
	msgThreadOnce.Do(func() {
		msgThread = NewMessageThread()
	})
	return msgThread
}

func NewMessageThread() *MessageThread {
	t := &MessageThread{
		ops:  make(chan func(), 64),
		stop: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

func (t *MessageThread) run() {
	defer t.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case <-t.stop:
			// drain pending destruction work before exiting
			for {
				select {
				case f := <-t.ops:
					f()
				default:
					return
				}
			}
		case f := <-t.ops:
			f()
		}
	}
}

// CallSync runs f on the message thread and waits for it to finish. Must
// not be called from the message thread itself.
func (t *MessageThread) CallSync(f func()) {
	done := make(chan struct{})
	t.ops <- func() {
		f()
		close(done)
	}
	<-done
}

// CallAsync queues f onto the message thread and returns immediately.
func (t *MessageThread) CallAsync(f func()) {
	t.ops <- f
}

// Stop terminates the thread after draining queued work.
func (t *MessageThread) Stop() {
	close(t.stop)
	t.wg.Wait()
}
