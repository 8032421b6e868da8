package plugin

import (
	"sync/atomic"
)

// Shared is a reference-counted handle to an Instance. An in-flight block
// keeps its reference even if the owning wrapper drops the plugin
// concurrently; when the last reference goes away, Close is posted to the
// message thread.
type Shared struct {
	inst Instance
	refs int32
}

func NewShared(inst Instance) *Shared {
	return &Shared{inst: inst, refs: 1}
}

func (s *Shared) Instance() Instance {
	return s.inst
}

// Retain takes an additional reference and returns the handle. Safe on a
// nil handle.
func (s *Shared) Retain() *Shared {
	if s == nil {
		return nil
	}
	atomic.AddInt32(&s.refs, 1)
	return s
}

// Release drops one reference. The final release defers the instance
// destruction onto the message thread.
func (s *Shared) Release() {
	if s == nil {
		return
	}
	if atomic.AddInt32(&s.refs, -1) == 0 {
		inst := s.inst
		MsgThread().CallAsync(func() {
			inst.Close()
		})
	}
}
