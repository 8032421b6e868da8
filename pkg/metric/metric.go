// Package metric publishes process-wide counters and duration statistics
// through expvar.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var registry = struct {
	sync.Mutex
	meters    map[string]*Meter
	durations map[string]*Duration
}{
	meters:    make(map[string]*Meter),
	durations: make(map[string]*Duration),
}

// Meter is a monotonically increasing counter, e.g. bytes moved over the
// wire or plugins loaded.
type Meter struct {
	v int64
}

// GetMeter returns the meter registered under name, creating and publishing
// it on first use.
func GetMeter(name string) *Meter {
	registry.Lock()
	defer registry.Unlock()
	if m, ok := registry.meters[name]; ok {
		return m
	}
	m := &Meter{}
	registry.meters[name] = m
	expvar.Publish("audiogridder."+name, expvar.Func(func() interface{} {
		return m.Value()
	}))
	return m
}

func (m *Meter) Add(n int64) {
	atomic.AddInt64(&m.v, n)
}

func (m *Meter) Value() int64 {
	return atomic.LoadInt64(&m.v)
}

// Duration measures repeated timed windows: count, last and max duration.
type Duration struct {
	mtx     sync.Mutex
	started time.Time
	running bool
	count   int64
	last    time.Duration
	max     time.Duration
}

// GetDuration returns the duration statistic registered under name,
// creating and publishing it on first use.
func GetDuration(name string) *Duration {
	registry.Lock()
	defer registry.Unlock()
	if d, ok := registry.durations[name]; ok {
		return d
	}
	d := &Duration{}
	registry.durations[name] = d
	expvar.Publish("audiogridder."+name+".duration", expvar.Func(func() interface{} {
		count, last, max := d.Stats()
		return fmt.Sprintf("count=%d last=%s max=%s", count, last, max)
	}))
	return d
}

// Reset marks the start of a timed window.
func (d *Duration) Reset() {
	d.mtx.Lock()
	d.started = time.Now()
	d.running = true
	d.mtx.Unlock()
}

// Update records the time since the last Reset.
func (d *Duration) Update() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if !d.running {
		return
	}
	elapsed := time.Since(d.started)
	d.count++
	d.last = elapsed
	if elapsed > d.max {
		d.max = elapsed
	}
	d.running = false
}

// Clear drops the in-flight window without recording it.
func (d *Duration) Clear() {
	d.mtx.Lock()
	d.running = false
	d.mtx.Unlock()
}

func (d *Duration) Stats() (count int64, last, max time.Duration) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.count, d.last, d.max
}
