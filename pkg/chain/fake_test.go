package chain

import (
	"fmt"
	"sync"
	"sync/atomic"

	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/plugin"
)

// fakeParam is an in-memory automatable parameter.
type fakeParam struct {
	idx   int
	name  string
	value float32

	mtx       sync.Mutex
	listeners []plugin.ParameterListener
}

func (p *fakeParam) Index() int     { return p.idx }
func (p *fakeParam) Name() string   { return p.name }
func (p *fakeParam) Value() float32 { return p.value }

func (p *fakeParam) SetValue(v float32) {
	p.value = v
	p.mtx.Lock()
	listeners := append([]plugin.ParameterListener(nil), p.listeners...)
	p.mtx.Unlock()
	for _, l := range listeners {
		l.ParameterValueChanged(p.idx, v)
	}
}

func (p *fakeParam) AddListener(l plugin.ParameterListener) {
	p.mtx.Lock()
	p.listeners = append(p.listeners, l)
	p.mtx.Unlock()
}

func (p *fakeParam) RemoveListener(l plugin.ParameterListener) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for i, x := range p.listeners {
		if x == l {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

func (p *fakeParam) listenerCount() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.listeners)
}

// fakeInstance is a configurable stand-in for a hosted plugin: it applies
// a gain so processing is observable, reports a fixed latency and tail,
// and accepts layouts through a pluggable predicate.
type fakeInstance struct {
	name    string
	latency int
	tail    float64
	double  bool
	gain    float64
	params  []plugin.Parameter

	// accept decides layout support; nil accepts everything
	accept    func(audio.Layout) bool
	preferred audio.Layout

	layout        audio.Layout
	prepared      bool
	lastPrecision audio.Precision
	processCount  int32
	closed        int32
	playHead      *audio.Transport
}

var _ plugin.Instance = (*fakeInstance)(nil)

func (f *fakeInstance) Name() string { return f.name }

func (f *fakeInstance) PrepareToPlay(sampleRate float64, blockSize int) { f.prepared = true }
func (f *fakeInstance) ReleaseResources()                               { f.prepared = false }

func (f *fakeInstance) process(buf signal.Floating) {
	atomic.AddInt32(&f.processCount, 1)
	if f.gain == 0 {
		return
	}
	for c := 0; c < buf.Channels(); c++ {
		for s := 0; s < buf.Length(); s++ {
			idx := buf.BufferIndex(c, s)
			buf.SetSample(idx, buf.Sample(idx)*f.gain)
		}
	}
}

func (f *fakeInstance) ProcessFloat(buf signal.Floating, midi *audio.MidiBuffer)  { f.process(buf) }
func (f *fakeInstance) ProcessDouble(buf signal.Floating, midi *audio.MidiBuffer) { f.process(buf) }

func (f *fakeInstance) LatencySamples() int                      { return f.latency }
func (f *fakeInstance) TailSeconds() float64                     { return f.tail }
func (f *fakeInstance) SupportsDoublePrecision() bool            { return f.double }
func (f *fakeInstance) SetProcessingPrecision(p audio.Precision) { f.lastPrecision = p }

func (f *fakeInstance) Layout() audio.Layout {
	return f.layout.Clone()
}

func (f *fakeInstance) CheckLayoutSupported(l audio.Layout) bool {
	if f.accept == nil {
		return true
	}
	return f.accept(l)
}

func (f *fakeInstance) SetLayout(l audio.Layout) bool {
	if !f.CheckLayoutSupported(l) {
		return false
	}
	f.layout = l.Clone()
	return true
}

func (f *fakeInstance) EnableAllBuses() {}

func (f *fakeInstance) SetPlayHead(t *audio.Transport) { f.playHead = t }

func (f *fakeInstance) Parameters() []plugin.Parameter { return f.params }

func (f *fakeInstance) Close() { atomic.AddInt32(&f.closed, 1) }

// fakeCatalog resolves descriptions to instance factories by uid.
type fakeCatalog struct {
	types     []plugin.Description
	factories map[int32]func() plugin.Instance
}

var _ plugin.Catalog = (*fakeCatalog)(nil)

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{factories: make(map[int32]func() plugin.Instance)}
}

func (c *fakeCatalog) add(desc plugin.Description, factory func() plugin.Instance) string {
	c.types = append(c.types, desc)
	c.factories[desc.UID] = factory
	return plugin.CreateID(desc)
}

func (c *fakeCatalog) Types() []plugin.Description {
	return append([]plugin.Description(nil), c.types...)
}

func (c *fakeCatalog) TypeForFile(path string) (plugin.Description, bool) {
	for _, d := range c.types {
		if d.FileOrIdentifier == path {
			return d, true
		}
	}
	return plugin.Description{}, false
}

func (c *fakeCatalog) CreateInstance(desc plugin.Description, sampleRate float64, blockSize int) (plugin.Instance, error) {
	factory, ok := c.factories[desc.UID]
	if !ok {
		return nil, fmt.Errorf("no factory for uid %d", desc.UID)
	}
	return factory(), nil
}

func stereoDesc(name string, uid int32, double bool) plugin.Description {
	return plugin.Description{
		Format:                  "VST3",
		Name:                    name,
		UID:                     uid,
		FileOrIdentifier:        "/plugins/" + name + ".vst3",
		NumInputChannels:        2,
		NumOutputChannels:       2,
		SupportsDoublePrecision: double,
	}
}
