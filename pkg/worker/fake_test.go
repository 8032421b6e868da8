package worker

import (
	"fmt"
	"sync/atomic"

	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/plugin"
)

// gainInstance multiplies every sample; enough of a plugin to observe a
// block passing through a session.
type gainInstance struct {
	name    string
	gain    float64
	latency int
	double  bool
	layout  audio.Layout
	blocks  int32
}

var _ plugin.Instance = (*gainInstance)(nil)

func (g *gainInstance) Name() string                           { return g.name }
func (g *gainInstance) PrepareToPlay(float64, int)             {}
func (g *gainInstance) ReleaseResources()                      {}
func (g *gainInstance) LatencySamples() int                    { return g.latency }
func (g *gainInstance) TailSeconds() float64                   { return 0 }
func (g *gainInstance) SupportsDoublePrecision() bool          { return g.double }
func (g *gainInstance) SetProcessingPrecision(audio.Precision) {}
func (g *gainInstance) Layout() audio.Layout                   { return g.layout.Clone() }
func (g *gainInstance) CheckLayoutSupported(audio.Layout) bool { return true }
func (g *gainInstance) EnableAllBuses()                        {}
func (g *gainInstance) SetPlayHead(*audio.Transport)           {}
func (g *gainInstance) Parameters() []plugin.Parameter         { return nil }
func (g *gainInstance) Close()                                 {}

func (g *gainInstance) SetLayout(l audio.Layout) bool {
	g.layout = l.Clone()
	return true
}

func (g *gainInstance) process(buf signal.Floating) {
	atomic.AddInt32(&g.blocks, 1)
	for c := 0; c < buf.Channels(); c++ {
		for s := 0; s < buf.Length(); s++ {
			idx := buf.BufferIndex(c, s)
			buf.SetSample(idx, buf.Sample(idx)*g.gain)
		}
	}
}

func (g *gainInstance) ProcessFloat(buf signal.Floating, _ *audio.MidiBuffer)  { g.process(buf) }
func (g *gainInstance) ProcessDouble(buf signal.Floating, _ *audio.MidiBuffer) { g.process(buf) }

// fakeCatalog resolves descriptions to instance factories by uid; a nil
// factory is fine for tests that never instantiate.
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
	factory := c.factories[desc.UID]
	if factory == nil {
		return nil, fmt.Errorf("no factory for uid %d", desc.UID)
	}
	return factory(), nil
}
