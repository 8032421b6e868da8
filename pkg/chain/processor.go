// Package chain hosts the ordered plugin chain a session pumps its audio
// through: one wrapper per loaded plugin plus the chain that owns them.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/plugin"
)

var (
	loadedCount int32
	// pluginLoaderMtx serializes load and the final unload release across
	// all wrappers when the server disallows parallel plugin loads.
	pluginLoaderMtx sync.Mutex
)

// LoadedCount reports how many plugins are currently loaded process-wide.
func LoadedCount() int {
	return int(atomic.LoadInt32(&loadedCount))
}

// Processor wraps one plugin instance inside a chain: lifecycle, bypass
// with latency compensation, and parameter listening.
type Processor struct {
	log          *zap.Logger
	chain        *Chain
	id           string
	sampleRate   float64
	blockSize    int
	parallelLoad bool

	mtx    sync.Mutex // guards plugin handle swaps and prepared
	plugin *plugin.Shared

	prepared  bool
	suspended int32

	lastKnownLatency       int
	extraIn, extraOut      int
	needsDisabledSidechain bool
	chainIndex             int

	bypassF []*delayLine
	bypassD []*delayLine
}

func newProcessor(c *Chain, id string, sampleRate float64, blockSize int) *Processor {
	return &Processor{
		log:          c.log.Named("proc"),
		chain:        c,
		id:           id,
		sampleRate:   sampleRate,
		blockSize:    blockSize,
		parallelLoad: c.parallelLoad,
	}
}

func (p *Processor) ID() string { return p.id }

func (p *Processor) Name() string {
	h := p.acquire()
	if h == nil {
		return ""
	}
	defer h.Release()
	return h.Instance().Name()
}

// acquire returns a retained handle to the plugin, or nil when none is
// loaded. The caller must Release it.
func (p *Processor) acquire() *plugin.Shared {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.plugin.Retain()
}

// Load resolves the wrapper's ID through the catalog, instantiates the
// plugin and lets the chain configure and prepare it. A second call with a
// plugin already loaded is a no-op.
func (p *Processor) Load() error {
	p.mtx.Lock()
	loaded := p.plugin != nil
	p.mtx.Unlock()
	if loaded {
		return nil
	}

	if !p.parallelLoad {
		pluginLoaderMtx.Lock()
		defer pluginLoaderMtx.Unlock()
	}

	desc := plugin.FindDescription(p.chain.catalog, p.id)
	if desc == nil {
		return errors.New("failed to find plugin descriptor")
	}
	inst, err := p.chain.catalog.CreateInstance(*desc, p.sampleRate, p.blockSize)
	if err != nil {
		return fmt.Errorf("failed loading plugin %s: %w", desc.FileOrIdentifier, err)
	}

	h := plugin.NewShared(inst)
	p.mtx.Lock()
	p.plugin = h
	p.mtx.Unlock()

	if err := p.chain.initPluginInstance(p); err != nil {
		p.mtx.Lock()
		p.plugin = nil
		p.mtx.Unlock()
		h.Release()
		return err
	}
	for _, param := range inst.Parameters() {
		param.AddListener(p)
	}
	atomic.AddInt32(&loadedCount, 1)
	return nil
}

// Unload releases the plugin. The final destruction is deferred onto the
// message thread by the shared handle.
func (p *Processor) Unload() {
	var h *plugin.Shared
	p.mtx.Lock()
	if p.plugin != nil {
		inst := p.plugin.Instance()
		if p.prepared {
			inst.ReleaseResources()
			p.prepared = false
		}
		for _, param := range inst.Parameters() {
			param.RemoveListener(p)
		}
		h = p.plugin
		p.plugin = nil
		atomic.AddInt32(&loadedCount, -1)
	}
	p.mtx.Unlock()
	if h == nil {
		return
	}
	if !p.parallelLoad {
		pluginLoaderMtx.Lock()
		defer pluginLoaderMtx.Unlock()
	}
	h.Release()
}

func (p *Processor) PrepareToPlay(sampleRate float64, blockSize int) {
	h := p.acquire()
	if h == nil {
		return
	}
	defer h.Release()
	h.Instance().PrepareToPlay(sampleRate, blockSize)
	p.mtx.Lock()
	p.prepared = true
	p.mtx.Unlock()
}

func (p *Processor) ReleaseResources() {
	h := p.acquire()
	if h == nil {
		return
	}
	defer h.Release()
	h.Instance().ReleaseResources()
	p.mtx.Lock()
	p.prepared = false
	p.mtx.Unlock()
}

func (p *Processor) Prepared() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.prepared
}

// SuspendProcessing toggles the logical bypass. Suspending releases the
// plugin's resources; resuming re-prepares it with the chain's current
// rate and block size.
func (p *Processor) SuspendProcessing(shouldBeSuspended bool) {
	h := p.acquire()
	if h != nil {
		defer h.Release()
		if shouldBeSuspended {
			h.Instance().ReleaseResources()
			p.mtx.Lock()
			p.prepared = false
			p.mtx.Unlock()
		} else {
			h.Instance().PrepareToPlay(p.chain.SampleRate(), p.chain.BlockSize())
			p.mtx.Lock()
			p.prepared = true
			p.mtx.Unlock()
		}
	}
	if shouldBeSuspended {
		atomic.StoreInt32(&p.suspended, 1)
	} else {
		atomic.StoreInt32(&p.suspended, 0)
	}
}

func (p *Processor) Suspended() bool {
	return atomic.LoadInt32(&p.suspended) == 1
}

func (p *Processor) processBlock(buf signal.Floating, midi *audio.MidiBuffer, prec audio.Precision) {
	h := p.acquire()
	if h == nil {
		return
	}
	defer h.Release()
	if prec == audio.Double {
		h.Instance().ProcessDouble(buf, midi)
	} else {
		h.Instance().ProcessFloat(buf, midi)
	}
}

// ProcessBlockBypassed routes the block around the plugin while delaying
// it by the plugin's last known latency, so toggling bypass does not jump
// in time. With FIFOs missing or undersized the affected channels are
// cleared instead.
func (p *Processor) ProcessBlockBypassed(buf signal.Floating, prec audio.Precision) {
	totalIn := p.chain.TotalInputChannels()
	totalOut := p.chain.TotalOutputChannels()
	if totalIn > buf.Channels() {
		p.log.Warn("buffer has less channels than main input channels",
			zap.Int("buffer", buf.Channels()), zap.Int("inputs", totalIn))
		totalIn = buf.Channels()
	}
	if totalOut > buf.Channels() {
		p.log.Warn("buffer has less channels than main output channels",
			zap.Int("buffer", buf.Channels()), zap.Int("outputs", totalOut))
		totalOut = buf.Channels()
	}

	// output-only channels must not leak previous content
	audio.ClearChannels(buf, totalIn, totalOut)

	lines := p.bypassF
	if prec == audio.Double {
		lines = p.bypassD
	}
	if len(lines) < totalOut {
		p.log.Warn("bypass buffer has less channels than needed",
			zap.Int("buffer", len(lines)), zap.Int("needed", totalOut))
		audio.ClearChannels(buf, 0, totalOut)
		return
	}

	for c := 0; c < totalOut; c++ {
		line := lines[c]
		for s := 0; s < buf.Length(); s++ {
			idx := buf.BufferIndex(c, s)
			buf.SetSample(idx, line.push(buf.Sample(idx)))
		}
	}
}

// UpdateLatencyBuffers resizes the per-channel bypass FIFOs to exactly the
// last known latency, creating missing channels up to the plugin's output
// channel count.
func (p *Processor) UpdateLatencyBuffers() {
	h := p.acquire()
	if h == nil {
		return
	}
	defer h.Release()
	p.log.Info("updating latency buffers", zap.Int("samples", p.lastKnownLatency))
	channels := h.Instance().Layout().TotalOutputChannels()
	for len(p.bypassF) < channels {
		p.bypassF = append(p.bypassF, newDelayLine(p.lastKnownLatency))
	}
	for len(p.bypassD) < channels {
		p.bypassD = append(p.bypassD, newDelayLine(p.lastKnownLatency))
	}
	for c := 0; c < channels; c++ {
		p.bypassF[c].resize(p.lastKnownLatency)
		p.bypassD[c].resize(p.lastKnownLatency)
	}
}

func (p *Processor) LatencySamples() int {
	return p.lastKnownLatency
}

func (p *Processor) ExtraInChannels() int  { return p.extraIn }
func (p *Processor) ExtraOutChannels() int { return p.extraOut }

func (p *Processor) setExtraChannels(in, out int) {
	p.extraIn = in
	p.extraOut = out
}

func (p *Processor) NeedsDisabledSidechain() bool     { return p.needsDisabledSidechain }
func (p *Processor) setNeedsDisabledSidechain(b bool) { p.needsDisabledSidechain = b }

func (p *Processor) ChainIndex() int       { return p.chainIndex }
func (p *Processor) setChainIndex(idx int) { p.chainIndex = idx }

// ParameterValueChanged propagates parameter notifications upward; the
// core itself is a pure sink.
func (p *Processor) ParameterValueChanged(paramIndex int, value float32) {
	h := p.acquire()
	if h == nil {
		return
	}
	defer h.Release()
	p.log.Debug("parameter changed",
		zap.Int("param", paramIndex), zap.Float32("value", value))
}

func (p *Processor) ParameterGestureChanged(paramIndex int, gestureStarting bool) {}

var _ plugin.ParameterListener = (*Processor)(nil)

// delayLine is a fixed-length sample FIFO: push appends at the tail and
// returns the popped head.
type delayLine struct {
	buf  []float64
	head int
}

func newDelayLine(n int) *delayLine {
	return &delayLine{buf: make([]float64, n)}
}

func (d *delayLine) len() int { return len(d.buf) }

func (d *delayLine) push(v float64) float64 {
	if len(d.buf) == 0 {
		return v
	}
	out := d.buf[d.head]
	d.buf[d.head] = v
	d.head++
	if d.head == len(d.buf) {
		d.head = 0
	}
	return out
}

// resize grows by zero-padding at the tail and shrinks by dropping the
// oldest samples from the head.
func (d *delayLine) resize(n int) {
	if n == len(d.buf) {
		return
	}
	ordered := make([]float64, 0, n)
	for i := 0; i < len(d.buf); i++ {
		ordered = append(ordered, d.buf[(d.head+i)%len(d.buf)])
	}
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	for len(ordered) < n {
		ordered = append(ordered, 0)
	}
	d.buf = ordered
	d.head = 0
}
