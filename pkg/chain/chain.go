package chain

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/plugin"
)

// warm-up blocks pushed through a freshly prepared plugin
const preProcessBlockCount = 4

// processing longer than this per block is logged as a warning
const processWarnLimit = 20 * time.Millisecond

// Chain is the ordered list of processors one session routes its blocks
// through. All list access and the aggregate fields are guarded by a
// single mutex, held across the per-block dispatch.
type Chain struct {
	log          *zap.Logger
	catalog      plugin.Catalog
	parallelLoad bool

	mtx   sync.Mutex
	procs []*Processor

	layout    audio.Layout
	rate      float64
	block     int
	precision audio.Precision

	latency           int
	extraChannels     int
	supportsDouble    bool
	tailSecs          float64
	hasSidechain      bool
	sidechainDisabled bool

	playHead *audio.Transport
}

func New(log *zap.Logger, catalog plugin.Catalog, parallelLoad bool) *Chain {
	return &Chain{
		log:            log.Named("chain"),
		catalog:        catalog,
		parallelLoad:   parallelLoad,
		supportsDouble: true,
	}
}

// SetProcessingPrecision selects the precision the session wants. The
// effective per-plugin precision is negotiated in initPluginInstance.
func (c *Chain) SetProcessingPrecision(p audio.Precision) {
	c.mtx.Lock()
	c.precision = p
	c.mtx.Unlock()
}

func (c *Chain) UsingDoublePrecision() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.precision == audio.Double
}

func (c *Chain) SampleRate() float64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.rate
}

func (c *Chain) BlockSize() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.block
}

func (c *Chain) PrepareToPlay(sampleRate float64, blockSize int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.rate = sampleRate
	c.block = blockSize
	for _, proc := range c.procs {
		proc.PrepareToPlay(sampleRate, blockSize)
	}
}

func (c *Chain) ReleaseResources() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, proc := range c.procs {
		proc.ReleaseResources()
	}
}

// SetPlayHead installs the session transport into every processor.
func (c *Chain) SetPlayHead(t *audio.Transport) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.playHead = t
	for _, proc := range c.procs {
		if h := proc.acquire(); h != nil {
			h.Instance().SetPlayHead(t)
			h.Release()
		}
	}
}

// ProcessBlock pumps one block through the chain, warning when the wall
// clock time of the dispatch exceeds the real-time budget.
func (c *Chain) ProcessBlock(buf signal.Floating, midi *audio.MidiBuffer, prec audio.Precision) {
	start := time.Now()
	c.processBlockReal(buf, midi, prec)
	if elapsed := time.Since(start); elapsed > processWarnLimit {
		c.log.Warn("high audio processing time",
			zap.String("chain", c.String()), zap.Duration("took", elapsed))
	}
}

func (c *Chain) processBlockReal(buf signal.Floating, midi *audio.MidiBuffer, prec audio.Precision) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, proc := range c.procs {
		if proc.Suspended() {
			proc.ProcessBlockBypassed(buf, prec)
		} else {
			proc.processBlock(buf, midi, prec)
		}
	}
}

func (c *Chain) TailSeconds() float64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.tailSecs
}

func (c *Chain) SupportsDoublePrecision() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.supportsDouble
}

func (c *Chain) Latency() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.latency
}

func (c *Chain) ExtraChannels() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.extraChannels
}

func (c *Chain) SidechainDisabled() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.sidechainDisabled
}

func (c *Chain) Layout() audio.Layout {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.layout.Clone()
}

func (c *Chain) TotalInputChannels() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.layout.TotalInputChannels()
}

func (c *Chain) TotalOutputChannels() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.layout.TotalOutputChannels()
}

// UpdateChannels installs the session layout built from the declared
// channel counts and renegotiates every processor against it.
func (c *Chain) UpdateChannels(channelsIn, channelsOut, channelsSC int) {
	layout := audio.SessionLayout(channelsIn, channelsOut, channelsSC)
	c.log.Info("setting chain layout", zap.String("layout", layout.String()))
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.layout = layout
	c.extraChannels = 0
	c.hasSidechain = channelsSC > 0
	c.sidechainDisabled = false
	for _, proc := range c.procs {
		c.setProcessorLayoutLocked(proc)
	}
}

// setProcessorLayoutLocked negotiates a bus layout between the chain and
// one plugin. Requires c.mtx held. Starting from the chain layout it tries,
// in order: the layout as is (sidechain pre-removed when already disabled),
// a mono sidechain, no sidechain, and finally the plugin's own preferred
// layout with extra-channel accounting.
func (c *Chain) setProcessorLayoutLocked(proc *Processor) bool {
	h := proc.acquire()
	if h == nil {
		return false
	}
	defer h.Release()
	inst := h.Instance()

	layout := c.layout.Clone()

	if c.hasSidechain && c.sidechainDisabled {
		c.log.Info("the sidechain has been disabled, removing it from the standard layout")
		layout = layout.WithoutSidechain()
	}

	hasSidechain := c.hasSidechain && !c.sidechainDisabled
	supported := inst.CheckLayoutSupported(layout) && inst.SetLayout(layout)

	if !supported {
		c.log.Info("standard layout not supported", zap.String("plugin", inst.Name()))

		if hasSidechain {
			if len(layout.Inputs) > 1 && layout.Inputs[1].Size() > 1 {
				c.log.Info("trying with mono sidechain bus")
				layout = layout.WithMonoSidechain()
				supported = inst.CheckLayoutSupported(layout) && inst.SetLayout(layout)
			}
			if !supported {
				c.log.Info("trying without sidechain bus")
				layout = layout.WithoutSidechain()
				supported = inst.CheckLayoutSupported(layout) && inst.SetLayout(layout)
				if supported {
					proc.setNeedsDisabledSidechain(true)
					c.sidechainDisabled = true
				}
			}
		}
		if !supported {
			if hasSidechain {
				c.log.Info("disabling sidechain input to use the plugins I/O layout")
				c.sidechainDisabled = true
			}

			// from here on the sidechain stays disabled for this plugin
			proc.setNeedsDisabledSidechain(true)

			c.log.Info("falling back to the plugins default layout")

			procLayout := inst.Layout()

			extraIn := procLayout.MainInputChannels() - layout.MainInputChannels()
			for busIdx := 1; busIdx < len(procLayout.Inputs); busIdx++ {
				extraIn += procLayout.Inputs[busIdx].Size()
			}
			extraOut := procLayout.MainOutputChannels() - layout.MainOutputChannels()
			for busIdx := 1; busIdx < len(procLayout.Outputs); busIdx++ {
				extraOut += procLayout.Outputs[busIdx].Size()
			}

			proc.setExtraChannels(extraIn, extraOut)

			if extraIn > c.extraChannels {
				c.extraChannels = extraIn
			}
			if extraOut > c.extraChannels {
				c.extraChannels = extraOut
			}

			c.log.Info("using extra channels",
				zap.Int("extraIn", extraIn), zap.Int("extraOut", extraOut),
				zap.Int("total", c.extraChannels))

			layout = procLayout
			supported = true
		}
	}

	if supported {
		c.log.Info("using I/O layout", zap.String("layout", layout.String()))
	} else {
		c.log.Error("no working I/O layout found", zap.String("plugin", inst.Name()))
	}

	return supported
}

// initPluginInstance negotiates buses, picks the processing precision,
// prepares the plugin and warms it up with silent blocks.
func (c *Chain) initPluginInstance(proc *Processor) error {
	c.mtx.Lock()
	ok := c.setProcessorLayoutLocked(proc)
	rate, block := c.rate, c.block
	wantsDouble := c.precision == audio.Double && c.supportsDouble
	playHead := c.playHead
	c.mtx.Unlock()

	if !ok {
		return errors.New("failed to find working I/O configuration")
	}

	h := proc.acquire()
	if h == nil {
		return errors.New("plugin gone during init")
	}
	defer h.Release()
	inst := h.Instance()

	prec := audio.Single
	if wantsDouble {
		if inst.SupportsDoublePrecision() {
			prec = audio.Double
		} else {
			c.log.Warn("host wants double precision but plugin does not support it",
				zap.String("plugin", inst.Name()))
		}
	}
	inst.SetProcessingPrecision(prec)
	inst.PrepareToPlay(rate, block)
	proc.mtx.Lock()
	proc.prepared = true
	proc.mtx.Unlock()
	inst.SetPlayHead(playHead)
	inst.EnableAllBuses()

	proc.lastKnownLatency = inst.LatencySamples()
	proc.UpdateLatencyBuffers()

	c.preProcessBlocks(inst, prec, block)
	return nil
}

// preProcessBlocks stabilizes a freshly prepared plugin by pushing a
// handful of silent blocks through it.
func (c *Chain) preProcessBlocks(inst plugin.Instance, prec audio.Precision, block int) {
	layout := inst.Layout()
	channels := layout.TotalOutputChannels()
	if in := layout.TotalInputChannels(); in > channels {
		channels = in
	}
	if channels == 0 || block == 0 {
		return
	}
	buf := audio.NewBuffer(prec, channels, block)
	var midi audio.MidiBuffer
	for i := 0; i < preProcessBlockCount; i++ {
		audio.Clear(buf)
		midi.Clear()
		if prec == audio.Double {
			inst.ProcessDouble(buf, &midi)
		} else {
			inst.ProcessFloat(buf, &midi)
		}
	}
}

// AddPlugin loads the plugin behind id and appends it to the chain. On any
// load or negotiation failure the chain is left untouched.
func (c *Chain) AddPlugin(id string) error {
	proc := newProcessor(c, id, c.SampleRate(), c.BlockSize())
	if err := proc.Load(); err != nil {
		return err
	}
	c.mtx.Lock()
	proc.setChainIndex(len(c.procs))
	c.procs = append(c.procs, proc)
	c.updateLocked()
	c.mtx.Unlock()
	return nil
}

// DeleteProcessor removes the processor at idx; out of range is a no-op.
func (c *Chain) DeleteProcessor(idx int) {
	var removed *Processor
	c.mtx.Lock()
	if idx >= 0 && idx < len(c.procs) {
		removed = c.procs[idx]
		c.procs = append(c.procs[:idx], c.procs[idx+1:]...)
		for i := idx; i < len(c.procs); i++ {
			c.procs[i].setChainIndex(i)
		}
		c.updateLocked()
	}
	c.mtx.Unlock()
	if removed != nil {
		removed.Unload()
	}
}

// ExchangeProcessors swaps the processors at the two indices and reassigns
// their chain indices. Out-of-range or equal indices are a no-op.
func (c *Chain) ExchangeProcessors(idxA, idxB int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if idxA == idxB {
		return
	}
	if idxA < 0 || idxA >= len(c.procs) || idxB < 0 || idxB >= len(c.procs) {
		return
	}
	c.procs[idxA], c.procs[idxB] = c.procs[idxB], c.procs[idxA]
	c.procs[idxA].setChainIndex(idxA)
	c.procs[idxB].setChainIndex(idxB)
}

func (c *Chain) Processor(idx int) *Processor {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if idx >= 0 && idx < len(c.procs) {
		return c.procs[idx]
	}
	return nil
}

func (c *Chain) ProcessorCount() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.procs)
}

// ParameterValue looks a parameter value up by processor and parameter
// index; any miss returns 0.
func (c *Chain) ParameterValue(idx, paramIdx int) float32 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if idx < 0 || idx >= len(c.procs) {
		return 0
	}
	h := c.procs[idx].acquire()
	if h == nil {
		return 0
	}
	defer h.Release()
	for _, param := range h.Instance().Parameters() {
		if param.Index() == paramIdx {
			return param.Value()
		}
	}
	return 0
}

// Update recomputes the chain aggregates.
func (c *Chain) Update() {
	c.mtx.Lock()
	c.updateLocked()
	c.mtx.Unlock()
}

// updateLocked recomputes latency, double support, extra channels,
// sidechain state and tail. Requires c.mtx held.
func (c *Chain) updateLocked() {
	latency := 0
	supportsDouble := true
	c.extraChannels = 0
	c.sidechainDisabled = false
	for _, proc := range c.procs {
		h := proc.acquire()
		if h == nil {
			continue
		}
		inst := h.Instance()
		lat := inst.LatencySamples()
		if lat != proc.lastKnownLatency {
			proc.lastKnownLatency = lat
			h.Release()
			proc.UpdateLatencyBuffers()
		} else {
			h.Release()
		}
		latency += lat
		if !inst.SupportsDoublePrecision() {
			supportsDouble = false
		}
		if proc.ExtraInChannels() > c.extraChannels {
			c.extraChannels = proc.ExtraInChannels()
		}
		if proc.ExtraOutChannels() > c.extraChannels {
			c.extraChannels = proc.ExtraOutChannels()
		}
		c.sidechainDisabled = c.hasSidechain && (c.sidechainDisabled || proc.NeedsDisabledSidechain())
	}
	if latency != c.latency {
		c.log.Info("updating latency samples", zap.Int("latency", latency))
		c.latency = latency
	}
	c.supportsDouble = supportsDouble
	c.tailSecs = 0
	for i := len(c.procs) - 1; i >= 0; i-- {
		if !c.procs[i].Suspended() {
			if h := c.procs[i].acquire(); h != nil {
				c.tailSecs = h.Instance().TailSeconds()
				h.Release()
			}
			break
		}
	}
}

// Clear releases every processor and empties the chain.
func (c *Chain) Clear() {
	c.ReleaseResources()
	c.mtx.Lock()
	procs := c.procs
	c.procs = nil
	c.updateLocked()
	c.mtx.Unlock()
	for _, proc := range procs {
		proc.Unload()
	}
}

// String renders the chain as "a > b > <bypassed> > c" for log lines.
func (c *Chain) String() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	parts := make([]string, 0, len(c.procs))
	for _, proc := range c.procs {
		if proc.Suspended() {
			parts = append(parts, "<bypassed>")
		} else {
			parts = append(parts, proc.Name())
		}
	}
	return strings.Join(parts, " > ")
}
