package plugin

import (
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
)

// Instance is one loaded plugin. Buffers passed to the process calls carry
// the chain's working channels; the instance reads its inputs and replaces
// them with its outputs in place.
type Instance interface {
	Name() string

	PrepareToPlay(sampleRate float64, blockSize int)
	ReleaseResources()

	ProcessFloat(buf signal.Floating, midi *audio.MidiBuffer)
	ProcessDouble(buf signal.Floating, midi *audio.MidiBuffer)

	LatencySamples() int
	TailSeconds() float64
	SupportsDoublePrecision() bool
	SetProcessingPrecision(p audio.Precision)

	Layout() audio.Layout
	CheckLayoutSupported(l audio.Layout) bool
	SetLayout(l audio.Layout) bool
	EnableAllBuses()

	SetPlayHead(t *audio.Transport)

	Parameters() []Parameter

	// Close tears the plugin down. Final destruction must happen on the
	// message thread; Shared takes care of that.
	Close()
}

// Parameter is one automatable plugin parameter.
type Parameter interface {
	Index() int
	Name() string
	Value() float32
	SetValue(v float32)
	AddListener(l ParameterListener)
	RemoveListener(l ParameterListener)
}

// ParameterListener receives parameter notifications from the hosted
// plugin. Callbacks may arrive on arbitrary threads and must not assume the
// plugin is still owned by anyone.
type ParameterListener interface {
	ParameterValueChanged(paramIndex int, value float32)
	ParameterGestureChanged(paramIndex int, gestureStarting bool)
}
