// Package audio holds the sample buffer, bus layout, MIDI and transport
// types shared by the processing chain and the session worker.
package audio

import (
	"pipelined.dev/signal"
)

// Precision selects the sample format of a buffer.
type Precision int

const (
	Single Precision = iota
	Double
)

func (p Precision) String() string {
	if p == Double {
		return "double"
	}
	return "single"
}

// NewBuffer allocates a channels x length buffer in the given precision.
func NewBuffer(p Precision, channels, length int) signal.Floating {
	a := signal.Allocator{Channels: channels, Length: length, Capacity: length}
	if p == Double {
		return a.Float64()
	}
	return a.Float32()
}

// Clear zeroes every sample of the buffer.
func Clear(buf signal.Floating) {
	ClearChannels(buf, 0, buf.Channels())
}

// ClearChannels zeroes the channels in [from, to). Out-of-range channels
// are ignored.
func ClearChannels(buf signal.Floating, from, to int) {
	if from < 0 {
		from = 0
	}
	if to > buf.Channels() {
		to = buf.Channels()
	}
	for c := from; c < to; c++ {
		for s := 0; s < buf.Length(); s++ {
			buf.SetSample(buf.BufferIndex(c, s), 0)
		}
	}
}

// Copy copies samples from src into dst over the overlapping channel and
// sample range. Copying between precisions converts sample by sample.
func Copy(dst, src signal.Floating) {
	channels := dst.Channels()
	if src.Channels() < channels {
		channels = src.Channels()
	}
	length := dst.Length()
	if src.Length() < length {
		length = src.Length()
	}
	for c := 0; c < channels; c++ {
		for s := 0; s < length; s++ {
			dst.SetSample(dst.BufferIndex(c, s), src.Sample(src.BufferIndex(c, s)))
		}
	}
}

// CopyChannel copies one channel of src into a channel of dst.
func CopyChannel(dst signal.Floating, dstCh int, src signal.Floating, srcCh int) {
	length := dst.Length()
	if src.Length() < length {
		length = src.Length()
	}
	for s := 0; s < length; s++ {
		dst.SetSample(dst.BufferIndex(dstCh, s), src.Sample(src.BufferIndex(srcCh, s)))
	}
}
