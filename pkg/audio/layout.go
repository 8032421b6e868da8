package audio

import (
	"fmt"
	"strings"
)

// ChannelSet is the channel configuration of a single bus.
type ChannelSet struct {
	channels int
}

func Mono() ChannelSet             { return ChannelSet{channels: 1} }
func Stereo() ChannelSet           { return ChannelSet{channels: 2} }
func Discrete(n int) ChannelSet    { return ChannelSet{channels: n} }
func (s ChannelSet) Size() int     { return s.channels }
func (s ChannelSet) String() string {
	switch s.channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("discrete(%d)", s.channels)
	}
}

// channelSetFor builds the bus configuration for a channel count the way
// session layouts are negotiated: mono, stereo, or discrete-N.
func channelSetFor(n int) ChannelSet {
	switch n {
	case 1:
		return Mono()
	case 2:
		return Stereo()
	default:
		return Discrete(n)
	}
}

// Layout is an ordered set of input buses and output buses. Input bus 0 is
// the main bus, input bus 1 (if present) the sidechain.
type Layout struct {
	Inputs  []ChannelSet
	Outputs []ChannelSet
}

// SessionLayout builds the layout for a session's declared channels: a main
// input bus, an optional sidechain bus, and a main output bus.
func SessionLayout(channelsIn, channelsOut, channelsSC int) Layout {
	var l Layout
	if channelsIn > 0 {
		l.Inputs = append(l.Inputs, channelSetFor(channelsIn))
	}
	if channelsSC > 0 {
		l.Inputs = append(l.Inputs, channelSetFor(channelsSC))
	}
	if channelsOut > 0 {
		l.Outputs = append(l.Outputs, channelSetFor(channelsOut))
	}
	return l
}

func (l Layout) Clone() Layout {
	return Layout{
		Inputs:  append([]ChannelSet(nil), l.Inputs...),
		Outputs: append([]ChannelSet(nil), l.Outputs...),
	}
}

func (l Layout) MainInputChannels() int {
	if len(l.Inputs) == 0 {
		return 0
	}
	return l.Inputs[0].Size()
}

func (l Layout) MainOutputChannels() int {
	if len(l.Outputs) == 0 {
		return 0
	}
	return l.Outputs[0].Size()
}

func (l Layout) TotalInputChannels() int {
	n := 0
	for _, b := range l.Inputs {
		n += b.Size()
	}
	return n
}

func (l Layout) TotalOutputChannels() int {
	n := 0
	for _, b := range l.Outputs {
		n += b.Size()
	}
	return n
}

func (l Layout) HasSidechain() bool { return len(l.Inputs) > 1 }

// WithoutSidechain returns a copy of the layout with input bus 1 removed.
func (l Layout) WithoutSidechain() Layout {
	c := l.Clone()
	if len(c.Inputs) > 1 {
		c.Inputs = append(c.Inputs[:1], c.Inputs[2:]...)
	}
	return c
}

// WithMonoSidechain returns a copy of the layout with input bus 1 replaced
// by a mono bus.
func (l Layout) WithMonoSidechain() Layout {
	c := l.Clone()
	if len(c.Inputs) > 1 {
		c.Inputs[1] = Mono()
	}
	return c
}

func (l Layout) String() string {
	var b strings.Builder
	b.WriteString("in[")
	for i, s := range l.Inputs {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s.String())
	}
	b.WriteString("] out[")
	for i, s := range l.Outputs {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s.String())
	}
	b.WriteString("]")
	return b.String()
}
